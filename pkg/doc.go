// Package pkg provides the libraries behind gaea-mcp, which edits and builds
// Gaea terrain projects without the Gaea editor.
//
// # Overview
//
// The pkg directory is organized by layer:
//
//  1. [tree] - Order-preserving JSON values with $id/$ref bookkeeping
//  2. [terrain] - The .terrain document model and its graph edits
//  3. [catalog] - Node types with their ports and default properties
//  4. [edit] - Locked load, change and save of project files
//  5. [swarm] - Locating and running the Gaea.Swarm renderer
//  6. [mcp] - JSON-RPC tool server over stdio and HTTP
//  7. [render] - Graph export as DOT and SVG
//
// Supporting packages: [cache] stores rendered artifacts, [config] loads
// settings, [errors] defines coded errors, [observability] exposes hooks,
// and [buildinfo] carries version data.
//
// # Data Flow
//
//	.terrain file
//	     ↓
//	edit.Editor (lock, load)
//	     ↓
//	terrain.Document (AddNode, ConnectPort, SetProperty, ...)
//	     ↓
//	edit.Editor (validate, atomic save, unlock)
//	     ↓
//	swarm.Build (Gaea.Swarm --Filename ...)
//
// The CLI in internal/cli and the tool server in [mcp] both go through
// [edit.Editor], so edits from either side are serialized per file.
package pkg
