// Package tree provides an ordered, reference-preserving JSON tree.
//
// # Overview
//
// Project files written by Gaea are JSON documents produced by a serializer
// that preserves object identity: any object may declare a reference id with
// a "$id" key and be referenced elsewhere by an alias object that carries
// only "$ref". Variant objects are tagged with "$type", and list-like values
// are wrapped in a container object whose items live under "$values".
//
// The consuming application reads these files in a single forward pass, so
// two properties of the text are load-bearing:
//
//   - Object key order. "$id", "$ref", "$type" and "$values" must precede
//     every other key of their object, in that relative order.
//   - Declaration order. A "$id" must appear in the text before any "$ref"
//     that points to it.
//
// Go maps lose key order, so this package models documents with its own
// value types: [Object] keeps keys in insertion order, [Number] keeps the
// literal text of a JSON number (so 26000.0 stays 26000.0), and [Array],
// [String], [Bool] and [Null] cover the rest.
//
// # Parsing and Encoding
//
// [Parse] and [Decode] build a tree from JSON text. [Encode] and [Marshal]
// write it back with deterministic two-space indentation, applying the
// leading-key rule to every object regardless of the order keys were
// inserted in. [Equal] compares two trees structurally.
//
// # References
//
// This package only knows the shape of reference ids ([Object.ID],
// [Object.Ref], [Object.IsAlias]); it does not resolve them. Resolution and
// allocation live with the document model in package terrain.
//
// # Concurrency
//
// Trees are not safe for concurrent mutation.
package tree
