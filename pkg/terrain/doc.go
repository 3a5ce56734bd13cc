// Package terrain implements the document core for Gaea terrain project
// files: loading, the reference arena, graph mutation and ordered
// serialization.
//
// # Overview
//
// A .terrain file is a reference-preserving JSON document (see package
// tree). Its single asset holds a graph section ("Terrain") whose "Nodes"
// object maps decimal node ids to node objects. Each node carries its type
// discriminator, an open-ended bag of type-specific properties, and the
// fixed keys Id, Name, Position, Ports and Modifiers. Edges are stored on
// the destination port as a connection record:
//
//	"Record": {"$id": "42", "From": 1, "To": 2, "FromPort": "Out", "ToPort": "In", "IsValid": true}
//
// # Lifecycle
//
// A [Document] is produced by [Load], [LoadBytes], [ReadFile] or
// [CreateEmpty], edited in memory with [Document.AddNode],
// [Document.RemoveNode], [Document.ConnectPort], [Document.DisconnectPort]
// and [Document.SetProperty], and persisted with [Document.Write] or
// [WriteFile]. Mutations never perform I/O, and a mutation that returns an
// error leaves the document exactly as it was.
//
// # Reference Ids
//
// Every object may declare a "$id" and be aliased elsewhere by "$ref". The
// [Allocator] mints ids above the largest id present in the document. One
// allocator is threaded through all id-minting steps of a single mutation
// so that no two objects created by that mutation receive the same id.
//
// # Errors
//
// Failures carry codes from package errors: FORMAT_ERROR for structurally
// invalid files, NOT_FOUND for unknown nodes or ports, ALREADY_DISCONNECTED
// when disconnecting an unconnected port, INVALID_INPUT for rejected
// arguments and IO_ERROR for file failures.
//
// # Concurrency
//
// Documents are not safe for concurrent use. The file functions perform no
// locking; callers editing the same path from several goroutines or
// processes must serialize those edits (see package edit).
package terrain
