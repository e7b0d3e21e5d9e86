// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides the entity reference: an immutable, validated
// pointer to any resolvable entity (user, group, record, community,
// system identity) in the form {kind: id}.
//
// A Reference never holds a live object. It is the restorable form
// that requests and events store for their creator, receiver, topic,
// and reviewer slots, and the form in which those slots are dumped to
// the search index and sent over the wire.
//
// Three serialization forms exist:
//   - JSON and CBOR: a map with exactly one key, {"user": "42"}
//   - Text: "kind:id" ("user:42"), used for SQLite columns, index
//     keys, and log attributes
//   - Go: the Reference value itself, comparable with ==
//
// Reference intentionally does not implement encoding.TextMarshaler.
// lib/codec encodes TextMarshaler values as CBOR strings, and the wire
// contract for references is the single-key map.
package ref
