// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration for
// the request service.
//
// Two serialization formats are used with a clear boundary:
//
//   - JSON for external interfaces: request-type definition files,
//     result projections handed to the expansion engine, and anything
//     a human reads.
//   - CBOR for internal protocols: the service socket, stored request
//     and event documents in SQLite, and directory entity documents.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical document always produces identical bytes, which keeps
// stored documents stable across rewrites.
//
// For buffer-oriented operations (stored documents):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct tags
//
// fxamacker/cbor reads `json` tags when `cbor` tags are absent, so
// types that cross both formats (request and event documents) carry
// only `json` tags. Types that only ever travel as CBOR (socket
// envelopes) carry `cbor` tags. Never use both on the same field.
package codec
