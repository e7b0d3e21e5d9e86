// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory stores the entities that requests point at
// (users, groups, records, communities) and provides a resolver for
// each kind.
//
// Entities live in one SQLite table keyed by (kind, id), each row
// holding the CBOR-encoded entity document. Each kind is served by a
// [KindService], which implements resolver.Service with a single
// SELECT ... IN query for batched reads.
//
// [Resolvers] builds the resolver set in the default priority order.
// The user resolver also recognizes the system identity
// ({"user": "system"}), which has no row and is never fetched, and
// hides email addresses from identities lacking "user/read-email".
package directory
