// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolver translates between live entities and the
// [ref.Reference] values that requests store.
//
// A [Resolver] handles exactly one entity kind. It recognizes live
// entities of its kind (Matches), produces their references
// (Reference), wraps references in lazily-resolving proxies (Proxy),
// and names the [Service] that fetches entities of its kind in bulk.
//
// A [Registry] is the ordered set of resolvers the process uses. It is
// built once at startup with [NewRegistry], never mutated afterwards,
// and passed by pointer to every component that resolves references.
// Lookups need no locking.
//
// Resolution failures are soft. A proxy whose entity no longer exists
// resolves to nil and reports itself as a ghost; a reference whose
// kind no resolver handles yields [ErrUnknownReferenceKind], which
// read paths turn into [UnknownGhost] projections instead of failing.
package resolver
