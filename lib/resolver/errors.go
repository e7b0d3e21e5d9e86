// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import "errors"

var (
	// ErrDuplicateResolver is returned by NewRegistry when two
	// resolvers share a type id or a kind.
	ErrDuplicateResolver = errors.New("duplicate resolver")

	// ErrNoMatchingResolver is returned when no registered resolver
	// claims a live entity. This is a programming or configuration
	// error, not a user error.
	ErrNoMatchingResolver = errors.New("no resolver matches entity")

	// ErrUnknownReferenceKind is returned when a reference names a
	// kind no registered resolver handles. Read paths treat it as a
	// ghost.
	ErrUnknownReferenceKind = errors.New("unknown reference kind")

	// ErrEntityNotFound is returned by Service.Read when the entity
	// does not exist.
	ErrEntityNotFound = errors.New("entity not found")
)
