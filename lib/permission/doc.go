// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission answers one question for the request service:
// may this identity perform this action on this entity?
//
// A [Grant] pairs action patterns ("request/accept", "request/**")
// with target patterns. Targets are relations between the identity and
// the entity, not entity ids: a request reports "creator", "receiver",
// "reviewer", or "topic" for an identity standing in that slot, and a
// user entity reports "self" for the identity whose id it carries.
// Every entity also reports "any", so a grant targeting "**" applies
// regardless of relation. A grant with no targets applies to every
// entity.
//
// Patterns use hierarchical glob matching on "/"-separated strings:
// "*" matches one segment, "**" matches any number of segments.
//
// The [Policy] interface is the narrow boundary the rest of the
// service consumes. [GrantPolicy] is the configured implementation;
// [AllowAll] exists for development deployments and tests.
package permission
