// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"slices"

	"github.com/bureau-foundation/requests/lib/ref"
)

// Identity is the caller on whose behalf an operation runs.
type Identity struct {
	// ID is the user id of the caller. ref.SystemID for the system
	// identity.
	ID string `json:"id"`

	// Groups lists the group ids the caller belongs to. A request
	// whose receiver is {group: g} treats every member of g as its
	// receiver.
	Groups []string `json:"groups,omitempty"`

	// Grants are the caller's own grants, evaluated in addition to
	// the policy-wide grants.
	Grants []Grant `json:"grants,omitempty"`
}

// System returns the system identity. The system identity passes
// every permission check and is the creator of events emitted by the
// service itself.
func System() Identity { return Identity{ID: ref.SystemID} }

// IsSystem reports whether i is the system identity.
func (i Identity) IsSystem() bool { return i.ID == ref.SystemID }

// IsAnonymous reports whether i carries no user id.
func (i Identity) IsAnonymous() bool { return i.ID == "" }

// Reference returns the user reference for this identity, or the null
// reference for an anonymous identity.
func (i Identity) Reference() ref.Reference {
	if i.IsAnonymous() {
		return ref.Reference{}
	}
	if i.IsSystem() {
		return ref.System()
	}
	reference, err := ref.New(ref.KindUser, i.ID)
	if err != nil {
		return ref.Reference{}
	}
	return reference
}

// Matches reports whether the identity is the entity named by
// reference, directly ({user: id}) or through group membership
// ({group: g}).
func (i Identity) Matches(reference ref.Reference) bool {
	if reference.IsZero() || i.IsAnonymous() {
		return false
	}
	switch reference.Kind() {
	case ref.KindUser:
		return reference.ID() == i.ID
	case ref.KindGroup:
		return slices.Contains(i.Groups, reference.ID())
	}
	return false
}
