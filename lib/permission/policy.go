// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import "slices"

// RelationAny is reported for every entity.
const RelationAny = "any"

// Grant authorizes the actions matching any of Actions on entities
// whose relation to the identity matches any of Targets. An empty
// Targets list applies to every entity.
type Grant struct {
	Actions []string `json:"actions" yaml:"actions"`
	Targets []string `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// Related is implemented by entities that stand in a relation to an
// identity: requests report the slots the identity occupies, users
// report "self".
type Related interface {
	Relations(identity Identity) []string
}

// Policy decides whether identity may perform action on target.
// target is the entity being acted on (a request, an event, a user
// record); it may be nil for actions that have no entity.
type Policy interface {
	Can(identity Identity, action string, target any) bool
}

// GrantPolicy evaluates the policy-wide Grants and the identity's own
// grants. Identities listed in Admins and the system identity are
// allowed everything.
type GrantPolicy struct {
	Grants []Grant
	Admins []string
}

// Can implements Policy.
func (p *GrantPolicy) Can(identity Identity, action string, target any) bool {
	if identity.IsSystem() || (!identity.IsAnonymous() && slices.Contains(p.Admins, identity.ID)) {
		return true
	}

	relations := []string{RelationAny}
	if related, ok := target.(Related); ok && target != nil {
		relations = append(relations, related.Relations(identity)...)
	}

	return grantsAllow(p.Grants, action, relations) || grantsAllow(identity.Grants, action, relations)
}

func grantsAllow(grants []Grant, action string, relations []string) bool {
	for _, grant := range grants {
		if grantMatches(grant, action, relations) {
			return true
		}
	}
	return false
}

func grantMatches(grant Grant, action string, relations []string) bool {
	if !MatchAnyPattern(grant.Actions, action) {
		return false
	}
	if len(grant.Targets) == 0 {
		return true
	}
	for _, relation := range relations {
		if MatchAnyPattern(grant.Targets, relation) {
			return true
		}
	}
	return false
}

// AllowAll permits every action. For development deployments and
// tests that are not about permissions.
type AllowAll struct{}

// Can implements Policy.
func (AllowAll) Can(Identity, string, any) bool { return true }

// DefaultGrants is the relation-based grant set used when the
// configuration names none: participants read and comment, the
// creator manages the request, the receiver decides it, authors edit
// their own comments.
func DefaultGrants() []Grant {
	return []Grant{
		{Actions: []string{"request/read", "request/comment"}, Targets: []string{"creator", "receiver", "reviewer"}},
		{Actions: []string{"request/submit", "request/cancel", "request/delete", "request/update"}, Targets: []string{"creator"}},
		{Actions: []string{"request/accept", "request/decline"}, Targets: []string{"receiver"}},
		{Actions: []string{"event/update", "event/delete"}, Targets: []string{"author"}},
		{Actions: []string{"request/create"}},
		{Actions: []string{"user/read-email"}, Targets: []string{"self"}},
	}
}
