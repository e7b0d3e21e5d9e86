// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"testing"

	"github.com/bureau-foundation/requests/lib/ref"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"request/accept", "request/accept", true},
		{"request/accept", "request/decline", false},
		{"request/*", "request/accept", true},
		{"request/*", "request/a/b", false},
		{"request/**", "request", true},
		{"request/**", "request/a/b", true},
		{"request/**", "requests/a", false},
		{"**/read", "request/read", true},
		{"**/read", "read", true},
		{"**", "anything/at/all", true},
		{"a/**/b", "a/x/b", false},
		{"[", "[", false},
	}
	for _, test := range tests {
		if got := MatchPattern(test.pattern, test.value); got != test.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", test.pattern, test.value, got, test.want)
		}
	}
}

// relatedEntity reports a fixed relation for one identity id.
type relatedEntity struct {
	id       string
	relation string
}

func (e relatedEntity) Relations(identity Identity) []string {
	if identity.ID == e.id {
		return []string{e.relation}
	}
	return nil
}

func TestGrantPolicy(t *testing.T) {
	policy := &GrantPolicy{
		Grants: []Grant{
			{Actions: []string{"request/accept"}, Targets: []string{"receiver"}},
			{Actions: []string{"request/create"}},
		},
		Admins: []string{"admin"},
	}
	request := relatedEntity{id: "2", relation: "receiver"}

	if !policy.Can(Identity{ID: "2"}, "request/accept", request) {
		t.Error("receiver denied request/accept")
	}
	if policy.Can(Identity{ID: "3"}, "request/accept", request) {
		t.Error("non-receiver allowed request/accept")
	}
	if !policy.Can(Identity{ID: "3"}, "request/create", nil) {
		t.Error("untargeted grant did not apply")
	}
	if !policy.Can(Identity{ID: "admin"}, "request/decline", request) {
		t.Error("admin denied")
	}
	if !policy.Can(System(), "request/expire", request) {
		t.Error("system identity denied")
	}
	if policy.Can(Identity{}, "request/accept", request) {
		t.Error("anonymous identity allowed request/accept")
	}
}

func TestIdentityGrants(t *testing.T) {
	policy := &GrantPolicy{}
	identity := Identity{ID: "5", Grants: []Grant{{Actions: []string{"directory/**"}, Targets: []string{"**"}}}}
	if !policy.Can(identity, "directory/write", nil) {
		t.Error("identity grant with ** target did not apply")
	}
	if policy.Can(identity, "request/read", nil) {
		t.Error("identity grant applied to unrelated action")
	}
}

func TestIdentityMatches(t *testing.T) {
	identity := Identity{ID: "7", Groups: []string{"editors"}}
	if !identity.Matches(ref.User("7")) {
		t.Error("identity does not match its own user reference")
	}
	if !identity.Matches(ref.MustNew(ref.KindGroup, "editors")) {
		t.Error("identity does not match its group")
	}
	if identity.Matches(ref.MustNew(ref.KindRecord, "7")) {
		t.Error("identity matches a record with the same id")
	}
	if System().Reference() != ref.System() {
		t.Error("System().Reference() is not the system reference")
	}
}
