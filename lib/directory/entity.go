// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
)

// User is a person who can create, receive, and review requests.
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email,omitempty"`
	Profile  Profile `json:"profile"`
	Active   bool    `json:"active"`
}

// Profile is the displayable part of a user.
type Profile struct {
	FullName     string   `json:"full_name,omitempty"`
	Affiliations []string `json:"affiliations,omitempty"`
}

// Relations reports "self" when identity is this user.
func (u *User) Relations(identity permission.Identity) []string {
	if identity.ID == u.ID {
		return []string{"self"}
	}
	return nil
}

// Group is a named set of users. A request addressed to a group is
// received by every member.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Record is a repository record, the usual topic of a request.
type Record struct {
	ID       string         `json:"id"`
	Metadata RecordMetadata `json:"metadata"`
	Owners   []string       `json:"owners,omitempty"`
}

// RecordMetadata holds the displayable metadata of a record or
// community.
type RecordMetadata struct {
	Title string `json:"title"`
}

// Relations reports "owner" when identity owns the record.
func (r *Record) Relations(identity permission.Identity) []string {
	if slices.Contains(r.Owners, identity.ID) {
		return []string{"owner"}
	}
	return nil
}

// Community is a curated collection that records are submitted to.
type Community struct {
	ID       string         `json:"id"`
	Slug     string         `json:"slug"`
	Metadata RecordMetadata `json:"metadata"`
}

// identify returns the kind and id of a directory entity.
func identify(entity any) (kind, id string, err error) {
	switch typed := entity.(type) {
	case *User:
		kind, id = ref.KindUser, typed.ID
	case *Group:
		kind, id = ref.KindGroup, typed.ID
	case *Record:
		kind, id = ref.KindRecord, typed.ID
	case *Community:
		kind, id = ref.KindCommunity, typed.ID
	default:
		return "", "", fmt.Errorf("directory: unsupported entity type %T", entity)
	}
	if id == "" {
		return "", "", fmt.Errorf("directory: %s has no id", kind)
	}
	if id == ref.SystemID && kind == ref.KindUser {
		return "", "", fmt.Errorf("directory: user id %q is reserved", id)
	}
	return kind, id, nil
}
