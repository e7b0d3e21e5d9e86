// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/requests/lib/ref"
)

// RequestVersion is the current schema version of stored requests.
// Increment when adding fields that existing code must not silently
// drop during read-modify-write.
const RequestVersion = 1

// Request is the stored content of a request.
type Request struct {
	// Version is the schema version (see RequestVersion). Code that
	// rewrites a stored request calls CanModify first.
	Version int `json:"version"`

	// ID is the internal id, a UUID assigned at creation. Never
	// shown in links.
	ID string `json:"id"`

	// Number is the external id ("req-3f9a") used in links and by
	// clients. Unique among requests; lookups try it before ID.
	Number string `json:"number"`

	// Type is the request type id. The type decides which actions
	// exist, which reference kinds each slot accepts, and which
	// statuses are open.
	Type string `json:"request_type_id"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Status is the lifecycle status. Mutated only by actions.
	Status string `json:"status"`

	// CreatedBy is the creator. Required.
	CreatedBy ref.Reference `json:"created_by"`

	// Receiver is who decides the request. Nil when the type allows
	// a null receiver.
	Receiver *ref.Reference `json:"receiver,omitempty"`

	// Topic is what the request is about, usually a record.
	Topic *ref.Reference `json:"topic,omitempty"`

	// Reviewers are additional participants with read and comment
	// access. Order is preserved.
	Reviewers []ref.Reference `json:"reviewers,omitempty"`

	// ExpiresAt is when an open request expires. Empty for requests
	// that never expire.
	ExpiresAt string `json:"expires_at,omitempty"`

	CreatedAt string `json:"created"`
	UpdatedAt string `json:"updated"`

	// Revision increments on every stored update. Writers pass the
	// revision they read; the store rejects stale writes.
	Revision int `json:"revision_id"`

	// IsDeleted hides the request from lookups and search without
	// removing its row or timeline.
	IsDeleted bool `json:"is_deleted,omitempty"`
}

// CanModify reports whether this code may rewrite the stored request
// without dropping fields written by a newer version.
func (r *Request) CanModify() error {
	if r.Version > RequestVersion {
		return fmt.Errorf("request %s has schema version %d, this build supports %d; refusing to modify",
			r.ID, r.Version, RequestVersion)
	}
	return nil
}

// ReceiverReference returns the receiver, or the null reference.
func (r *Request) ReceiverReference() ref.Reference {
	if r.Receiver == nil {
		return ref.Reference{}
	}
	return *r.Receiver
}

// TopicReference returns the topic, or the null reference.
func (r *Request) TopicReference() ref.Reference {
	if r.Topic == nil {
		return ref.Reference{}
	}
	return *r.Topic
}

// Validate checks structural invariants that hold for every request
// regardless of type. Type-specific slot rules are checked by the
// request type.
func (r *Request) Validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if r.Number == "" {
		errs = append(errs, errors.New("number is required"))
	}
	if r.Type == "" {
		errs = append(errs, errors.New("request_type_id is required"))
	}
	if r.Status == "" {
		errs = append(errs, errors.New("status is required"))
	}
	if r.CreatedBy.IsZero() {
		errs = append(errs, errors.New("created_by is required"))
	}
	seen := make(map[ref.Reference]bool, len(r.Reviewers))
	for i, reviewer := range r.Reviewers {
		if reviewer.IsZero() {
			errs = append(errs, fmt.Errorf("reviewers[%d] is null", i))
		} else if seen[reviewer] {
			errs = append(errs, fmt.Errorf("reviewers[%d]: duplicate reviewer %s", i, reviewer))
		}
		seen[reviewer] = true
	}
	for name, value := range map[string]string{"created": r.CreatedAt, "updated": r.UpdatedAt} {
		if _, err := ParseTimestamp(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if r.ExpiresAt != "" {
		if _, err := ParseTimestamp(r.ExpiresAt); err != nil {
			errs = append(errs, fmt.Errorf("expires_at: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid request %q: %w", r.ID, errors.Join(errs...))
	}
	return nil
}

// RequestDocument is the dump form of a request: stored content plus
// calculated fields.
type RequestDocument struct {
	Request

	IsOpen    bool `json:"is_open"`
	IsExpired bool `json:"is_expired"`

	// LastReply is the most recent comment, or nil.
	LastReply *EventDocument `json:"last_reply,omitempty"`

	// LastActivity is max(updated, last_reply.created). Always set
	// by a dump; its presence tells a loader that the calculated
	// fields were dumped and may seed the cache.
	LastActivity string `json:"last_activity,omitempty"`
}
