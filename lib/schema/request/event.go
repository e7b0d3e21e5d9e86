// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/requests/lib/ref"
)

// Event is the stored content of a request event: a comment, a removed
// comment, or a system event recording an action.
type Event struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`

	// Type is the event type id (EventComment, EventAccepted, or a
	// custom type).
	Type string `json:"type"`

	// ParentID makes this event a reply. Only events whose type
	// allows threading can be parents, and a parent is never itself
	// a reply.
	ParentID string `json:"parent_id,omitempty"`

	CreatedBy ref.Reference `json:"created_by"`
	CreatedAt string        `json:"created"`
	UpdatedAt string        `json:"updated"`
	Revision  int           `json:"revision_id"`

	Payload *Payload `json:"payload,omitempty"`
}

// Payload is the content of an event.
type Payload struct {
	// Content is HTML for comments.
	Content string `json:"content,omitempty"`

	// Format is always FormatHTML for stored comments.
	Format string `json:"format,omitempty"`

	// Event names the lifecycle transition a system event records
	// ("accepted", "expired").
	Event string `json:"event,omitempty"`
}

// Validate checks structural invariants. Threading rules depend on the
// event type registry and are checked by the request service.
func (e *Event) Validate() error {
	var errs []error
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if e.RequestID == "" {
		errs = append(errs, errors.New("request_id is required"))
	}
	if e.Type == "" {
		errs = append(errs, errors.New("type is required"))
	}
	if e.ParentID != "" && e.ParentID == e.ID {
		errs = append(errs, errors.New("parent_id refers to the event itself"))
	}
	if e.CreatedBy.IsZero() {
		errs = append(errs, errors.New("created_by is required"))
	}
	if _, err := ParseTimestamp(e.CreatedAt); err != nil {
		errs = append(errs, fmt.Errorf("created: %w", err))
	}
	if e.Type == EventComment {
		if e.Payload == nil || e.Payload.Content == "" {
			errs = append(errs, errors.New("comment content is required"))
		} else if e.Payload.Format != FormatHTML {
			errs = append(errs, fmt.Errorf("comment format %q, want %q", e.Payload.Format, FormatHTML))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid event %q: %w", e.ID, errors.Join(errs...))
	}
	return nil
}

// EventDocument is the dump form of an event.
type EventDocument struct {
	Event

	// ChildrenPreview holds the most recent replies, newest first,
	// bounded by the comment preview limit.
	ChildrenPreview []EventDocument `json:"children_preview,omitempty"`

	// ChildrenCount is the total number of replies. Nil when children
	// were not dumped; its presence tells a loader that the preview
	// may seed the cache.
	ChildrenCount *int `json:"children_count,omitempty"`

	HasMoreChildren bool `json:"has_more_children,omitempty"`
}
