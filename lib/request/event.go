// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"fmt"
	"slices"

	"github.com/bureau-foundation/requests/lib/permission"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// Event is the in-memory form of one request event with its cached
// children preview.
type Event struct {
	content schema.Event
	typ     *EventType

	computed eventCache
}

type eventCache struct {
	children *Children
}

// Children is a bounded preview of an event's replies.
type Children struct {
	// Preview holds at most the preview limit of replies, newest
	// first.
	Preview []schema.Event

	// Total is the number of replies.
	Total int

	// HasMore reports Total > limit.
	HasMore bool
}

// NewEvent wraps stored content with its type.
func NewEvent(types *EventTypeRegistry, content schema.Event) (*Event, error) {
	typ, err := types.Lookup(content.Type)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", content.ID, err)
	}
	return &Event{content: content, typ: typ}, nil
}

// Content returns a copy of the stored content.
func (e *Event) Content() schema.Event {
	content := e.content
	if content.Payload != nil {
		payload := *content.Payload
		content.Payload = &payload
	}
	return content
}

func (e *Event) ID() string        { return e.content.ID }
func (e *Event) RequestID() string { return e.content.RequestID }
func (e *Event) ParentID() string  { return e.content.ParentID }
func (e *Event) Type() *EventType  { return e.typ }

// Relations implements permission.Related: "author" for the identity
// that created the event.
func (e *Event) Relations(identity permission.Identity) []string {
	if identity.Matches(e.content.CreatedBy) {
		return []string{"author"}
	}
	return nil
}

// Children returns the preview of this event's replies: the newest
// limit replies, newest first, with the total count.
func (e *Event) Children(ctx context.Context, source EventSource, limit int, options ...CacheOption) (*Children, error) {
	applied := applyCacheOptions(options)
	if e.computed.children != nil && !applied.bypass {
		return e.computed.children, nil
	}

	total, err := source.CountChildren(ctx, e.content.ID)
	if err != nil {
		return nil, fmt.Errorf("counting replies to %s: %w", e.content.ID, err)
	}
	children := &Children{Total: total, HasMore: total > limit}
	if total > 0 {
		children.Preview, err = source.Children(ctx, e.content.ID, limit)
		if err != nil {
			return nil, fmt.Errorf("listing replies to %s: %w", e.content.ID, err)
		}
	}

	if !applied.bypass {
		e.computed.children = children
	}
	return children, nil
}

// AllChildren returns every reply in creation order. Unbounded: for
// export, cascade, and administrative operations. Never cached.
func (e *Event) AllChildren(ctx context.Context, source EventSource) ([]schema.Event, error) {
	children, err := source.Children(ctx, e.content.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("listing replies to %s: %w", e.content.ID, err)
	}
	slices.Reverse(children)
	return children, nil
}
