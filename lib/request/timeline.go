// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"fmt"

	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// Timeline is the arena of one request's events, addressed by id.
// Replies point at their parent by ParentID only; the arena keeps a
// per-parent index of child ids in creation order.
//
// Timeline implements EventSource, so a timeline loaded once answers
// every children and last-reply query for its request without further
// store round trips.
type Timeline struct {
	requestID string
	types     *EventTypeRegistry

	events   map[string]*Event
	order    []string
	children map[string][]string
}

// NewTimeline returns an empty timeline for requestID.
func NewTimeline(requestID string, types *EventTypeRegistry) *Timeline {
	return &Timeline{
		requestID: requestID,
		types:     types,
		events:    make(map[string]*Event),
		children:  make(map[string][]string),
	}
}

// LoadTimeline builds a timeline from stored events in creation
// order. Stored events are trusted: a comment that was later removed
// keeps its replies.
func LoadTimeline(requestID string, types *EventTypeRegistry, stored []schema.Event) (*Timeline, error) {
	timeline := NewTimeline(requestID, types)
	for _, content := range stored {
		if err := timeline.insert(content); err != nil {
			return nil, err
		}
	}
	return timeline, nil
}

// Append adds a new event, enforcing the threading rules: the event
// belongs to this request, its id is new, and if it is a reply its
// parent exists here, accepts replies, and is not itself a reply.
func (t *Timeline) Append(content schema.Event) (*Event, error) {
	if content.RequestID != t.requestID {
		return nil, fmt.Errorf("event %s belongs to request %s, not %s: %w", content.ID, content.RequestID, t.requestID, ErrValidation)
	}
	if _, exists := t.events[content.ID]; exists {
		return nil, fmt.Errorf("event %s already exists: %w", content.ID, ErrValidation)
	}
	if content.ParentID != "" {
		parent, ok := t.events[content.ParentID]
		if !ok {
			return nil, fmt.Errorf("parent event %s: %w", content.ParentID, ErrNotFound)
		}
		if err := t.types.CheckReply(content.Type, &parent.content); err != nil {
			return nil, err
		}
	}
	if err := t.insert(content); err != nil {
		return nil, err
	}
	return t.events[content.ID], nil
}

func (t *Timeline) insert(content schema.Event) error {
	if content.ID == "" {
		return fmt.Errorf("event without id: %w", ErrValidation)
	}
	t.events[content.ID] = &Event{content: content, typ: t.types.typeOrPlaceholder(content.Type)}
	t.order = append(t.order, content.ID)
	if content.ParentID != "" {
		t.children[content.ParentID] = append(t.children[content.ParentID], content.ID)
	}
	return nil
}

// Get returns the event with id.
func (t *Timeline) Get(id string) (*Event, bool) {
	event, ok := t.events[id]
	return event, ok
}

// Len returns the number of events.
func (t *Timeline) Len() int { return len(t.order) }

// TopLevel returns the events that are not replies, in creation order.
func (t *Timeline) TopLevel() []*Event {
	var events []*Event
	for _, id := range t.order {
		if event := t.events[id]; event.content.ParentID == "" {
			events = append(events, event)
		}
	}
	return events
}

// LastEvent implements EventSource.
func (t *Timeline) LastEvent(_ context.Context, requestID, eventType string) (*schema.Event, error) {
	if requestID != t.requestID {
		return nil, nil
	}
	for i := len(t.order) - 1; i >= 0; i-- {
		if event := t.events[t.order[i]]; event.content.Type == eventType {
			content := event.Content()
			return &content, nil
		}
	}
	return nil, nil
}

// Children implements EventSource.
func (t *Timeline) Children(_ context.Context, parentID string, limit int) ([]schema.Event, error) {
	ids := t.children[parentID]
	count := len(ids)
	if limit > 0 && limit < count {
		count = limit
	}
	children := make([]schema.Event, 0, count)
	for i := len(ids) - 1; i >= 0 && len(children) < count; i-- {
		children = append(children, t.events[ids[i]].Content())
	}
	return children, nil
}

// CountChildren implements EventSource.
func (t *Timeline) CountChildren(_ context.Context, parentID string) (int, error) {
	return len(t.children[parentID]), nil
}
