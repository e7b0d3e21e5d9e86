// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"fmt"

	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// EventType describes a kind of request event.
type EventType struct {
	ID   string
	Name string

	// AllowThreading permits replies to events of this type, and
	// events of this type to be replies.
	AllowThreading bool

	// AllowEdit permits soft edits of the payload content.
	AllowEdit bool

	// System types are emitted by actions only and cannot be posted
	// by callers.
	System bool
}

// DefaultEventTypes returns the built-in event types.
func DefaultEventTypes() []*EventType {
	return []*EventType{
		{ID: schema.EventComment, Name: "comment", AllowThreading: true, AllowEdit: true},
		{ID: schema.EventRemoved, Name: "removed", System: true},
		{ID: schema.EventAccepted, Name: "accepted", System: true},
		{ID: schema.EventDeclined, Name: "declined", System: true},
		{ID: schema.EventCancelled, Name: "cancelled", System: true},
		{ID: schema.EventExpired, Name: "expired", System: true},
	}
}

// EventTypeRegistry is the immutable set of event types.
type EventTypeRegistry struct {
	types map[string]*EventType
}

// NewEventTypeRegistry registers the built-in types followed by
// custom. A custom type reusing a built-in or another custom id fails
// with ErrDuplicateType.
func NewEventTypeRegistry(custom ...*EventType) (*EventTypeRegistry, error) {
	registry := &EventTypeRegistry{types: make(map[string]*EventType)}
	for _, typ := range append(DefaultEventTypes(), custom...) {
		if typ.ID == "" {
			return nil, fmt.Errorf("event type with empty id")
		}
		if _, exists := registry.types[typ.ID]; exists {
			return nil, fmt.Errorf("event type %q: %w", typ.ID, ErrDuplicateType)
		}
		registry.types[typ.ID] = typ
	}
	return registry, nil
}

// Lookup returns the event type registered under id.
func (r *EventTypeRegistry) Lookup(id string) (*EventType, error) {
	typ, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnknownEventType)
	}
	return typ, nil
}

// typeOrPlaceholder returns the registered type, or a placeholder
// without threading or edits for an id that is no longer registered.
// Used when loading stored events, which must stay readable after a
// custom type is removed from the configuration.
func (r *EventTypeRegistry) typeOrPlaceholder(id string) *EventType {
	if typ, ok := r.types[id]; ok {
		return typ
	}
	return &EventType{ID: id, Name: id}
}

// CheckReply validates a reply of type childType to parent: both
// types must allow threading, and parent must not itself be a reply.
func (r *EventTypeRegistry) CheckReply(childType string, parent *schema.Event) error {
	child, err := r.Lookup(childType)
	if err != nil {
		return err
	}
	if !child.AllowThreading {
		return fmt.Errorf("events of type %q cannot be replies: %w", child.ID, ErrThreadingNotSupported)
	}
	parentType, err := r.Lookup(parent.Type)
	if err != nil || !parentType.AllowThreading {
		return fmt.Errorf("event %s of type %q does not accept replies: %w", parent.ID, parent.Type, ErrThreadingNotSupported)
	}
	if parent.ParentID != "" {
		return fmt.Errorf("event %s is itself a reply to %s: %w", parent.ID, parent.ParentID, ErrNestedThreadingNotAllowed)
	}
	return nil
}
