// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requestdef

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/bureau-foundation/requests/lib/request"
)

// Definition is the file form of a request type.
type Definition struct {
	TypeID string `json:"type_id"`
	Name   string `json:"name"`

	// OpenStates defaults to ["open"].
	OpenStates []string `json:"open_states,omitempty"`

	// Actions overrides the built-in action table by name. A null
	// entry removes that action.
	Actions map[string]*ActionDefinition `json:"actions,omitempty"`

	// Slot rules. An omitted slot takes the default type's rule.
	Creator   *request.SlotRule `json:"creator,omitempty"`
	Receiver  *request.SlotRule `json:"receiver,omitempty"`
	Topic     *request.SlotRule `json:"topic,omitempty"`
	Reviewers *request.SlotRule `json:"reviewers,omitempty"`

	// ExpiresIn is a Go duration ("720h"). Empty never expires.
	ExpiresIn string `json:"expires_in,omitempty"`

	CommentsWhenClosed bool `json:"comments_when_closed,omitempty"`

	// EventTypes declares custom event types the type's actions emit.
	EventTypes []EventTypeDefinition `json:"event_types,omitempty"`
}

// ActionDefinition is one row of a type's action table.
type ActionDefinition struct {
	// From defaults to the built-in action's From, or to the open
	// states for a custom action.
	From []string `json:"from,omitempty"`
	To   string   `json:"to,omitempty"`

	// Event is the event type id emitted, or "" for none. Omitting
	// the key on a built-in action keeps the built-in event.
	Event *string `json:"event,omitempty"`
}

// EventTypeDefinition is the file form of a custom event type.
type EventTypeDefinition struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AllowThreading bool   `json:"allow_threading,omitempty"`
	AllowEdit      bool   `json:"allow_edit,omitempty"`
	System         bool   `json:"system,omitempty"`
}

// Validate checks the definition for structural issues and returns
// human-readable descriptions. An empty list means the definition is
// valid as far as it can be checked without the event type registry.
func (d *Definition) Validate() []string {
	var issues []string
	if d.TypeID == "" {
		issues = append(issues, "type_id is required")
	}
	if d.ExpiresIn != "" {
		if duration, err := time.ParseDuration(d.ExpiresIn); err != nil {
			issues = append(issues, fmt.Sprintf("expires_in %q: %v", d.ExpiresIn, err))
		} else if duration < 0 {
			issues = append(issues, fmt.Sprintf("expires_in %q is negative", d.ExpiresIn))
		}
	}

	for _, name := range slices.Sorted(maps.Keys(d.Actions)) {
		action := d.Actions[name]
		if action == nil {
			continue
		}
		for _, status := range action.From {
			if status == "" {
				issues = append(issues, fmt.Sprintf("actions.%s: empty status in from", name))
			}
		}
		_, builtin := request.DefaultActions()[request.ActionKind(name)]
		if !builtin && action.To == "" && (action.Event == nil || *action.Event == "") {
			issues = append(issues, fmt.Sprintf("actions.%s: custom action needs to or event", name))
		}
	}

	seen := make(map[string]bool, len(d.EventTypes))
	for index, eventType := range d.EventTypes {
		switch {
		case eventType.ID == "":
			issues = append(issues, fmt.Sprintf("event_types[%d]: id is required", index))
		case seen[eventType.ID]:
			issues = append(issues, fmt.Sprintf("event_types[%d]: duplicate id %q", index, eventType.ID))
		}
		seen[eventType.ID] = true
	}
	return issues
}

// Type converts the definition into a request type. Fails when
// Validate reports issues or the resulting type is invalid.
func (d *Definition) Type() (*request.Type, error) {
	if issues := d.Validate(); len(issues) > 0 {
		errs := make([]error, len(issues))
		for i, issue := range issues {
			errs[i] = errors.New(issue)
		}
		return nil, fmt.Errorf("request type definition %q: %w", d.TypeID, errors.Join(errs...))
	}

	base := request.DefaultType()
	typ := &request.Type{
		ID:                 d.TypeID,
		Name:               d.Name,
		OpenStates:         base.OpenStates,
		Actions:            request.DefaultActions(),
		Creator:            slotOrDefault(d.Creator, base.Creator),
		Receiver:           slotOrDefault(d.Receiver, base.Receiver),
		Topic:              slotOrDefault(d.Topic, base.Topic),
		Reviewers:          slotOrDefault(d.Reviewers, base.Reviewers),
		CommentsWhenClosed: d.CommentsWhenClosed,
	}
	if typ.Name == "" {
		typ.Name = d.TypeID
	}
	if len(d.OpenStates) > 0 {
		typ.OpenStates = slices.Clone(d.OpenStates)
	}
	if d.ExpiresIn != "" {
		typ.ExpiresIn, _ = time.ParseDuration(d.ExpiresIn)
	}

	for name, action := range d.Actions {
		kind := request.ActionKind(name)
		if action == nil {
			delete(typ.Actions, kind)
			continue
		}
		spec := typ.Actions[kind]
		if action.From != nil {
			spec.From = slices.Clone(action.From)
		}
		if action.To != "" {
			spec.To = action.To
		}
		if action.Event != nil {
			spec.Event = *action.Event
		}
		typ.Actions[kind] = spec
	}

	if err := typ.Validate(); err != nil {
		return nil, err
	}
	return typ, nil
}

// CustomEventTypes returns the custom event types the definition declares.
func (d *Definition) CustomEventTypes() []*request.EventType {
	types := make([]*request.EventType, len(d.EventTypes))
	for i, definition := range d.EventTypes {
		types[i] = &request.EventType{
			ID:             definition.ID,
			Name:           definition.Name,
			AllowThreading: definition.AllowThreading,
			AllowEdit:      definition.AllowEdit,
			System:         definition.System,
		}
	}
	return types
}

func slotOrDefault(rule *request.SlotRule, fallback request.SlotRule) request.SlotRule {
	if rule == nil {
		return fallback
	}
	return request.SlotRule{Kinds: slices.Clone(rule.Kinds), Nullable: rule.Nullable}
}

// Build converts definitions into the built-in types plus one type
// per definition, and collects their custom event types. Duplicate
// ids are reported when the registries are built.
func Build(definitions []*Definition) ([]*request.Type, []*request.EventType, error) {
	types := []*request.Type{request.DefaultType()}
	var eventTypes []*request.EventType
	var errs []error
	for _, definition := range definitions {
		typ, err := definition.Type()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		types = append(types, typ)
		eventTypes = append(eventTypes, definition.CustomEventTypes()...)
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return types, eventTypes, nil
}
