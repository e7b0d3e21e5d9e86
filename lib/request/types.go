// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// ActionKind names an action. The built-in kinds cover the standard
// lifecycle; request types may register further kinds.
type ActionKind string

const (
	ActionSubmit  ActionKind = "submit"
	ActionAccept  ActionKind = "accept"
	ActionDecline ActionKind = "decline"
	ActionCancel  ActionKind = "cancel"
	ActionExpire  ActionKind = "expire"
	ActionDelete  ActionKind = "delete"
)

// Permission returns the permission action checked before executing
// this action ("request/accept").
func (k ActionKind) Permission() string { return "request/" + string(k) }

// Slot names, as they appear in errors and slot rules.
const (
	SlotCreator   = "created_by"
	SlotReceiver  = "receiver"
	SlotTopic     = "topic"
	SlotReviewers = "reviewers"
)

// SlotRule restricts the references a slot accepts.
type SlotRule struct {
	// Kinds lists the accepted reference kinds.
	Kinds []string `json:"kinds"`

	// Nullable allows the slot to be empty.
	Nullable bool `json:"nullable"`
}

// Check validates one reference against the rule.
func (rule SlotRule) Check(slot string, reference ref.Reference) error {
	if reference.IsZero() {
		if rule.Nullable {
			return nil
		}
		return &SlotError{Slot: slot, Allowed: rule.Kinds}
	}
	if !slices.Contains(rule.Kinds, reference.Kind()) {
		return &SlotError{Slot: slot, Reference: reference, Allowed: rule.Kinds}
	}
	return nil
}

// ActionSpec is one row of a type's action table: when the action may
// run, what it does, and which event records it.
type ActionSpec struct {
	// From lists the statuses the action may run from. Nil means the
	// type's open states.
	From []string

	// To is the status after the action. Empty leaves the status
	// unchanged.
	To string

	// Event is the event type emitted when the action runs. Empty
	// emits nothing.
	Event string

	// Precondition is an additional check beyond From. Nil always
	// passes.
	Precondition func(request *Request, identity permission.Identity, now time.Time) bool

	// Effect mutates the request content after the status change.
	// Runs on a copy; an error discards the copy.
	Effect func(content *schema.Request, typ *Type, now time.Time) error
}

// Type is a request type: the single source of truth for which
// actions a request has, what each reference slot accepts, and which
// statuses are open.
type Type struct {
	ID   string
	Name string

	// OpenStates lists the statuses in which the request is open.
	// Defaults to {open}.
	OpenStates []string

	// Actions is the action table.
	Actions map[ActionKind]ActionSpec

	Creator   SlotRule
	Receiver  SlotRule
	Topic     SlotRule
	Reviewers SlotRule

	// ExpiresIn sets expires_at at submission. Zero means submitted
	// requests never expire.
	ExpiresIn time.Duration

	// CommentsWhenClosed allows comments on closed requests.
	CommentsWhenClosed bool
}

// IsOpen reports whether status is one of the type's open states.
func (t *Type) IsOpen(status string) bool {
	return slices.Contains(t.OpenStates, status)
}

// Action returns the table row for kind.
func (t *Type) Action(kind ActionKind) (ActionSpec, error) {
	spec, ok := t.Actions[kind]
	if !ok {
		return ActionSpec{}, fmt.Errorf("request type %s has no action %q: %w", t.ID, kind, ErrNoSuchAction)
	}
	return spec, nil
}

// ActionKinds returns the type's action kinds in a stable order.
func (t *Type) ActionKinds() []ActionKind {
	kinds := make([]ActionKind, 0, len(t.Actions))
	for kind := range t.Actions {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// CheckSlots validates every reference slot of content.
func (t *Type) CheckSlots(content *schema.Request) error {
	if err := t.Creator.Check(SlotCreator, content.CreatedBy); err != nil {
		return err
	}
	if err := t.Receiver.Check(SlotReceiver, content.ReceiverReference()); err != nil {
		return err
	}
	if err := t.Topic.Check(SlotTopic, content.TopicReference()); err != nil {
		return err
	}
	if len(content.Reviewers) == 0 && !t.Reviewers.Nullable {
		return &SlotError{Slot: SlotReviewers, Allowed: t.Reviewers.Kinds}
	}
	for _, reviewer := range content.Reviewers {
		if reviewer.IsZero() {
			return &SlotError{Slot: SlotReviewers, Allowed: t.Reviewers.Kinds}
		}
		if err := t.Reviewers.Check(SlotReviewers, reviewer); err != nil {
			return err
		}
	}
	return nil
}

// Kinds returns every reference kind any slot accepts.
func (t *Type) Kinds() []string {
	var kinds []string
	for _, rule := range []SlotRule{t.Creator, t.Receiver, t.Topic, t.Reviewers} {
		for _, kind := range rule.Kinds {
			if !slices.Contains(kinds, kind) {
				kinds = append(kinds, kind)
			}
		}
	}
	return kinds
}

// Validate checks the type definition for configuration errors.
func (t *Type) Validate() error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if len(t.OpenStates) == 0 {
		errs = append(errs, errors.New("at least one open state is required"))
	}
	if len(t.Creator.Kinds) == 0 {
		errs = append(errs, errors.New("creator slot accepts no kinds"))
	}
	for kind, spec := range t.Actions {
		if kind == "" {
			errs = append(errs, errors.New("action with empty name"))
		}
		if spec.To == "" && spec.Effect == nil && spec.Event == "" {
			errs = append(errs, fmt.Errorf("action %q does nothing", kind))
		}
	}
	if t.ExpiresIn < 0 {
		errs = append(errs, errors.New("expires_in is negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("request type %q: %w", t.ID, errors.Join(errs...))
	}
	return nil
}

// DefaultActions returns the standard lifecycle table:
//
//	submit   created → open
//	accept   open → accepted, emits A
//	decline  open → declined, emits D
//	cancel   open → cancelled, emits X
//	expire   open → expired, emits E, only once expires_at has passed
//	delete   created → deleted, soft-deletes the request
func DefaultActions() map[ActionKind]ActionSpec {
	return map[ActionKind]ActionSpec{
		ActionSubmit: {
			From: []string{schema.StatusCreated},
			To:   schema.StatusOpen,
			Effect: func(content *schema.Request, typ *Type, now time.Time) error {
				if typ.ExpiresIn > 0 && content.ExpiresAt == "" {
					content.ExpiresAt = schema.FormatTimestamp(now.Add(typ.ExpiresIn))
				}
				return nil
			},
		},
		ActionAccept:  {To: schema.StatusAccepted, Event: schema.EventAccepted},
		ActionDecline: {To: schema.StatusDeclined, Event: schema.EventDeclined},
		ActionCancel:  {To: schema.StatusCancelled, Event: schema.EventCancelled},
		ActionExpire: {
			To:    schema.StatusExpired,
			Event: schema.EventExpired,
			Precondition: func(request *Request, _ permission.Identity, now time.Time) bool {
				return request.IsExpired(now)
			},
		},
		ActionDelete: {
			From: []string{schema.StatusCreated},
			To:   schema.StatusDeleted,
			Effect: func(content *schema.Request, _ *Type, _ time.Time) error {
				content.IsDeleted = true
				return nil
			},
		},
	}
}

// DefaultTypeID is the id of the built-in general-purpose type.
const DefaultTypeID = "default"

// DefaultType returns the built-in general-purpose request type: a
// user asks a user or group about an optional record, community, or
// user, optionally with reviewers.
func DefaultType() *Type {
	return &Type{
		ID:         DefaultTypeID,
		Name:       "Request",
		OpenStates: []string{schema.StatusOpen},
		Actions:    DefaultActions(),
		Creator:    SlotRule{Kinds: []string{ref.KindUser}},
		Receiver:   SlotRule{Kinds: []string{ref.KindUser, ref.KindGroup}},
		Topic:      SlotRule{Kinds: []string{ref.KindRecord, ref.KindCommunity, ref.KindUser}, Nullable: true},
		Reviewers:  SlotRule{Kinds: []string{ref.KindUser, ref.KindGroup}, Nullable: true},

		CommentsWhenClosed: true,
	}
}

// TypeRegistry is the immutable set of request types, built once at
// startup.
type TypeRegistry struct {
	types map[string]*Type
	order []string
}

// NewTypeRegistry validates and registers types. Fails with
// ErrDuplicateType if two types share an id.
func NewTypeRegistry(types ...*Type) (*TypeRegistry, error) {
	registry := &TypeRegistry{types: make(map[string]*Type, len(types))}
	for _, typ := range types {
		if err := typ.Validate(); err != nil {
			return nil, err
		}
		if _, exists := registry.types[typ.ID]; exists {
			return nil, fmt.Errorf("request type %q: %w", typ.ID, ErrDuplicateType)
		}
		registry.types[typ.ID] = typ
		registry.order = append(registry.order, typ.ID)
	}
	return registry, nil
}

// Lookup returns the type registered under id.
func (r *TypeRegistry) Lookup(id string) (*Type, error) {
	typ, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnknownRequestType)
	}
	return typ, nil
}

// Types returns the registered types in registration order.
func (r *TypeRegistry) Types() []*Type {
	types := make([]*Type, len(r.order))
	for i, id := range r.order {
		types[i] = r.types[id]
	}
	return types
}

// CheckResolvable verifies that every kind any type's slots accept is
// handled by one of resolvableKinds. Run at startup so a type cannot
// accept references the service could never resolve.
func (r *TypeRegistry) CheckResolvable(resolvableKinds []string) error {
	var errs []error
	for _, typ := range r.Types() {
		for _, kind := range typ.Kinds() {
			if !slices.Contains(resolvableKinds, kind) {
				errs = append(errs, fmt.Errorf("request type %q accepts kind %q, which no resolver handles", typ.ID, kind))
			}
		}
	}
	return errors.Join(errs...)
}
