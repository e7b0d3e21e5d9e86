// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/requests/lib/ref"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

func TestSlotRuleCheck(t *testing.T) {
	rule := SlotRule{Kinds: []string{ref.KindUser, ref.KindGroup}}
	nullable := SlotRule{Kinds: []string{ref.KindRecord}, Nullable: true}

	tests := []struct {
		name      string
		rule      SlotRule
		reference ref.Reference
		wantErr   bool
	}{
		{"accepted kind", rule, ref.User("1"), false},
		{"second accepted kind", rule, ref.MustNew(ref.KindGroup, "curators"), false},
		{"rejected kind", rule, ref.MustNew(ref.KindRecord, "rec-1"), true},
		{"null in required slot", rule, ref.Reference{}, true},
		{"null in nullable slot", nullable, ref.Reference{}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.rule.Check(SlotReceiver, test.reference)
			if (err != nil) != test.wantErr {
				t.Fatalf("Check = %v, wantErr %v", err, test.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidReferenceForSlot) {
				t.Errorf("error %v does not wrap ErrInvalidReferenceForSlot", err)
			}
		})
	}
}

func TestSlotErrorMessage(t *testing.T) {
	err := SlotRule{Kinds: []string{ref.KindUser}}.Check(SlotReceiver, ref.MustNew(ref.KindRecord, "rec-1"))
	var slotErr *SlotError
	if !errors.As(err, &slotErr) {
		t.Fatalf("error %T is not a *SlotError", err)
	}
	if slotErr.Slot != SlotReceiver || slotErr.Reference.Kind() != ref.KindRecord {
		t.Errorf("SlotError = %+v", slotErr)
	}
	if !strings.Contains(err.Error(), "receiver") || !strings.Contains(err.Error(), "record:rec-1") {
		t.Errorf("message %q does not name slot and reference", err.Error())
	}
}

func TestCheckSlotsReviewers(t *testing.T) {
	typ := mockType()
	content := schema.Request{
		CreatedBy: ref.User("1"),
		Receiver:  new(ref.Reference),
		Reviewers: []ref.Reference{ref.User("2"), ref.MustNew(ref.KindRecord, "rec-1")},
	}
	*content.Receiver = ref.User("2")
	if err := typ.CheckSlots(&content); !errors.Is(err, ErrInvalidReferenceForSlot) {
		t.Errorf("record reviewer: err = %v, want ErrInvalidReferenceForSlot", err)
	}

	content.Reviewers = nil
	if err := typ.CheckSlots(&content); err != nil {
		t.Errorf("no reviewers on nullable slot: %v", err)
	}

	typ.Reviewers.Nullable = false
	if err := typ.CheckSlots(&content); !errors.Is(err, ErrInvalidReferenceForSlot) {
		t.Errorf("no reviewers on required slot: err = %v", err)
	}
}

func TestTypeValidate(t *testing.T) {
	if err := DefaultType().Validate(); err != nil {
		t.Fatalf("DefaultType invalid: %v", err)
	}

	broken := &Type{
		Actions:   map[ActionKind]ActionSpec{"noop": {}},
		ExpiresIn: -1,
	}
	err := broken.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"id is required", "open state", "creator slot", `"noop" does nothing`, "negative"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestTypeAction(t *testing.T) {
	typ := mockType()
	if _, err := typ.Action(ActionAccept); err != nil {
		t.Errorf("Action(accept): %v", err)
	}
	if _, err := typ.Action("frobnicate"); !errors.Is(err, ErrNoSuchAction) {
		t.Errorf("Action(frobnicate) = %v, want ErrNoSuchAction", err)
	}
	kinds := typ.ActionKinds()
	if len(kinds) != 6 || kinds[0] != ActionAccept {
		t.Errorf("ActionKinds = %v", kinds)
	}
	if got := ActionAccept.Permission(); got != "request/accept" {
		t.Errorf("Permission = %q", got)
	}
}

func TestTypeRegistry(t *testing.T) {
	registry, err := NewTypeRegistry(DefaultType(), mockType())
	if err != nil {
		t.Fatalf("NewTypeRegistry: %v", err)
	}
	if typ, err := registry.Lookup("mock"); err != nil || typ.ID != "mock" {
		t.Errorf("Lookup(mock) = %v, %v", typ, err)
	}
	if _, err := registry.Lookup("missing"); !errors.Is(err, ErrUnknownRequestType) {
		t.Errorf("Lookup(missing) = %v, want ErrUnknownRequestType", err)
	}
	if types := registry.Types(); len(types) != 2 || types[0].ID != DefaultTypeID {
		t.Errorf("Types order = %v", types)
	}

	if _, err := NewTypeRegistry(mockType(), mockType()); !errors.Is(err, ErrDuplicateType) {
		t.Errorf("duplicate: err = %v, want ErrDuplicateType", err)
	}
}

func TestCheckResolvable(t *testing.T) {
	registry, err := NewTypeRegistry(DefaultType())
	if err != nil {
		t.Fatalf("NewTypeRegistry: %v", err)
	}
	if err := registry.CheckResolvable([]string{"user", "group", "record", "community"}); err != nil {
		t.Errorf("all kinds resolvable: %v", err)
	}
	err = registry.CheckResolvable([]string{"user", "group"})
	if err == nil || !strings.Contains(err.Error(), `"record"`) || !strings.Contains(err.Error(), `"community"`) {
		t.Errorf("missing kinds: err = %v", err)
	}
}

func TestEventTypeRegistry(t *testing.T) {
	registry, err := NewEventTypeRegistry(&EventType{ID: "L", Name: "log", AllowThreading: true})
	if err != nil {
		t.Fatalf("NewEventTypeRegistry: %v", err)
	}
	for _, id := range []string{schema.EventComment, schema.EventAccepted, "L"} {
		if _, err := registry.Lookup(id); err != nil {
			t.Errorf("Lookup(%s): %v", id, err)
		}
	}
	if _, err := registry.Lookup("Z"); !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("Lookup(Z) = %v, want ErrUnknownEventType", err)
	}
	if _, err := NewEventTypeRegistry(&EventType{ID: schema.EventComment}); !errors.Is(err, ErrDuplicateType) {
		t.Errorf("reusing C: err = %v, want ErrDuplicateType", err)
	}
}

func TestCheckReply(t *testing.T) {
	registry, err := NewEventTypeRegistry()
	if err != nil {
		t.Fatalf("NewEventTypeRegistry: %v", err)
	}
	topLevel := &schema.Event{ID: "e1", Type: schema.EventComment}
	reply := &schema.Event{ID: "e2", Type: schema.EventComment, ParentID: "e1"}
	accepted := &schema.Event{ID: "e3", Type: schema.EventAccepted}

	tests := []struct {
		name      string
		childType string
		parent    *schema.Event
		want      error
	}{
		{"comment on comment", schema.EventComment, topLevel, nil},
		{"reply to reply", schema.EventComment, reply, ErrNestedThreadingNotAllowed},
		{"reply to system event", schema.EventComment, accepted, ErrThreadingNotSupported},
		{"system event as reply", schema.EventAccepted, topLevel, ErrThreadingNotSupported},
		{"unknown child type", "Z", topLevel, ErrUnknownEventType},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := registry.CheckReply(test.childType, test.parent)
			if test.want == nil {
				if err != nil {
					t.Fatalf("CheckReply = %v", err)
				}
				return
			}
			if !errors.Is(err, test.want) {
				t.Fatalf("CheckReply = %v, want %v", err, test.want)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ActionError{Action: "decline", Err: ErrCannotExecuteAction}, "cannot_execute_action"},
		{&SlotError{Slot: SlotReceiver}, "invalid_reference_for_slot"},
		{ErrNoSuchAction, "no_such_action"},
		{ErrNestedThreadingNotAllowed, "nested_threading_not_allowed"},
		{ErrThreadingNotSupported, "threading_not_supported"},
		{ErrNotFound, "not_found"},
		{&ActionError{Action: "accept", Err: ErrPermissionDenied}, "permission_denied"},
		{ErrConflict, "conflict"},
		{ErrInvalidID, "validation"},
		{ErrDuplicateType, "configuration"},
		{errors.New("disk on fire"), "internal"},
	}
	for _, test := range tests {
		if got := ErrorKind(test.err); got != test.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", test.err, got, test.want)
		}
	}
}
