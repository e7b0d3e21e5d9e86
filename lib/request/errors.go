// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/requests/lib/ref"
	"github.com/bureau-foundation/requests/lib/resolver"
)

var (
	// Validation errors. The entity is left unchanged.
	ErrValidation                = errors.New("validation failed")
	ErrInvalidReferenceForSlot   = errors.New("invalid reference for slot")
	ErrThreadingNotSupported     = errors.New("threading not supported")
	ErrNestedThreadingNotAllowed = errors.New("nested threading not allowed")
	ErrEditNotAllowed            = errors.New("event type does not allow edits")
	ErrInvalidID                 = errors.New("invalid id")

	// Action errors.
	ErrNoSuchAction        = errors.New("no such action")
	ErrCannotExecuteAction = errors.New("cannot execute action")

	// Configuration errors.
	ErrUnknownRequestType = errors.New("unknown request type")
	ErrUnknownEventType   = errors.New("unknown event type")
	ErrDuplicateType      = errors.New("duplicate type")

	// Store and access errors.
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("concurrent modification")
	ErrPermissionDenied = errors.New("permission denied")
)

// SlotError reports a reference whose kind a request type does not
// accept in a slot, or a null reference in a non-nullable slot.
type SlotError struct {
	Slot      string
	Reference ref.Reference
	Allowed   []string
}

func (e *SlotError) Error() string {
	if e.Reference.IsZero() {
		return fmt.Sprintf("slot %s may not be null", e.Slot)
	}
	return fmt.Sprintf("slot %s does not accept %s (allowed kinds: %s)",
		e.Slot, e.Reference, strings.Join(e.Allowed, ", "))
}

func (e *SlotError) Unwrap() error { return ErrInvalidReferenceForSlot }

// ActionError reports an action that cannot run on a request.
type ActionError struct {
	Action    string
	RequestID string
	Status    string
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q on request %s (status %s): %v", e.Action, e.RequestID, e.Status, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ErrorKind maps an error to the kind tag surfaced at the API
// boundary.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSuchAction):
		return "no_such_action"
	case errors.Is(err, ErrCannotExecuteAction):
		return "cannot_execute_action"
	case errors.Is(err, ErrInvalidReferenceForSlot):
		return "invalid_reference_for_slot"
	case errors.Is(err, ErrThreadingNotSupported):
		return "threading_not_supported"
	case errors.Is(err, ErrNestedThreadingNotAllowed):
		return "nested_threading_not_allowed"
	case errors.Is(err, ErrNotFound), errors.Is(err, resolver.ErrEntityNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidID), errors.Is(err, ErrEditNotAllowed):
		return "validation"
	case errors.Is(err, ErrUnknownRequestType), errors.Is(err, ErrUnknownEventType),
		errors.Is(err, ErrDuplicateType), errors.Is(err, resolver.ErrDuplicateResolver),
		errors.Is(err, resolver.ErrNoMatchingResolver):
		return "configuration"
	}
	return "internal"
}
