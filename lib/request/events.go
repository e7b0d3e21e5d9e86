// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bureau-foundation/requests/lib/permission"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// CreateEventParams describes a new event posted by a caller.
type CreateEventParams struct {
	// Type defaults to EventComment.
	Type string

	// ParentID makes the event a reply.
	ParentID string

	Content string

	// Format is FormatHTML (default) or FormatMarkdown. Markdown is
	// rendered to HTML before storing.
	Format string
}

// CreateEvent posts an event on a request. System event types are
// rejected: those are emitted by actions only.
func (s *Service) CreateEvent(ctx context.Context, identity permission.Identity, requestID string, params CreateEventParams) (*Event, error) {
	request, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !s.policy.Can(identity, "request/comment", request) {
		return nil, fmt.Errorf("comment on request %s: %w", request.ID(), ErrPermissionDenied)
	}

	typeID := params.Type
	if typeID == "" {
		typeID = schema.EventComment
	}
	typ, err := s.eventTypes.Lookup(typeID)
	if err != nil {
		return nil, err
	}
	if typ.System {
		return nil, fmt.Errorf("event type %q is emitted by actions only: %w", typ.ID, ErrValidation)
	}
	if !request.IsOpen() && !request.typ.CommentsWhenClosed {
		return nil, &ActionError{Action: "comment", RequestID: request.ID(), Status: request.Status(), Err: ErrCannotExecuteAction}
	}

	if params.ParentID != "" {
		parent, err := s.store.GetEvent(ctx, params.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parent event %s: %w", params.ParentID, err)
		}
		if parent.RequestID != request.ID() {
			return nil, fmt.Errorf("parent event %s is not on request %s: %w", parent.ID, request.ID(), ErrNotFound)
		}
		if err := s.eventTypes.CheckReply(typ.ID, &parent); err != nil {
			return nil, err
		}
	}

	payload, err := s.payload(params.Content, params.Format)
	if err != nil {
		return nil, err
	}
	now := schema.FormatTimestamp(s.clock.Now())
	content := schema.Event{
		ID:        uuid.NewString(),
		RequestID: request.ID(),
		Type:      typ.ID,
		ParentID:  params.ParentID,
		CreatedBy: identity.Reference(),
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   payload,
	}
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.store.CreateEvent(ctx, content); err != nil {
		return nil, err
	}
	s.logger.Info("event created",
		"request_id", request.ID(),
		"event_id", content.ID,
		"event_type", content.Type,
		"parent_id", content.ParentID,
	)
	s.reindex(ctx, request.ID())
	return &Event{content: content, typ: typ}, nil
}

// payload renders comment content to its stored HTML form.
func (s *Service) payload(content, format string) (*schema.Payload, error) {
	switch format {
	case "", schema.FormatHTML:
		return &schema.Payload{Content: content, Format: schema.FormatHTML}, nil
	case schema.FormatMarkdown:
		if s.renderer == nil {
			return nil, fmt.Errorf("markdown comments are not enabled: %w", ErrValidation)
		}
		html, err := s.renderer.Render(content)
		if err != nil {
			return nil, fmt.Errorf("rendering markdown: %w", err)
		}
		return &schema.Payload{Content: html, Format: schema.FormatHTML}, nil
	}
	return nil, fmt.Errorf("unknown content format %q: %w", format, ErrValidation)
}

// UpdateComment replaces the content of an editable event. The
// author, or an identity holding request/moderate on the request, may
// edit.
func (s *Service) UpdateComment(ctx context.Context, identity permission.Identity, eventID, content, format string) (*Event, error) {
	event, request, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.typ.AllowEdit {
		return nil, fmt.Errorf("event %s of type %q: %w", event.ID(), event.typ.ID, ErrEditNotAllowed)
	}
	if !s.policy.Can(identity, "event/update", event) && !s.policy.Can(identity, "request/moderate", request) {
		return nil, fmt.Errorf("update event %s: %w", event.ID(), ErrPermissionDenied)
	}
	payload, err := s.payload(content, format)
	if err != nil {
		return nil, err
	}

	next := event.Content()
	next.Payload = payload
	next.UpdatedAt = schema.FormatTimestamp(s.clock.Now())
	next.Revision = event.content.Revision + 1
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.store.UpdateEvent(ctx, next, event.content.Revision); err != nil {
		return nil, err
	}
	s.logger.Info("comment updated", "request_id", request.ID(), "event_id", event.ID())
	s.reindex(ctx, request.ID())
	return &Event{content: next, typ: event.typ}, nil
}

// DeleteComment removes a comment's content, turning it into an
// EventRemoved event. Replies keep their parent_id and stay visible.
func (s *Service) DeleteComment(ctx context.Context, identity permission.Identity, eventID string) (*Event, error) {
	event, request, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.content.Type != schema.EventComment {
		return nil, fmt.Errorf("event %s is not a comment: %w", event.ID(), ErrValidation)
	}
	if !s.policy.Can(identity, "event/delete", event) && !s.policy.Can(identity, "request/moderate", request) {
		return nil, fmt.Errorf("delete event %s: %w", event.ID(), ErrPermissionDenied)
	}
	removedType, err := s.eventTypes.Lookup(schema.EventRemoved)
	if err != nil {
		return nil, err
	}

	next := event.Content()
	next.Type = schema.EventRemoved
	next.Payload = &schema.Payload{Event: "comment_deleted"}
	next.UpdatedAt = schema.FormatTimestamp(s.clock.Now())
	next.Revision = event.content.Revision + 1
	if err := s.store.UpdateEvent(ctx, next, event.content.Revision); err != nil {
		return nil, err
	}
	s.logger.Info("comment deleted", "request_id", request.ID(), "event_id", event.ID(), "actor", identity.ID)
	s.reindex(ctx, request.ID())
	return &Event{content: next, typ: removedType}, nil
}

// loadEvent reads an event and the request it belongs to.
func (s *Service) loadEvent(ctx context.Context, eventID string) (*Event, *Request, error) {
	if eventID == "" {
		return nil, nil, fmt.Errorf("empty event id: %w", ErrInvalidID)
	}
	content, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	request, err := s.load(ctx, content.RequestID)
	if err != nil {
		return nil, nil, fmt.Errorf("request of event %s: %w", eventID, err)
	}
	return &Event{content: content, typ: s.eventTypes.typeOrPlaceholder(content.Type)}, request, nil
}

// Event returns an event on a request the caller may read.
func (s *Service) Event(ctx context.Context, identity permission.Identity, eventID string) (*Event, error) {
	event, _, err := s.readEvent(ctx, identity, eventID)
	return event, err
}

// readEvent loads an event and its request and checks that identity
// may read the request.
func (s *Service) readEvent(ctx context.Context, identity permission.Identity, eventID string) (*Event, *Request, error) {
	event, request, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if !s.policy.Can(identity, "request/read", request) {
		return nil, nil, fmt.Errorf("event %s: %w", eventID, ErrPermissionDenied)
	}
	return event, request, nil
}

// ChildrenMode selects between the bounded preview and the full list
// of replies.
type ChildrenMode int

const (
	// ChildrenPreview returns the newest PreviewLimit replies, newest
	// first.
	ChildrenPreview ChildrenMode = iota

	// ChildrenFull returns every reply in creation order.
	ChildrenFull
)

// ChildrenPage is the answer to Children.
type ChildrenPage struct {
	// Request owns the parent event.
	Request *Request

	// Parent is the event whose replies were listed.
	Parent *Event

	// Events are newest first in preview mode and in creation order
	// in full mode.
	Events []schema.Event

	// Total is the number of replies.
	Total int

	// HasMore reports replies missing from Events. Always false in
	// full mode.
	HasMore bool
}

// Children returns the replies to an event. The preview reports the
// total so a caller can decide whether to ask for the full list.
func (s *Service) Children(ctx context.Context, identity permission.Identity, eventID string, mode ChildrenMode) (*ChildrenPage, error) {
	event, request, err := s.readEvent(ctx, identity, eventID)
	if err != nil {
		return nil, err
	}
	page := &ChildrenPage{Request: request, Parent: event}
	if mode == ChildrenFull {
		page.Events, err = event.AllChildren(ctx, s.store)
		if err != nil {
			return nil, err
		}
		page.Total = len(page.Events)
		return page, nil
	}
	children, err := event.Children(ctx, s.store, s.previewLimit)
	if err != nil {
		return nil, err
	}
	page.Events = children.Preview
	page.Total = children.Total
	page.HasMore = children.HasMore
	return page, nil
}

// Timeline returns the top-level events of a request in creation
// order, each with its children preview already computed. The whole
// timeline is read from the store once.
func (s *Service) Timeline(ctx context.Context, identity permission.Identity, requestID string) ([]*Event, error) {
	request, err := s.Read(ctx, identity, requestID)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.RequestEvents(ctx, request.ID())
	if err != nil {
		return nil, err
	}
	timeline, err := LoadTimeline(request.ID(), s.eventTypes, stored)
	if err != nil {
		return nil, err
	}
	events := timeline.TopLevel()
	for _, event := range events {
		if _, err := event.Children(ctx, timeline, s.previewLimit); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// DumpEvent dumps event with a children preview bounded by the
// configured limit.
func (s *Service) DumpEvent(ctx context.Context, event *Event) (schema.EventDocument, error) {
	return event.Dump(ctx, s.store, s.previewLimit)
}
