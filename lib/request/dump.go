// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"fmt"
	"time"

	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// Dump produces the flattened document written to the search index.
// last_reply is resolved before last_activity, which depends on it.
func (r *Request) Dump(ctx context.Context, source EventSource, now time.Time) (schema.RequestDocument, error) {
	reply, err := r.LastReply(ctx, source)
	if err != nil {
		return schema.RequestDocument{}, err
	}
	activity, err := r.LastActivity(ctx, source)
	if err != nil {
		return schema.RequestDocument{}, err
	}

	document := schema.RequestDocument{
		Request:      r.Content(),
		IsOpen:       r.IsOpen(),
		IsExpired:    r.IsExpired(now),
		LastActivity: schema.FormatTimestamp(activity),
	}
	if reply != nil {
		document.LastReply = &schema.EventDocument{Event: *reply}
	}
	return document, nil
}

// Load rebuilds a request from its dump. When the dump carries the
// calculated fields, they seed the cache so reading them needs no
// store access.
func Load(types *TypeRegistry, document schema.RequestDocument) (*Request, error) {
	typ, err := types.Lookup(document.Type)
	if err != nil {
		return nil, err
	}
	request, err := New(typ, document.Request)
	if err != nil {
		return nil, err
	}
	if document.LastActivity == "" {
		return request, nil
	}

	activity, err := schema.ParseTimestamp(document.LastActivity)
	if err != nil {
		return nil, fmt.Errorf("request %s last_activity: %w", document.ID, err)
	}
	request.computed.hasLastReply = true
	if document.LastReply != nil {
		reply := document.LastReply.Event
		request.computed.lastReply = &reply
	}
	request.computed.lastActivity = activity
	request.computed.hasLastActivity = true
	return request, nil
}

// Dump produces the document of an event with its children preview
// bounded by limit.
func (e *Event) Dump(ctx context.Context, source EventSource, limit int) (schema.EventDocument, error) {
	children, err := e.Children(ctx, source, limit)
	if err != nil {
		return schema.EventDocument{}, err
	}
	total := children.Total
	document := schema.EventDocument{
		Event:           e.Content(),
		ChildrenCount:   &total,
		HasMoreChildren: children.HasMore,
	}
	for _, child := range children.Preview {
		document.ChildrenPreview = append(document.ChildrenPreview, schema.EventDocument{Event: child})
	}
	return document, nil
}

// LoadEvent rebuilds an event from its dump, seeding the children
// cache when the dump carries children_count.
func LoadEvent(types *EventTypeRegistry, document schema.EventDocument) *Event {
	event := &Event{content: document.Event, typ: types.typeOrPlaceholder(document.Type)}
	if document.ChildrenCount == nil {
		return event
	}
	children := &Children{Total: *document.ChildrenCount, HasMore: document.HasMoreChildren}
	for _, child := range document.ChildrenPreview {
		children.Preview = append(children.Preview, child.Event)
	}
	event.computed.children = children
	return event
}
