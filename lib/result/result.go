// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package result

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bureau-foundation/requests/lib/codec"
	"github.com/bureau-foundation/requests/lib/expand"
	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/request"
	"github.com/bureau-foundation/requests/lib/requestindex"
	"github.com/bureau-foundation/requests/lib/resolver"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// Item is one result: a projected document with "links" and
// "expanded" added.
type Item = map[string]any

// List is a page of results.
type List struct {
	Hits  []Item `json:"hits"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
}

// Links holds the base URLs links are built from.
type Links struct {
	// API is the base of machine-readable links ("https://host/api").
	API string

	// UI is the base of human-readable links.
	UI string
}

// RequestFields are the expanded reference fields of a request.
func RequestFields() []expand.Field {
	return []expand.Field{
		{Path: "created_by"},
		{Path: "receiver"},
		{Path: "topic"},
		{Path: "reviewers", Multi: true},
		{Path: "last_reply.created_by", Name: "last_reply_author"},
	}
}

// EventFields are the expanded reference fields of an event.
func EventFields() []expand.Field {
	return []expand.Field{{Path: "created_by"}}
}

// Builder builds result items. Safe for concurrent use.
type Builder struct {
	service  *request.Service
	requests *expand.Engine
	events   *expand.Engine
	links    Links
}

// NewBuilder returns a builder for service's requests and events.
func NewBuilder(service *request.Service, registry *resolver.Registry, links Links, logger *slog.Logger) *Builder {
	links.API = strings.TrimSuffix(links.API, "/")
	links.UI = strings.TrimSuffix(links.UI, "/")
	return &Builder{
		service:  service,
		requests: expand.New(registry, logger, RequestFields()...),
		events:   expand.New(registry, logger, EventFields()...),
		links:    links,
	}
}

// project converts a document to a plain map through its wire
// encoding, so items carry exactly the encoded field names.
func project(document any) (Item, error) {
	data, err := codec.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	var item Item
	if err := codec.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return item, nil
}

// Request builds the item of one request.
func (b *Builder) Request(ctx context.Context, identity permission.Identity, r *request.Request) (Item, error) {
	document, err := b.service.DumpRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	item, err := b.requestItem(identity, r, document)
	if err != nil {
		return nil, err
	}
	if err := b.requests.Expand(ctx, identity, []expand.Row{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// Requests builds a page of search hits.
func (b *Builder) Requests(ctx context.Context, identity permission.Identity, page requestindex.Page) (List, error) {
	list := List{Hits: make([]Item, 0, len(page.Hits)), Total: page.Total, Page: page.Page, Size: page.Size}
	for _, hit := range page.Hits {
		loaded, err := request.Load(b.service.Types(), hit)
		if err != nil {
			return List{}, fmt.Errorf("loading hit %s: %w", hit.ID, err)
		}
		item, err := b.requestItem(identity, loaded, hit)
		if err != nil {
			return List{}, err
		}
		list.Hits = append(list.Hits, item)
	}
	if err := b.requests.Expand(ctx, identity, list.Hits); err != nil {
		return List{}, err
	}
	return list, nil
}

func (b *Builder) requestItem(identity permission.Identity, r *request.Request, document schema.RequestDocument) (Item, error) {
	item, err := project(document)
	if err != nil {
		return nil, err
	}
	item["links"] = b.requestLinks(identity, r)
	return item, nil
}

func (b *Builder) requestPath(number string) string {
	return "/requests/" + url.PathEscape(number)
}

// requestLinks links a request to itself, its timeline, and each
// action identity may execute now.
func (b *Builder) requestLinks(identity permission.Identity, r *request.Request) map[string]any {
	path := b.requestPath(r.Number())
	links := map[string]any{
		"self":      b.links.API + path,
		"self_html": b.links.UI + path,
		"timeline":  b.links.API + path + "/timeline",
		"comments":  b.links.API + path + "/comments",
	}
	actions := make(map[string]any)
	for _, kind := range r.Type().ActionKinds() {
		if b.service.CanExecute(r, identity, kind) {
			actions[string(kind)] = b.links.API + path + "/actions/" + string(kind)
		}
	}
	links["actions"] = actions
	return links
}

// Event builds the item of one event.
func (b *Builder) Event(ctx context.Context, identity permission.Identity, requestNumber string, event *request.Event) (Item, error) {
	items, err := b.Timeline(ctx, identity, requestNumber, []*request.Event{event})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// Timeline builds the items of events, each with its children preview
// embedded. The events and every previewed reply are expanded in one
// batch.
func (b *Builder) Timeline(ctx context.Context, identity permission.Identity, requestNumber string, events []*request.Event) ([]Item, error) {
	items := make([]Item, 0, len(events))
	var rows []expand.Row
	for _, event := range events {
		document, err := b.service.DumpEvent(ctx, event)
		if err != nil {
			return nil, err
		}
		item, err := project(document)
		if err != nil {
			return nil, err
		}
		item["links"] = b.eventLinks(requestNumber, event.ID())
		items = append(items, item)
		rows = append(rows, item)

		preview, _ := item["children_preview"].([]any)
		for _, child := range preview {
			if row, ok := child.(map[string]any); ok {
				id, _ := row["id"].(string)
				row["links"] = b.eventLinks(requestNumber, id)
				rows = append(rows, row)
			}
		}
	}
	if err := b.events.Expand(ctx, identity, rows); err != nil {
		return nil, err
	}
	return items, nil
}

// Events builds the items of a flat list of events, such as the full
// replies to one comment.
func (b *Builder) Events(ctx context.Context, identity permission.Identity, requestNumber string, events []schema.Event) ([]Item, error) {
	items := make([]Item, 0, len(events))
	for _, event := range events {
		item, err := project(schema.EventDocument{Event: event})
		if err != nil {
			return nil, err
		}
		item["links"] = b.eventLinks(requestNumber, event.ID)
		items = append(items, item)
	}
	if err := b.events.Expand(ctx, identity, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (b *Builder) eventLinks(requestNumber, eventID string) map[string]any {
	requestPath := b.requestPath(requestNumber)
	path := requestPath + "/comments/" + url.PathEscape(eventID)
	return map[string]any{
		"self":      b.links.API + path,
		"self_html": b.links.UI + requestPath + "#commentevent-" + url.PathEscape(eventID),
		"replies":   b.links.API + path + "/replies",
	}
}
