// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/requests/lib/codec"
	"github.com/bureau-foundation/requests/lib/directory"
	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
	"github.com/bureau-foundation/requests/lib/request"
	"github.com/bureau-foundation/requests/lib/requestindex"
	"github.com/bureau-foundation/requests/lib/result"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
	"github.com/bureau-foundation/requests/lib/service"
)

// registerActions registers all socket API actions on the server.
//
// Every action except "status" and "types" acts on behalf of the
// identity carried in the request. The socket is the trust boundary:
// whoever can connect may claim any identity.
func (rs *RequestService) registerActions(server *service.SocketServer) {
	server.Handle("status", rs.handleStatus)
	server.Handle("types", rs.handleTypes)

	// Requests.
	server.Handle("create", rs.handleCreate)
	server.Handle("get", rs.handleGet)
	server.Handle("search", rs.handleSearch)
	server.Handle("action", rs.handleAction)

	// Timeline.
	server.Handle("comment", rs.handleComment)
	server.Handle("update-comment", rs.handleUpdateComment)
	server.Handle("delete-comment", rs.handleDeleteComment)
	server.Handle("event", rs.handleEvent)
	server.Handle("children", rs.handleChildren)
	server.Handle("timeline", rs.handleTimeline)

	// Directory maintenance.
	server.Handle("directory/put", rs.handleDirectoryPut)
}

// --- Request types ---
//
// Each action decodes its specific fields from the CBOR request. The
// "action" field is handled by the socket server framework.

// identityField is the caller identity. Grants are never taken from
// the wire; they come from the configured policy.
type identityField struct {
	ID     string   `cbor:"id"`
	Groups []string `cbor:"groups,omitempty"`
}

func (f identityField) identity() permission.Identity {
	return permission.Identity{ID: f.ID, Groups: f.Groups}
}

type createRequest struct {
	Identity    identityField   `cbor:"identity"`
	Type        string          `cbor:"type,omitempty"`
	Title       string          `cbor:"title"`
	Description string          `cbor:"description,omitempty"`
	Receiver    ref.Reference   `cbor:"receiver,omitempty"`
	Topic       ref.Reference   `cbor:"topic,omitempty"`
	Reviewers   []ref.Reference `cbor:"reviewers,omitempty"`
	ExpiresAt   string          `cbor:"expires_at,omitempty"`
	Submit      bool            `cbor:"submit,omitempty"`
}

// requestRequest identifies a request by number or id.
type requestRequest struct {
	Identity identityField `cbor:"identity"`
	Request  string        `cbor:"request"`
}

type actionRequest struct {
	Identity identityField `cbor:"identity"`
	Request  string        `cbor:"request"`
	Action   string        `cbor:"request_action"`
}

type searchRequest struct {
	Identity  identityField `cbor:"identity"`
	Query     string        `cbor:"q,omitempty"`
	Status    string        `cbor:"status,omitempty"`
	Type      string        `cbor:"type,omitempty"`
	CreatedBy ref.Reference `cbor:"created_by,omitempty"`
	Receiver  ref.Reference `cbor:"receiver,omitempty"`
	Topic     ref.Reference `cbor:"topic,omitempty"`
	Reviewer  ref.Reference `cbor:"reviewer,omitempty"`
	IsOpen    *bool         `cbor:"is_open,omitempty"`
	Sort      string        `cbor:"sort,omitempty"`
	Page      int           `cbor:"page,omitempty"`
	Size      int           `cbor:"size,omitempty"`
}

type commentRequest struct {
	Identity identityField `cbor:"identity"`
	Request  string        `cbor:"request"`
	Type     string        `cbor:"type,omitempty"`
	ParentID string        `cbor:"parent_id,omitempty"`
	Content  string        `cbor:"content"`
	Format   string        `cbor:"format,omitempty"`
}

// eventRequest identifies an event by id.
type eventRequest struct {
	Identity identityField `cbor:"identity"`
	Event    string        `cbor:"event"`
}

type updateCommentRequest struct {
	Identity identityField `cbor:"identity"`
	Event    string        `cbor:"event"`
	Content  string        `cbor:"content"`
	Format   string        `cbor:"format,omitempty"`
}

type childrenRequest struct {
	Identity identityField `cbor:"identity"`
	Event    string        `cbor:"event"`
	Full     bool          `cbor:"full,omitempty"`
}

type directoryPutRequest struct {
	Identity identityField    `cbor:"identity"`
	Kind     string           `cbor:"kind"`
	Entity   codec.RawMessage `cbor:"entity"`
}

// decodeRequest unmarshals raw into target, tagging failures as
// validation errors.
func decodeRequest(raw []byte, target any) error {
	if err := codec.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid request: %w: %w", request.ErrValidation, err)
	}
	return nil
}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("missing required field: %s: %w", name, request.ErrValidation)
	}
	return nil
}

// --- Status ---

type statusResponse struct {
	UptimeSeconds float64 `cbor:"uptime_seconds"`
}

func (rs *RequestService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return statusResponse{UptimeSeconds: rs.clock.Now().Sub(rs.startedAt).Seconds()}, nil
}

type typeSummary struct {
	ID                 string   `cbor:"id"`
	Name               string   `cbor:"name"`
	OpenStates         []string `cbor:"open_states"`
	Actions            []string `cbor:"actions"`
	CommentsWhenClosed bool     `cbor:"comments_when_closed"`
}

func (rs *RequestService) handleTypes(ctx context.Context, raw []byte) (any, error) {
	types := rs.requests.Types().Types()
	summaries := make([]typeSummary, 0, len(types))
	for _, typ := range types {
		summary := typeSummary{
			ID:                 typ.ID,
			Name:               typ.Name,
			OpenStates:         typ.OpenStates,
			CommentsWhenClosed: typ.CommentsWhenClosed,
		}
		for _, kind := range typ.ActionKinds() {
			summary.Actions = append(summary.Actions, string(kind))
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// --- Requests ---

func (rs *RequestService) handleCreate(ctx context.Context, raw []byte) (any, error) {
	var params createRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()

	var expiresAt time.Time
	if params.ExpiresAt != "" {
		parsed, err := schema.ParseTimestamp(params.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("expires_at: %w: %w", request.ErrValidation, err)
		}
		expiresAt = parsed
	}

	typeID := params.Type
	if typeID == "" {
		typeID = request.DefaultTypeID
	}
	created, err := rs.requests.Create(ctx, identity, request.CreateParams{
		Type:        typeID,
		Title:       params.Title,
		Description: params.Description,
		CreatedBy:   identity.Reference(),
		Receiver:    params.Receiver,
		Topic:       params.Topic,
		Reviewers:   params.Reviewers,
		ExpiresAt:   expiresAt,
		Submit:      params.Submit,
	})
	if err != nil {
		return nil, err
	}
	return rs.results.Request(ctx, identity, created)
}

func (rs *RequestService) handleGet(ctx context.Context, raw []byte) (any, error) {
	var params requestRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	if err := requireField("request", params.Request); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	found, err := rs.requests.Read(ctx, identity, params.Request)
	if err != nil {
		return nil, err
	}
	return rs.results.Request(ctx, identity, found)
}

func (rs *RequestService) handleSearch(ctx context.Context, raw []byte) (any, error) {
	var params searchRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	page, err := rs.requests.Search(ctx, identity, requestindex.Filter{
		Status:    params.Status,
		Type:      params.Type,
		CreatedBy: params.CreatedBy,
		Receiver:  params.Receiver,
		Topic:     params.Topic,
		Reviewer:  params.Reviewer,
		IsOpen:    params.IsOpen,
		Query:     params.Query,
		Sort:      requestindex.Sort(params.Sort),
	}, params.Page, params.Size)
	if err != nil {
		return nil, err
	}
	return rs.results.Requests(ctx, identity, page)
}

func (rs *RequestService) handleAction(ctx context.Context, raw []byte) (any, error) {
	var params actionRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	if err := requireField("request", params.Request); err != nil {
		return nil, err
	}
	if err := requireField("request_action", params.Action); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	updated, err := rs.requests.Execute(ctx, identity, params.Request, request.ActionKind(params.Action))
	if err != nil {
		return nil, err
	}
	return rs.results.Request(ctx, identity, updated)
}

// --- Timeline ---

func (rs *RequestService) handleComment(ctx context.Context, raw []byte) (any, error) {
	var params commentRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	if err := requireField("request", params.Request); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	target, err := rs.requests.Read(ctx, identity, params.Request)
	if err != nil {
		return nil, err
	}
	event, err := rs.requests.CreateEvent(ctx, identity, target.ID(), request.CreateEventParams{
		Type:     params.Type,
		ParentID: params.ParentID,
		Content:  params.Content,
		Format:   params.Format,
	})
	if err != nil {
		return nil, err
	}
	return rs.results.Event(ctx, identity, target.Number(), event)
}

func (rs *RequestService) handleUpdateComment(ctx context.Context, raw []byte) (any, error) {
	var params updateCommentRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	if err := requireField("event", params.Event); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	event, err := rs.requests.UpdateComment(ctx, identity, params.Event, params.Content, params.Format)
	if err != nil {
		return nil, err
	}
	return rs.eventResult(ctx, identity, event)
}

func (rs *RequestService) handleDeleteComment(ctx context.Context, raw []byte) (any, error) {
	var params eventRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	if err := requireField("event", params.Event); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	event, err := rs.requests.DeleteComment(ctx, identity, params.Event)
	if err != nil {
		return nil, err
	}
	return rs.eventResult(ctx, identity, event)
}

func (rs *RequestService) handleEvent(ctx context.Context, raw []byte) (any, error) {
	var params eventRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	if err := requireField("event", params.Event); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	event, err := rs.requests.Event(ctx, identity, params.Event)
	if err != nil {
		return nil, err
	}
	return rs.eventResult(ctx, identity, event)
}

// childrenResponse lists replies. In preview mode children_count and
// has_more_children tell the caller whether the full list is larger.
type childrenResponse struct {
	Children        []result.Item `cbor:"children"`
	ChildrenCount   int           `cbor:"children_count"`
	HasMoreChildren bool          `cbor:"has_more_children"`
}

func (rs *RequestService) handleChildren(ctx context.Context, raw []byte) (any, error) {
	var params childrenRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	if err := requireField("event", params.Event); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	mode := request.ChildrenPreview
	if params.Full {
		mode = request.ChildrenFull
	}
	page, err := rs.requests.Children(ctx, identity, params.Event, mode)
	if err != nil {
		return nil, err
	}
	items, err := rs.results.Events(ctx, identity, page.Request.Number(), page.Events)
	if err != nil {
		return nil, err
	}
	return childrenResponse{
		Children:        items,
		ChildrenCount:   page.Total,
		HasMoreChildren: page.HasMore,
	}, nil
}

func (rs *RequestService) handleTimeline(ctx context.Context, raw []byte) (any, error) {
	var params requestRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	if err := requireField("request", params.Request); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	owner, err := rs.requests.Read(ctx, identity, params.Request)
	if err != nil {
		return nil, err
	}
	events, err := rs.requests.Timeline(ctx, identity, owner.ID())
	if err != nil {
		return nil, err
	}
	return rs.results.Timeline(ctx, identity, owner.Number(), events)
}

// eventResult renders event with links under its request's number.
func (rs *RequestService) eventResult(ctx context.Context, identity permission.Identity, event *request.Event) (result.Item, error) {
	owner, err := rs.requests.Read(ctx, identity, event.RequestID())
	if err != nil {
		return nil, err
	}
	return rs.results.Event(ctx, identity, owner.Number(), event)
}

// --- Directory ---

// directoryWrite is the permission needed to put directory entities.
const directoryWrite = "directory/write"

func (rs *RequestService) handleDirectoryPut(ctx context.Context, raw []byte) (any, error) {
	var params directoryPutRequest
	if err := decodeRequest(raw, &params); err != nil {
		return nil, err
	}
	identity := params.Identity.identity()
	if !rs.policy.Can(identity, directoryWrite, nil) {
		return nil, fmt.Errorf("%s: %w", directoryWrite, request.ErrPermissionDenied)
	}

	var entity any
	switch params.Kind {
	case ref.KindUser:
		entity = &directory.User{}
	case ref.KindGroup:
		entity = &directory.Group{}
	case ref.KindRecord:
		entity = &directory.Record{}
	case ref.KindCommunity:
		entity = &directory.Community{}
	default:
		return nil, fmt.Errorf("unknown directory kind %q: %w", params.Kind, request.ErrValidation)
	}
	if len(params.Entity) == 0 {
		return nil, fmt.Errorf("missing required field: entity: %w", request.ErrValidation)
	}
	if err := codec.Unmarshal(params.Entity, entity); err != nil {
		return nil, fmt.Errorf("decoding %s entity: %w: %w", params.Kind, request.ErrValidation, err)
	}
	if err := rs.directory.Put(ctx, entity); err != nil {
		return nil, err
	}
	rs.logger.Info("directory entity stored", "kind", params.Kind, "by", identity.ID)
	return nil, nil
}
