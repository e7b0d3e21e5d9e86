// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/requests/lib/clock"
	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
	"github.com/bureau-foundation/requests/lib/requestindex"
	"github.com/bureau-foundation/requests/lib/resolver"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// DefaultPreviewLimit is the number of replies embedded in an event's
// children preview when the configuration does not set one.
const DefaultPreviewLimit = 5

// Renderer converts markdown comment content to HTML.
type Renderer interface {
	Render(markdown string) (string, error)
}

// ServiceConfig holds the collaborators of a Service. Every field
// except Renderer and PreviewLimit is required.
type ServiceConfig struct {
	Types      *TypeRegistry
	EventTypes *EventTypeRegistry
	Resolvers  *resolver.Registry
	Store      Store
	Index      *requestindex.Index
	Policy     permission.Policy
	Clock      clock.Clock
	Logger     *slog.Logger

	// Renderer renders markdown comments. Nil rejects markdown.
	Renderer Renderer

	// PreviewLimit bounds children previews. Defaults to
	// DefaultPreviewLimit.
	PreviewLimit int
}

// Service performs every request and event operation: permission
// checks, validation, persistence, and keeping the search index in
// step with the store. Safe for concurrent use.
type Service struct {
	types      *TypeRegistry
	eventTypes *EventTypeRegistry
	resolvers  *resolver.Registry
	store      Store
	policy     permission.Policy
	clock      clock.Clock
	logger     *slog.Logger
	renderer   Renderer

	previewLimit int

	// indexMu guards index, which is not safe for concurrent use.
	// reindex also holds it across the store read.
	indexMu sync.Mutex
	index   *requestindex.Index
}

// NewService validates cfg and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Types == nil, cfg.EventTypes == nil, cfg.Resolvers == nil:
		return nil, errors.New("request service: Types, EventTypes, and Resolvers are required")
	case cfg.Store == nil, cfg.Index == nil:
		return nil, errors.New("request service: Store and Index are required")
	case cfg.Policy == nil, cfg.Clock == nil:
		return nil, errors.New("request service: Policy and Clock are required")
	}
	if err := cfg.Types.CheckResolvable(cfg.Resolvers.Kinds()); err != nil {
		return nil, fmt.Errorf("request service: %w: %w", ErrUnknownRequestType, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	previewLimit := cfg.PreviewLimit
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	return &Service{
		types:        cfg.Types,
		eventTypes:   cfg.EventTypes,
		resolvers:    cfg.Resolvers,
		store:        cfg.Store,
		index:        cfg.Index,
		policy:       cfg.Policy,
		clock:        cfg.Clock,
		logger:       logger,
		renderer:     cfg.Renderer,
		previewLimit: previewLimit,
	}, nil
}

// Types returns the request type registry.
func (s *Service) Types() *TypeRegistry { return s.types }

// EventTypes returns the event type registry.
func (s *Service) EventTypes() *EventTypeRegistry { return s.eventTypes }

// Store returns the backing store, which is also the EventSource for
// calculated fields.
func (s *Service) Store() Store { return s.store }

// PreviewLimit returns the children preview bound.
func (s *Service) PreviewLimit() int { return s.previewLimit }

// CreateParams describes a new request.
type CreateParams struct {
	Type        string
	Title       string
	Description string

	// CreatedBy defaults to the caller.
	CreatedBy ref.Reference
	Receiver  ref.Reference
	Topic     ref.Reference
	Reviewers []ref.Reference

	// ExpiresAt overrides the type's expiry.
	ExpiresAt time.Time

	// Submit runs the submit action immediately, so the request is
	// created open.
	Submit bool
}

// Create validates and stores a new request.
func (s *Service) Create(ctx context.Context, identity permission.Identity, params CreateParams) (*Request, error) {
	if !s.policy.Can(identity, "request/create", nil) {
		return nil, fmt.Errorf("create request: %w", ErrPermissionDenied)
	}
	typ, err := s.types.Lookup(params.Type)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	id := uuid.NewString()
	number, err := generateNumber(ctx, s.store, id)
	if err != nil {
		return nil, err
	}

	creator := params.CreatedBy
	if creator.IsZero() {
		creator = identity.Reference()
	}
	content := schema.Request{
		Version:     schema.RequestVersion,
		ID:          id,
		Number:      number,
		Type:        typ.ID,
		Title:       params.Title,
		Description: params.Description,
		Status:      schema.StatusCreated,
		CreatedBy:   creator,
		Receiver:    optional(params.Receiver),
		Topic:       optional(params.Topic),
		Reviewers:   params.Reviewers,
		CreatedAt:   schema.FormatTimestamp(now),
		UpdatedAt:   schema.FormatTimestamp(now),
	}
	if !params.ExpiresAt.IsZero() {
		content.ExpiresAt = schema.FormatTimestamp(params.ExpiresAt)
	}

	request, err := New(typ, content)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferencesExist(ctx, request); err != nil {
		return nil, err
	}

	var events []schema.Event
	if params.Submit {
		next, event, err := s.apply(request, identity, ActionSubmit, now)
		if err != nil {
			return nil, err
		}
		// A request created open starts at revision zero.
		next.Revision = 0
		if event != nil {
			events = append(events, *event)
		}
		if request, err = New(typ, next); err != nil {
			return nil, err
		}
	}

	stored := request.Content()
	if err := stored.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.store.CreateRequest(ctx, stored, events...); err != nil {
		return nil, err
	}
	s.logger.Info("request created",
		"request_id", stored.ID,
		"number", stored.Number,
		"request_type", stored.Type,
		"status", stored.Status,
	)
	s.reindex(ctx, request.ID())
	return request, nil
}

// checkReferencesExist resolves every reference of a new request and
// rejects the request if any points at a missing entity.
func (s *Service) checkReferencesExist(ctx context.Context, request *Request) error {
	for _, reference := range request.References() {
		proxy, err := request.Proxy(s.resolvers, reference)
		if err != nil {
			return fmt.Errorf("%s: %w: %w", reference, ErrValidation, err)
		}
		if _, err := proxy.Resolve(ctx); err != nil {
			return err
		}
		if proxy.IsGhost() {
			return fmt.Errorf("%s does not exist: %w", reference, ErrValidation)
		}
	}
	return nil
}

// Read returns a request the caller may read.
func (s *Service) Read(ctx context.Context, identity permission.Identity, id string) (*Request, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Can(identity, "request/read", request) {
		return nil, fmt.Errorf("request %s: %w", id, ErrPermissionDenied)
	}
	return request, nil
}

func (s *Service) load(ctx context.Context, id string) (*Request, error) {
	content, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	typ, err := s.types.Lookup(content.Type)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", content.ID, err)
	}
	return New(typ, content)
}

// CanExecute reports whether identity may run action on request now:
// the action exists, its state precondition holds, and the policy
// allows it.
func (s *Service) CanExecute(request *Request, identity permission.Identity, action ActionKind) bool {
	spec, err := request.typ.Action(action)
	if err != nil {
		return false
	}
	return stateAllows(request, spec, identity, s.clock.Now()) &&
		s.policy.Can(identity, action.Permission(), request)
}

func stateAllows(request *Request, spec ActionSpec, identity permission.Identity, now time.Time) bool {
	from := spec.From
	if from == nil {
		from = request.typ.OpenStates
	}
	if !slices.Contains(from, request.content.Status) {
		return false
	}
	return spec.Precondition == nil || spec.Precondition(request, identity, now)
}

// Execute runs an action on a request. The request update and any
// emitted event are stored in one transaction.
func (s *Service) Execute(ctx context.Context, identity permission.Identity, id string, action ActionKind) (*Request, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := request.content.CanModify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConflict, err)
	}

	now := s.clock.Now()
	next, event, err := s.apply(request, identity, action, now)
	if err != nil {
		return nil, err
	}
	if !s.policy.Can(identity, action.Permission(), request) {
		return nil, &ActionError{Action: string(action), RequestID: request.ID(), Status: request.Status(), Err: ErrPermissionDenied}
	}

	updated, err := New(request.typ, next)
	if err != nil {
		return nil, err
	}
	var events []schema.Event
	if event != nil {
		events = append(events, *event)
	}
	if err := s.store.UpdateRequest(ctx, next, request.Revision(), events...); err != nil {
		return nil, err
	}
	s.logger.Info("request action executed",
		"request_id", request.ID(),
		"action", string(action),
		"from", request.Status(),
		"to", next.Status,
		"actor", identity.ID,
	)
	s.reindex(ctx, updated.ID())
	return updated, nil
}

// apply computes the content after action without storing anything.
func (s *Service) apply(request *Request, identity permission.Identity, action ActionKind, now time.Time) (schema.Request, *schema.Event, error) {
	spec, err := request.typ.Action(action)
	if err != nil {
		return schema.Request{}, nil, err
	}
	if !stateAllows(request, spec, identity, now) {
		return schema.Request{}, nil, &ActionError{
			Action:    string(action),
			RequestID: request.ID(),
			Status:    request.Status(),
			Err:       ErrCannotExecuteAction,
		}
	}

	next := request.Content()
	if spec.To != "" {
		next.Status = spec.To
	}
	if spec.Effect != nil {
		if err := spec.Effect(&next, request.typ, now); err != nil {
			return schema.Request{}, nil, &ActionError{Action: string(action), RequestID: request.ID(), Status: request.Status(), Err: err}
		}
	}
	next.UpdatedAt = schema.FormatTimestamp(now)
	next.Revision = request.Revision() + 1

	if spec.Event == "" {
		return next, nil, nil
	}
	actor := identity.Reference()
	if actor.IsZero() {
		actor = ref.System()
	}
	event := &schema.Event{
		ID:        uuid.NewString(),
		RequestID: request.ID(),
		Type:      spec.Event,
		CreatedBy: actor,
		CreatedAt: schema.FormatTimestamp(now),
		UpdatedAt: schema.FormatTimestamp(now),
		Payload:   &schema.Payload{Event: spec.To},
	}
	return next, event, nil
}

// ExpireStale runs the expire action, as the system identity, on every
// open request whose expires_at has passed. Returns the number
// expired. Requests that cannot be expired (closed meanwhile, or
// modified concurrently) are skipped.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.store.ExpiringRequests(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, content := range candidates {
		typ, err := s.types.Lookup(content.Type)
		if err != nil || !typ.IsOpen(content.Status) {
			continue
		}
		if _, err := typ.Action(ActionExpire); err != nil {
			continue
		}
		_, err = s.Execute(ctx, permission.System(), content.ID, ActionExpire)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrCannotExecuteAction), errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
			s.logger.Debug("skipping expiry", "request_id", content.ID, "error", err)
		default:
			return expired, err
		}
	}
	return expired, nil
}

// DumpRequest dumps request using the store as the event source.
func (s *Service) DumpRequest(ctx context.Context, request *Request) (schema.RequestDocument, error) {
	return request.Dump(ctx, s.store, s.clock.Now())
}

// reindex re-reads a request from the store and writes its dump to
// the search index, or removes it once the store no longer returns
// it. The read happens under indexMu, so the last reindex of a
// request always reflects the newest stored revision even when
// writers interleave. An index failure is logged: the store is the
// source of truth and the next reindex repairs the entry.
func (s *Service) reindex(ctx context.Context, id string) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	request, err := s.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.index.Remove(id)
		return
	}
	if err != nil {
		s.logger.Warn("indexing request failed", "request_id", id, "error", err)
		return
	}
	document, err := s.DumpRequest(ctx, request)
	if err != nil {
		s.logger.Warn("indexing request failed", "request_id", id, "error", err)
		return
	}
	if document.IsDeleted {
		s.index.Remove(document.ID)
		return
	}
	s.index.Put(document)
}

// Reindex rebuilds the search index from the store. Returns the
// number of requests indexed.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	var documents []schema.RequestDocument
	err := s.store.ListRequests(ctx, func(content schema.Request) error {
		typ, err := s.types.Lookup(content.Type)
		if err != nil {
			s.logger.Warn("skipping request of unknown type", "request_id", content.ID, "request_type", content.Type)
			return nil
		}
		request, err := New(typ, content)
		if err != nil {
			s.logger.Warn("skipping invalid request", "request_id", content.ID, "error", err)
			return nil
		}
		document, err := s.DumpRequest(ctx, request)
		if err != nil {
			return err
		}
		documents = append(documents, document)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reindexing: %w", err)
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.index.Reset()
	for _, document := range documents {
		s.index.Put(document)
	}
	return len(documents), nil
}

// Search returns the page of indexed requests matching filter that
// identity may read.
func (s *Service) Search(ctx context.Context, identity permission.Identity, filter requestindex.Filter, page, size int) (requestindex.Page, error) {
	if err := ctx.Err(); err != nil {
		return requestindex.Page{}, err
	}
	filter.Visible = func(document *schema.RequestDocument) bool {
		typ, err := s.types.Lookup(document.Type)
		if err != nil {
			return false
		}
		return s.policy.Can(identity, "request/read", &Request{content: document.Request, typ: typ})
	}
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.index.Search(filter, page, size), nil
}
