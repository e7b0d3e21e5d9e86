// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/requests/lib/clock"
	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
	"github.com/bureau-foundation/requests/lib/requestindex"
	"github.com/bureau-foundation/requests/lib/resolver"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// epoch is the fake clock's starting time in every test.
var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// memoryStore is an in-memory Store. Events are kept in insertion
// order, which the tests keep equal to creation order.
type memoryStore struct {
	mu       sync.Mutex
	requests []schema.Request
	events   []schema.Event

	// queries counts EventSource calls, so tests can assert that a
	// cached field did not touch the store.
	queries int
}

func newMemoryStore() *memoryStore { return &memoryStore{} }

func (s *memoryStore) GetRequest(_ context.Context, id string) (schema.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		return schema.Request{}, fmt.Errorf("empty request id: %w", ErrInvalidID)
	}
	var matches []schema.Request
	for _, request := range s.requests {
		if request.Number == id && !request.IsDeleted {
			matches = append(matches, request)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return schema.Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	for _, request := range s.requests {
		if request.ID == id && !request.IsDeleted {
			return request, nil
		}
	}
	return schema.Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
}

func (s *memoryStore) NumberExists(_ context.Context, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.requests, func(request schema.Request) bool {
		return request.Number == number
	}), nil
}

func (s *memoryStore) CreateRequest(_ context.Context, content schema.Request, events ...schema.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, content)
	s.events = append(s.events, events...)
	return nil
}

func (s *memoryStore) UpdateRequest(_ context.Context, content schema.Request, expectedRevision int, events ...schema.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, stored := range s.requests {
		if stored.ID != content.ID {
			continue
		}
		if stored.Revision != expectedRevision {
			return fmt.Errorf("request %s at revision %d, expected %d: %w", content.ID, stored.Revision, expectedRevision, ErrConflict)
		}
		s.requests[i] = content
		s.events = append(s.events, events...)
		return nil
	}
	return fmt.Errorf("request %s: %w", content.ID, ErrNotFound)
}

func (s *memoryStore) ListRequests(_ context.Context, fn func(schema.Request) error) error {
	s.mu.Lock()
	requests := slices.Clone(s.requests)
	s.mu.Unlock()
	for _, request := range requests {
		if request.IsDeleted {
			continue
		}
		if err := fn(request); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore) ExpiringRequests(_ context.Context, cutoff time.Time) ([]schema.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expiring []schema.Request
	for _, request := range s.requests {
		if request.IsDeleted || request.ExpiresAt == "" {
			continue
		}
		expiresAt, err := schema.ParseTimestamp(request.ExpiresAt)
		if err != nil {
			return nil, err
		}
		if !expiresAt.After(cutoff) {
			expiring = append(expiring, request)
		}
	}
	return expiring, nil
}

func (s *memoryStore) GetEvent(_ context.Context, id string) (schema.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event.ID == id {
			return event, nil
		}
	}
	return schema.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
}

func (s *memoryStore) CreateEvent(_ context.Context, event schema.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memoryStore) UpdateEvent(_ context.Context, event schema.Event, expectedRevision int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, stored := range s.events {
		if stored.ID != event.ID {
			continue
		}
		if stored.Revision != expectedRevision {
			return fmt.Errorf("event %s: %w", event.ID, ErrConflict)
		}
		s.events[i] = event
		return nil
	}
	return fmt.Errorf("event %s: %w", event.ID, ErrNotFound)
}

func (s *memoryStore) RequestEvents(_ context.Context, requestID string) ([]schema.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []schema.Event
	for _, event := range s.events {
		if event.RequestID == requestID {
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *memoryStore) LastEvent(_ context.Context, requestID, eventType string) (*schema.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for i := len(s.events) - 1; i >= 0; i-- {
		if event := s.events[i]; event.RequestID == requestID && event.Type == eventType {
			return &event, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) Children(_ context.Context, parentID string, limit int) ([]schema.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var children []schema.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ParentID == parentID {
			children = append(children, s.events[i])
			if limit > 0 && len(children) == limit {
				break
			}
		}
	}
	return children, nil
}

func (s *memoryStore) CountChildren(_ context.Context, parentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	count := 0
	for _, event := range s.events {
		if event.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) eventsOfType(requestID, eventType string) []schema.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []schema.Event
	for _, event := range s.events {
		if event.RequestID == requestID && event.Type == eventType {
			events = append(events, event)
		}
	}
	return events
}

// failingSource is an EventSource that fails every query. Reading a
// calculated field through it succeeds only from the cache.
type failingSource struct{}

var errSourceUsed = errors.New("event source used")

func (failingSource) LastEvent(context.Context, string, string) (*schema.Event, error) {
	return nil, errSourceUsed
}

func (failingSource) Children(context.Context, string, int) ([]schema.Event, error) {
	return nil, errSourceUsed
}

func (failingSource) CountChildren(context.Context, string) (int, error) {
	return 0, errSourceUsed
}

// documentService serves entity documents from a map.
type documentService struct {
	name      string
	documents map[string]resolver.Document
}

func (s *documentService) Name() string { return s.name }

func (s *documentService) Read(_ context.Context, id string) (resolver.Document, error) {
	document, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", s.name, id, resolver.ErrEntityNotFound)
	}
	return document, nil
}

func (s *documentService) ReadMany(ctx context.Context, ids []string) (resolver.ReadManyResult, error) {
	var result resolver.ReadManyResult
	for _, id := range ids {
		if document, err := s.Read(ctx, id); err == nil {
			result.Found = append(result.Found, document)
		} else {
			result.MissingIDs = append(result.MissingIDs, id)
		}
	}
	return result, nil
}

// testRegistry returns resolvers for users 1 to 3, group curators,
// and record rec-1. Entities decode to their documents.
func testRegistry(t *testing.T) *resolver.Registry {
	t.Helper()
	entities := map[string][]string{
		ref.KindUser:      {"1", "2", "3"},
		ref.KindGroup:     {"curators"},
		ref.KindRecord:    {"rec-1"},
		ref.KindCommunity: {"climate"},
	}
	var resolvers []resolver.Resolver
	for _, kind := range []string{ref.KindUser, ref.KindGroup, ref.KindRecord, ref.KindCommunity} {
		service := &documentService{name: kind + "s", documents: make(map[string]resolver.Document)}
		for _, id := range entities[kind] {
			service.documents[id] = resolver.Document{"id": id, "kind": kind}
		}
		definition := resolver.Definition{
			TypeID:  kind + "s",
			Kind:    kind,
			Service: service,
			Match: func(entity any) bool {
				document, ok := entity.(resolver.Document)
				return ok && document["kind"] == kind
			},
			ID:     func(entity any) string { return entity.(resolver.Document)["id"].(string) },
			Decode: func(document resolver.Document) (any, error) { return document, nil },
		}
		if kind == ref.KindUser {
			definition.System = func(id string) (resolver.Document, bool) {
				if id == ref.SystemID {
					return resolver.Document{"id": ref.SystemID, "kind": kind}, true
				}
				return nil, false
			}
		}
		built, err := resolver.New(definition)
		if err != nil {
			t.Fatalf("resolver.New(%s): %v", kind, err)
		}
		resolvers = append(resolvers, built)
	}
	registry, err := resolver.NewRegistry(resolvers...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

// mockType is a request type with the default action table whose
// receiver is a user or group.
func mockType() *Type {
	return &Type{
		ID:         "mock",
		Name:       "Mock",
		OpenStates: []string{schema.StatusOpen},
		Actions:    DefaultActions(),
		Creator:    SlotRule{Kinds: []string{ref.KindUser}},
		Receiver:   SlotRule{Kinds: []string{ref.KindUser, ref.KindGroup}},
		Topic:      SlotRule{Kinds: []string{ref.KindRecord}, Nullable: true},
		Reviewers:  SlotRule{Kinds: []string{ref.KindUser, ref.KindGroup}, Nullable: true},
	}
}

// paragraphRenderer wraps content in a paragraph in place of markdown rendering.
type paragraphRenderer struct{}

func (paragraphRenderer) Render(markdown string) (string, error) {
	return "<p>" + markdown + "</p>", nil
}

type testEnv struct {
	service *Service
	store   *memoryStore
	clock   *clock.FakeClock
	index   *requestindex.Index
}

type testOption func(*ServiceConfig)

func withPolicy(policy permission.Policy) testOption {
	return func(cfg *ServiceConfig) { cfg.Policy = policy }
}

func withTypes(types ...*Type) testOption {
	return func(cfg *ServiceConfig) {
		registry, err := NewTypeRegistry(types...)
		if err != nil {
			panic(err)
		}
		cfg.Types = registry
	}
}

func withRenderer(renderer Renderer) testOption {
	return func(cfg *ServiceConfig) { cfg.Renderer = renderer }
}

// withStore replaces the service's store. env.store still points at
// the default memoryStore, so tests using this option keep their own
// handle on the replacement.
func withStore(store Store) testOption {
	return func(cfg *ServiceConfig) { cfg.Store = store }
}

// interleavingStore runs afterCreateEvent once, right after an event is
// stored, to put another writer between a mutation and its reindex.
type interleavingStore struct {
	*memoryStore
	afterCreateEvent func()
}

func (s *interleavingStore) CreateEvent(ctx context.Context, event schema.Event) error {
	if err := s.memoryStore.CreateEvent(ctx, event); err != nil {
		return err
	}
	if hook := s.afterCreateEvent; hook != nil {
		s.afterCreateEvent = nil
		hook()
	}
	return nil
}

// newTestEnv builds a Service over a memoryStore with the default
// grants, the mock and default types, and a fake clock at epoch.
func newTestEnv(t *testing.T, options ...testOption) *testEnv {
	t.Helper()
	types, err := NewTypeRegistry(DefaultType(), mockType())
	if err != nil {
		t.Fatalf("NewTypeRegistry: %v", err)
	}
	eventTypes, err := NewEventTypeRegistry()
	if err != nil {
		t.Fatalf("NewEventTypeRegistry: %v", err)
	}
	env := &testEnv{
		store: newMemoryStore(),
		clock: clock.Fake(epoch),
		index: requestindex.NewIndex(),
	}
	cfg := ServiceConfig{
		Types:      types,
		EventTypes: eventTypes,
		Resolvers:  testRegistry(t),
		Store:      env.store,
		Index:      env.index,
		Policy:     &permission.GrantPolicy{Grants: permission.DefaultGrants()},
		Clock:      env.clock,
	}
	for _, option := range options {
		option(&cfg)
	}
	env.service, err = NewService(cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return env
}

var (
	alice = permission.Identity{ID: "1"}
	bob   = permission.Identity{ID: "2"}
	carol = permission.Identity{ID: "3", Groups: []string{"curators"}}
)

// openRequest creates a submitted mock request from alice to bob.
func (env *testEnv) openRequest(t *testing.T) *Request {
	t.Helper()
	request, err := env.service.Create(context.Background(), alice, CreateParams{
		Type:     "mock",
		Title:    "Access to dataset",
		Receiver: ref.User("2"),
		Submit:   true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return request
}

// comment posts a comment as identity, advancing the clock first so
// creation times are strictly increasing.
func (env *testEnv) comment(t *testing.T, identity permission.Identity, requestID, parentID, content string) *Event {
	t.Helper()
	env.clock.Advance(time.Second)
	event, err := env.service.CreateEvent(context.Background(), identity, requestID, CreateEventParams{
		ParentID: parentID,
		Content:  content,
	})
	if err != nil {
		t.Fatalf("CreateEvent(%q): %v", content, err)
	}
	return event
}

func eventContents(events []schema.Event) []string {
	contents := make([]string, len(events))
	for i, event := range events {
		if event.Payload != nil {
			contents[i] = event.Payload.Content
		}
	}
	return contents
}
