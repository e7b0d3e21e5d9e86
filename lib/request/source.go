// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"time"

	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// EventSource answers the queries calculated fields need. The request
// store implements it against SQLite; a Timeline implements it in
// memory for one request.
type EventSource interface {
	// LastEvent returns the most recent event of eventType on the
	// request, or nil if there is none.
	LastEvent(ctx context.Context, requestID, eventType string) (*schema.Event, error)

	// Children returns the replies to parentID, newest first. A
	// positive limit bounds the result; zero or negative returns all.
	Children(ctx context.Context, parentID string, limit int) ([]schema.Event, error)

	// CountChildren returns the number of replies to parentID.
	CountChildren(ctx context.Context, parentID string) (int, error)
}

// Store is the backing store of requests and events.
type Store interface {
	EventSource

	// GetRequest looks a request up by external number, falling back
	// to the internal id. Soft-deleted requests are not found.
	// Returns ErrInvalidID for an empty id and ErrNotFound when
	// neither lookup finds exactly one request.
	GetRequest(ctx context.Context, id string) (schema.Request, error)

	// NumberExists reports whether any request, deleted or not, has
	// the external number.
	NumberExists(ctx context.Context, number string) (bool, error)

	// CreateRequest inserts a request and its initial events in one
	// transaction.
	CreateRequest(ctx context.Context, content schema.Request, events ...schema.Event) error

	// UpdateRequest replaces a request whose stored revision is
	// expectedRevision, and inserts events, in one transaction.
	// Returns ErrConflict when the stored revision differs.
	UpdateRequest(ctx context.Context, content schema.Request, expectedRevision int, events ...schema.Event) error

	// ListRequests calls fn for every request that is not
	// soft-deleted.
	ListRequests(ctx context.Context, fn func(schema.Request) error) error

	// ExpiringRequests returns requests that are not soft-deleted and
	// whose expires_at is at or before cutoff.
	ExpiringRequests(ctx context.Context, cutoff time.Time) ([]schema.Request, error)

	// GetEvent returns one event.
	GetEvent(ctx context.Context, id string) (schema.Event, error)

	// CreateEvent inserts an event.
	CreateEvent(ctx context.Context, event schema.Event) error

	// UpdateEvent replaces an event whose stored revision is
	// expectedRevision.
	UpdateEvent(ctx context.Context, event schema.Event, expectedRevision int) error

	// RequestEvents returns every event of a request in creation
	// order.
	RequestEvents(ctx context.Context, requestID string) ([]schema.Event, error)
}
