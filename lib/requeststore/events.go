// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requeststore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/requests/lib/request"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

const eventColumns = "compression, size, document"

func (s *Store) eventArgs(event schema.Event) ([]any, error) {
	created, err := unixNanos(event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("event %s created: %w", event.ID, err)
	}
	document, err := s.encode(event, s.eventCompression)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", event.ID, err)
	}
	return []any{
		event.ID, event.RequestID, nullable(event.ParentID), event.Type, created, event.Revision,
		int(document.compression), document.size, document.data,
	}, nil
}

func (s *Store) insertEvents(conn *sqlite.Conn, events []schema.Event) error {
	for _, event := range events {
		args, err := s.eventArgs(event)
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn, `
			INSERT INTO request_events (id, request_id, parent_id, type, created_at, revision, compression, size, document)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: args})
		if err != nil {
			return fmt.Errorf("inserting event %s: %w", event.ID, err)
		}
	}
	return nil
}

// queryEvents runs query and decodes the document of every row,
// which must select eventColumns.
func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]schema.Event, error) {
	var events []schema.Event
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var event schema.Event
				if err := decodeColumns(stmt, 2, &event); err != nil {
					return fmt.Errorf("decoding event: %w", err)
				}
				events = append(events, event)
				return nil
			},
		})
	})
	return events, err
}

// GetEvent implements request.Store.
func (s *Store) GetEvent(ctx context.Context, id string) (schema.Event, error) {
	if id == "" {
		return schema.Event{}, fmt.Errorf("empty event id: %w", request.ErrInvalidID)
	}
	events, err := s.queryEvents(ctx, "SELECT "+eventColumns+" FROM request_events WHERE id = ?", id)
	if err != nil {
		return schema.Event{}, fmt.Errorf("requeststore: reading event %s: %w", id, err)
	}
	if len(events) == 0 {
		return schema.Event{}, fmt.Errorf("event %s: %w", id, request.ErrNotFound)
	}
	return events[0], nil
}

// CreateEvent implements request.Store. The request must exist.
func (s *Store) CreateEvent(ctx context.Context, event schema.Event) error {
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		found := false
		err := sqlitex.Execute(conn, "SELECT 1 FROM requests WHERE id = ?", &sqlitex.ExecOptions{
			Args:       []any{event.RequestID},
			ResultFunc: func(*sqlite.Stmt) error { found = true; return nil },
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("request %s: %w", event.RequestID, request.ErrNotFound)
		}
		return s.insertEvents(conn, []schema.Event{event})
	})
	if err != nil {
		return fmt.Errorf("requeststore: creating event %s: %w", event.ID, err)
	}
	s.logger.Debug("event stored", "request_id", event.RequestID, "event_id", event.ID)
	return nil
}

// UpdateEvent implements request.Store.
func (s *Store) UpdateEvent(ctx context.Context, event schema.Event, expectedRevision int) error {
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		stored, found := 0, false
		err := sqlitex.Execute(conn, "SELECT revision FROM request_events WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{event.ID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stored, found = stmt.ColumnInt(0), true
				return nil
			},
		})
		if err != nil {
			return err
		}
		if !found {
			return request.ErrNotFound
		}
		if stored != expectedRevision {
			return fmt.Errorf("stored revision %d, expected %d: %w", stored, expectedRevision, request.ErrConflict)
		}
		args, err := s.eventArgs(event)
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn, `
			UPDATE request_events SET request_id = ?2, parent_id = ?3, type = ?4, created_at = ?5,
				revision = ?6, compression = ?7, size = ?8, document = ?9
			WHERE id = ?1`,
			&sqlitex.ExecOptions{Args: args})
	})
	if err != nil {
		return fmt.Errorf("requeststore: updating event %s: %w", event.ID, err)
	}
	return nil
}

// RequestEvents implements request.Store.
func (s *Store) RequestEvents(ctx context.Context, requestID string) ([]schema.Event, error) {
	events, err := s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM request_events WHERE request_id = ? ORDER BY created_at, seq",
		requestID)
	if err != nil {
		return nil, fmt.Errorf("requeststore: reading events of %s: %w", requestID, err)
	}
	return events, nil
}

// LastEvent implements request.EventSource.
func (s *Store) LastEvent(ctx context.Context, requestID, eventType string) (*schema.Event, error) {
	events, err := s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM request_events WHERE request_id = ? AND type = ? ORDER BY created_at DESC, seq DESC LIMIT 1",
		requestID, eventType)
	if err != nil {
		return nil, fmt.Errorf("requeststore: last %s event of %s: %w", eventType, requestID, err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// Children implements request.EventSource.
func (s *Store) Children(ctx context.Context, parentID string, limit int) ([]schema.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	events, err := s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM request_events WHERE parent_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?",
		parentID, limit)
	if err != nil {
		return nil, fmt.Errorf("requeststore: replies to %s: %w", parentID, err)
	}
	return events, nil
}

// CountChildren implements request.EventSource.
func (s *Store) CountChildren(ctx context.Context, parentID string) (int, error) {
	count := 0
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT COUNT(*) FROM request_events WHERE parent_id = ?", &sqlitex.ExecOptions{
			Args:       []any{parentID},
			ResultFunc: func(stmt *sqlite.Stmt) error { count = stmt.ColumnInt(0); return nil },
		})
	})
	if err != nil {
		return 0, fmt.Errorf("requeststore: counting replies to %s: %w", parentID, err)
	}
	return count, nil
}
