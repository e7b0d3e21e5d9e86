// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requeststore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/requests/lib/codec"
	"github.com/bureau-foundation/requests/lib/request"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
	"github.com/bureau-foundation/requests/lib/sqlitepool"
)

// Schema creates the request tables. Pass it to sqlitepool.Config.
//
// Events are ordered by created_at and then by seq, the insertion
// sequence, so events created within one clock tick keep their
// insertion order.
const Schema = `
CREATE TABLE IF NOT EXISTS requests (
	id           TEXT    PRIMARY KEY,
	number       TEXT    NOT NULL UNIQUE,
	request_type TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	is_deleted   INTEGER NOT NULL DEFAULT 0,
	expires_at   INTEGER,
	created_at   INTEGER NOT NULL,
	revision     INTEGER NOT NULL,
	compression  INTEGER NOT NULL,
	size         INTEGER NOT NULL,
	document     BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_expiry ON requests(expires_at) WHERE expires_at IS NOT NULL AND is_deleted = 0;

CREATE TABLE IF NOT EXISTS request_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT    NOT NULL UNIQUE,
	request_id  TEXT    NOT NULL,
	parent_id   TEXT,
	type        TEXT    NOT NULL,
	created_at  INTEGER NOT NULL,
	revision    INTEGER NOT NULL,
	compression INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	document    BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_request ON request_events(request_id, type, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_events_parent ON request_events(parent_id, created_at, seq) WHERE parent_id IS NOT NULL;
`

// Config configures a Store.
type Config struct {
	// RequestCompression and EventCompression select the algorithm
	// for new rows. Defaults: LZ4 for requests, zstd for events.
	RequestCompression *Compression
	EventCompression   *Compression

	// MinCompressSize is the smallest document compressed. Zero means
	// DefaultMinCompressSize.
	MinCompressSize int

	Logger *slog.Logger
}

// Store implements request.Store over a sqlitepool.Pool whose schemas
// include Schema.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger

	requestCompression Compression
	eventCompression   Compression
	minCompressSize    int
}

var _ request.Store = (*Store)(nil)

// New returns a Store on pool.
func New(pool *sqlitepool.Pool, cfg Config) *Store {
	store := &Store{
		pool:               pool,
		logger:             cfg.Logger,
		requestCompression: CompressionLZ4,
		eventCompression:   CompressionZstd,
		minCompressSize:    cfg.MinCompressSize,
	}
	if store.logger == nil {
		store.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.RequestCompression != nil {
		store.requestCompression = *cfg.RequestCompression
	}
	if cfg.EventCompression != nil {
		store.eventCompression = *cfg.EventCompression
	}
	if store.minCompressSize <= 0 {
		store.minCompressSize = DefaultMinCompressSize
	}
	return store
}

// encoded is a document ready for a BLOB column.
type encoded struct {
	data        []byte
	compression Compression
	size        int
}

func (s *Store) encode(value any, preferred Compression) (encoded, error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return encoded{}, err
	}
	compressed, tag, err := compress(data, preferred, s.minCompressSize)
	if err != nil {
		return encoded{}, err
	}
	return encoded{data: compressed, compression: tag, size: len(data)}, nil
}

// decodeColumns decodes the document at column, whose compression tag
// and size are in the two columns before it.
func decodeColumns(stmt *sqlite.Stmt, column int, target any) error {
	tag := Compression(stmt.ColumnInt(column - 2))
	size := stmt.ColumnInt(column - 1)
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	raw, err := decompress(data, tag, size)
	if err != nil {
		return err
	}
	return codec.Unmarshal(raw, target)
}

func unixNanos(timestamp string) (int64, error) {
	parsed, err := schema.ParseTimestamp(timestamp)
	if err != nil {
		return 0, err
	}
	return parsed.UnixNano(), nil
}

// optionalUnixNanos maps an empty timestamp to NULL.
func optionalUnixNanos(timestamp string) (any, error) {
	if timestamp == "" {
		return nil, nil
	}
	return unixNanos(timestamp)
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

const requestColumns = "compression, size, document"

// GetRequest implements request.Store. The id is tried as an external
// number first. Only when that does not find exactly one request, and
// the id is a well-formed UUID, is it tried as an internal id.
func (s *Store) GetRequest(ctx context.Context, id string) (schema.Request, error) {
	if id == "" {
		return schema.Request{}, fmt.Errorf("empty request id: %w", request.ErrInvalidID)
	}
	var matches []schema.Request
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		collect := func(stmt *sqlite.Stmt) error {
			var content schema.Request
			if err := decodeColumns(stmt, 2, &content); err != nil {
				return fmt.Errorf("decoding request: %w", err)
			}
			matches = append(matches, content)
			return nil
		}
		err := sqlitex.Execute(conn,
			"SELECT "+requestColumns+" FROM requests WHERE number = ? AND is_deleted = 0 LIMIT 2",
			&sqlitex.ExecOptions{Args: []any{id}, ResultFunc: collect})
		if err != nil || len(matches) == 1 {
			return err
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil
		}
		matches = nil
		return sqlitex.Execute(conn,
			"SELECT "+requestColumns+" FROM requests WHERE id = ? AND is_deleted = 0",
			&sqlitex.ExecOptions{Args: []any{id}, ResultFunc: collect})
	})
	if err != nil {
		return schema.Request{}, fmt.Errorf("requeststore: reading request %s: %w", id, err)
	}
	if len(matches) != 1 {
		return schema.Request{}, fmt.Errorf("request %s: %w", id, request.ErrNotFound)
	}
	return matches[0], nil
}

// NumberExists implements request.Store.
func (s *Store) NumberExists(ctx context.Context, number string) (bool, error) {
	exists := false
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT 1 FROM requests WHERE number = ?", &sqlitex.ExecOptions{
			Args:       []any{number},
			ResultFunc: func(*sqlite.Stmt) error { exists = true; return nil },
		})
	})
	if err != nil {
		return false, fmt.Errorf("requeststore: checking number %s: %w", number, err)
	}
	return exists, nil
}

// CreateRequest implements request.Store.
func (s *Store) CreateRequest(ctx context.Context, content schema.Request, events ...schema.Event) error {
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		args, err := s.requestArgs(content)
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn, `
			INSERT INTO requests (id, number, request_type, status, is_deleted, expires_at, created_at, revision, compression, size, document)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: args})
		if err != nil {
			return err
		}
		return s.insertEvents(conn, events)
	})
	if err != nil {
		return fmt.Errorf("requeststore: creating request %s: %w", content.ID, err)
	}
	s.logger.Debug("request stored", "request_id", content.ID, "events", len(events))
	return nil
}

func (s *Store) requestArgs(content schema.Request) ([]any, error) {
	created, err := unixNanos(content.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("created: %w", err)
	}
	expires, err := optionalUnixNanos(content.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}
	document, err := s.encode(content, s.requestCompression)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	deleted := 0
	if content.IsDeleted {
		deleted = 1
	}
	return []any{
		content.ID, content.Number, content.Type, content.Status, deleted,
		expires, created, content.Revision,
		int(document.compression), document.size, document.data,
	}, nil
}

// UpdateRequest implements request.Store.
func (s *Store) UpdateRequest(ctx context.Context, content schema.Request, expectedRevision int, events ...schema.Event) error {
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		stored, found := 0, false
		err := sqlitex.Execute(conn, "SELECT revision FROM requests WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{content.ID},
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

		args, err := s.requestArgs(content)
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn, `
			UPDATE requests SET number = ?2, request_type = ?3, status = ?4, is_deleted = ?5, expires_at = ?6,
				created_at = ?7, revision = ?8, compression = ?9, size = ?10, document = ?11
			WHERE id = ?1`,
			&sqlitex.ExecOptions{Args: args})
		if err != nil {
			return err
		}
		return s.insertEvents(conn, events)
	})
	if err != nil {
		return fmt.Errorf("requeststore: updating request %s: %w", content.ID, err)
	}
	return nil
}

// ListRequests implements request.Store. Requests are visited in
// creation order.
func (s *Store) ListRequests(ctx context.Context, fn func(schema.Request) error) error {
	return s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT "+requestColumns+" FROM requests WHERE is_deleted = 0 ORDER BY created_at, id",
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				var content schema.Request
				if err := decodeColumns(stmt, 2, &content); err != nil {
					return fmt.Errorf("requeststore: decoding request: %w", err)
				}
				return fn(content)
			}})
	})
}

// ExpiringRequests implements request.Store.
func (s *Store) ExpiringRequests(ctx context.Context, cutoff time.Time) ([]schema.Request, error) {
	var requests []schema.Request
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT "+requestColumns+" FROM requests WHERE expires_at IS NOT NULL AND expires_at <= ? AND is_deleted = 0 ORDER BY expires_at",
			&sqlitex.ExecOptions{
				Args: []any{cutoff.UnixNano()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					var content schema.Request
					if err := decodeColumns(stmt, 2, &content); err != nil {
						return err
					}
					requests = append(requests, content)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("requeststore: listing expiring requests: %w", err)
	}
	return requests, nil
}
