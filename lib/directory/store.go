// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/requests/lib/clock"
	"github.com/bureau-foundation/requests/lib/codec"
	"github.com/bureau-foundation/requests/lib/resolver"
	"github.com/bureau-foundation/requests/lib/sqlitepool"
)

// Schema creates the entities table. Pass it to sqlitepool.Config.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	document   BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (kind, id)
);
`

// readManyChunk bounds the number of parameters in one IN query.
const readManyChunk = 500

// Directory is the SQLite-backed entity store.
type Directory struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// New wraps a pool whose schemas include Schema.
func New(pool *sqlitepool.Pool, clk clock.Clock, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Directory{pool: pool, clock: clk, logger: logger}
}

// Put inserts or replaces an entity.
func (d *Directory) Put(ctx context.Context, entity any) error {
	kind, id, err := identify(entity)
	if err != nil {
		return err
	}
	document, err := codec.Marshal(entity)
	if err != nil {
		return fmt.Errorf("directory: encoding %s %s: %w", kind, id, err)
	}
	err = d.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO entities (kind, id, document, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (kind, id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{Args: []any{kind, id, document, d.clock.Now().UnixNano()}})
	})
	if err != nil {
		return fmt.Errorf("directory: storing %s %s: %w", kind, id, err)
	}
	d.logger.Debug("entity stored", "kind", kind, "id", id)
	return nil
}

// Service returns the resolver.Service for one kind.
func (d *Directory) Service(kind string) *KindService {
	return &KindService{directory: d, kind: kind}
}

// KindService serves the entities of one kind.
type KindService struct {
	directory *Directory
	kind      string
}

// Name implements resolver.Service.
func (s *KindService) Name() string { return "directory/" + s.kind }

// Read implements resolver.Service.
func (s *KindService) Read(ctx context.Context, id string) (resolver.Document, error) {
	var document resolver.Document
	err := s.directory.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT document FROM entities WHERE kind = ? AND id = ?",
			&sqlitex.ExecOptions{
				Args: []any{s.kind, id},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					var err error
					document, err = decodeDocumentColumn(stmt, 0)
					return err
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("directory: reading %s %s: %w", s.kind, id, err)
	}
	if document == nil {
		return nil, fmt.Errorf("%s %s: %w", s.kind, id, resolver.ErrEntityNotFound)
	}
	return document, nil
}

// ReadMany implements resolver.Service. Duplicate ids are fetched
// once and reported once.
func (s *KindService) ReadMany(ctx context.Context, ids []string) (resolver.ReadManyResult, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	found := make(map[string]bool, len(unique))
	var result resolver.ReadManyResult
	err := s.directory.pool.Read(ctx, func(conn *sqlite.Conn) error {
		for start := 0; start < len(unique); start += readManyChunk {
			chunk := unique[start:min(start+readManyChunk, len(unique))]
			args := make([]any, 0, len(chunk)+1)
			args = append(args, s.kind)
			for _, id := range chunk {
				args = append(args, id)
			}
			query := "SELECT id, document FROM entities WHERE kind = ? AND id IN (" +
				strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",") + ")"
			err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
				Args: args,
				ResultFunc: func(stmt *sqlite.Stmt) error {
					id := stmt.ColumnText(0)
					document, err := decodeDocumentColumn(stmt, 1)
					if err != nil {
						return fmt.Errorf("entity %s: %w", id, err)
					}
					found[id] = true
					result.Found = append(result.Found, document)
					return nil
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return resolver.ReadManyResult{}, fmt.Errorf("directory: reading %d %s entities: %w", len(unique), s.kind, err)
	}
	for _, id := range unique {
		if !found[id] {
			result.MissingIDs = append(result.MissingIDs, id)
		}
	}
	return result, nil
}

func decodeDocumentColumn(stmt *sqlite.Stmt, column int) (resolver.Document, error) {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	var document resolver.Document
	if err := codec.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return document, nil
}
