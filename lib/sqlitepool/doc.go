// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool shared by the
// request store and the entity directory.
//
// It wraps zombiezen.com/go/sqlite with fixed pragmas (WAL journal,
// NORMAL synchronous, busy timeout, memory-mapped reads) and two
// conveniences every caller needs: schema scripts applied to each
// connection on first use, and [Pool.Write] / [Pool.Read] helpers that
// borrow a connection and, for writes, wrap the work in an IMMEDIATE
// transaction.
//
// Callers write SQL directly with sqlitex.Execute. There is no query
// builder.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:    "/var/lib/bureau/requests.db",
//	    Logger:  logger,
//	    Schemas: []string{requeststore.Schema, directory.Schema},
//	})
//	...
//	err = pool.Write(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "UPDATE ...", &sqlitex.ExecOptions{Args: ...})
//	})
package sqlitepool
