// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package requeststore persists requests and their events in SQLite.
//
// Each row keeps the full CBOR document alongside the columns that
// queries filter and order on (number, status, expiry, parent). Large
// documents are compressed: requests with LZ4, whose small and
// frequently read documents favor decode speed, and events with zstd,
// whose comment text compresses well. The compression tag is stored
// per row, so changing the configuration never breaks existing rows.
//
// [Store] implements request.Store. Writes that touch a request and
// its events run in one immediate transaction; updates carry the
// revision the writer read and fail with request.ErrConflict when the
// stored revision differs.
package requeststore
