// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package requestindex is the in-memory search index over dumped
// request documents. It keeps secondary indexes for the filter
// dimensions (status, type, and each reference slot) and an
// incrementally maintained BM25 term index over titles and
// descriptions, so a search touches only candidate requests.
//
// The request service owns the index: it writes every stored change
// through [Index.Put] and [Index.Remove], and rebuilds it from the
// store at startup. The index is not safe for concurrent use; the
// service serializes access.
package requestindex
