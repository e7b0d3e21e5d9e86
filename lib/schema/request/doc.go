// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package request defines the stored and dumped forms of requests and
// request events.
//
// [Request] and [Event] are the canonical stored content: exactly what
// the request store persists and what every mutation reads and
// rewrites. [RequestDocument] and [EventDocument] are the dump forms
// written to the search index and returned by reads: the stored
// content plus calculated fields serialized to primitive values
// (is_open, is_expired, last_reply, last_activity, children_preview,
// children_count, has_more_children).
//
// Reference slots are ref.Reference values, which serialize as
// single-key maps ({"user": "42"}). Timestamps are RFC 3339 strings in
// UTC; [ParseTimestamp] also accepts the timezone-naive form older
// writers produced and normalizes it to UTC, so comparisons never mix
// naive and aware values.
package request
