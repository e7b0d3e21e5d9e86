// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

// Request statuses. A request type declares which statuses count as
// open; every status it does not declare open is closed.
const (
	// StatusCreated is the initial draft status, before submission.
	StatusCreated = "created"

	// StatusOpen is the default open status: submitted and awaiting a
	// decision.
	StatusOpen = "open"

	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"

	// StatusDeleted marks a draft removed by its creator. Deleted
	// requests are also soft-deleted (IsDeleted) and hidden from
	// lookups.
	StatusDeleted = "deleted"
)

// Built-in event type ids. Custom event types registered at startup
// use their own ids; these are reserved.
const (
	EventComment   = "C"
	EventRemoved   = "R"
	EventAccepted  = "A"
	EventDeclined  = "D"
	EventCancelled = "X"
	EventExpired   = "E"
)

// Content formats of event payloads. Only HTML is stored; markdown is
// an input format rendered to HTML on creation.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)
