// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-request-service serves the request workflow over a CBOR Unix
// socket: request creation, the action machine, threaded timelines,
// search, and expanded results. Open requests past their expiry are
// expired by a periodic sweep.
//
// # Socket actions
//
// Every request is a CBOR map with an "action" field and, for actions
// that act on behalf of a caller, an "identity" map ({id, groups}).
// Failures carry an error_kind tag from request.ErrorKind.
//
//	status           uptime
//	types            registered request types and their actions
//	create           create a request, optionally submitting it
//	get              one request by number or id
//	search           filtered, paginated, permission-filtered requests
//	action           run a request action ("request_action" field)
//	comment          post a comment or reply
//	update-comment   replace a comment's content
//	delete-comment   turn a comment into a removed event
//	event            one event
//	children         replies to an event, previewed or full, with the reply count
//	timeline         top-level events with previewed replies
//	directory/put    store a user, group, record, or community
//
// Result items carry an "expanded" map of resolved references and a
// "links" map built from the configured API and UI base URLs.
package main
