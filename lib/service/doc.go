// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket transport of the request
// service.
//
// [SocketServer] serves a CBOR request-response protocol: each
// connection carries one request map with an "action" field, routed
// to the [ActionFunc] registered for that action, and one [Response]
// envelope back. Failed actions carry the error message and, when the
// server was built with an [ErrorClassifier], a machine-readable
// error_kind tag. [ServiceClient] is the matching client.
//
// # Authentication
//
// Socket-level caller authentication is not implemented. Physical
// access control (file permissions on the socket) determines who can
// reach the service; requests carry the caller's identity and the
// service trusts it.
package service
