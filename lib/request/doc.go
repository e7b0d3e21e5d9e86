// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package request implements the request workflow: request types with
// their action tables and slot rules, the in-memory Request and Event
// entities with their calculated-field caches, the per-request event
// Timeline, and the [Service] that performs every mutation.
//
// # Types and actions
//
// A [Type] is the single source of truth for a request's behavior. Its
// action table maps an [ActionKind] to an [ActionSpec] naming the
// statuses the action may run from, the status it leads to, the event
// it emits, and optional precondition and effect functions. Types are
// registered once at startup in an immutable [TypeRegistry].
//
// Executing an action checks, in order: that the type defines the
// action ([ErrNoSuchAction]), that the current status and precondition
// allow it ([ErrCannotExecuteAction]), and that the caller's policy
// allows it ([ErrPermissionDenied]). The new content and any emitted
// event are written in one store transaction guarded by the request's
// revision, so a concurrent change fails with [ErrConflict] instead of
// being overwritten.
//
// # Events and threading
//
// Events hang off a request. An event whose type allows threading may
// receive replies; replies cannot themselves be replied to, so a
// thread is at most two levels deep. Replies reference their parent by
// id only. [Timeline] holds one request's events as an arena keyed by
// id and answers children queries without further store access.
//
// # Calculated fields
//
// last_reply, last_activity, and each event's children preview are
// computed from the store on first access and cached on the entity.
// [Request.Dump] writes them into the indexed document; [Load] and
// [LoadEvent] seed the cache from a dump so reading a search hit needs
// no store round trip. [WithoutCache] forces a fresh computation.
package request
