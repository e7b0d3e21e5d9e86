// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
	"github.com/bureau-foundation/requests/lib/resolver"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// Request is the in-memory form of one request: its stored content,
// its type, a cache of calculated fields, and proxies for its
// reference slots. A Request is private to one operation and not safe
// for concurrent use.
type Request struct {
	content schema.Request
	typ     *Type

	computed requestCache
	proxies  map[ref.Reference]resolver.Proxy
}

// requestCache holds the calculated fields of a request. Each slot is
// filled at load time (when the field was dumped) or on first access.
type requestCache struct {
	lastReply    *schema.Event
	hasLastReply bool

	lastActivity    time.Time
	hasLastActivity bool
}

// New wraps stored content with its type, validating every slot.
func New(typ *Type, content schema.Request) (*Request, error) {
	if content.Type != typ.ID {
		return nil, fmt.Errorf("request %s has type %q, not %q: %w", content.ID, content.Type, typ.ID, ErrValidation)
	}
	if err := typ.CheckSlots(&content); err != nil {
		return nil, err
	}
	content.Reviewers = slices.Clone(content.Reviewers)
	return &Request{content: content, typ: typ}, nil
}

// Content returns a copy of the stored content.
func (r *Request) Content() schema.Request {
	content := r.content
	content.Reviewers = slices.Clone(r.content.Reviewers)
	return content
}

func (r *Request) ID() string     { return r.content.ID }
func (r *Request) Number() string { return r.content.Number }
func (r *Request) Status() string { return r.content.Status }
func (r *Request) Revision() int  { return r.content.Revision }
func (r *Request) Type() *Type    { return r.typ }

func (r *Request) CreatedBy() ref.Reference { return r.content.CreatedBy }
func (r *Request) Receiver() ref.Reference  { return r.content.ReceiverReference() }
func (r *Request) Topic() ref.Reference     { return r.content.TopicReference() }

// Reviewers returns a copy of the reviewer list.
func (r *Request) Reviewers() []ref.Reference { return slices.Clone(r.content.Reviewers) }

// SetCreatedBy assigns the creator slot after validating it.
func (r *Request) SetCreatedBy(reference ref.Reference) error {
	if err := r.typ.Creator.Check(SlotCreator, reference); err != nil {
		return err
	}
	r.content.CreatedBy = reference
	return nil
}

// SetReceiver assigns the receiver slot. The null reference clears it.
func (r *Request) SetReceiver(reference ref.Reference) error {
	if err := r.typ.Receiver.Check(SlotReceiver, reference); err != nil {
		return err
	}
	r.content.Receiver = optional(reference)
	return nil
}

// SetTopic assigns the topic slot. The null reference clears it.
func (r *Request) SetTopic(reference ref.Reference) error {
	if err := r.typ.Topic.Check(SlotTopic, reference); err != nil {
		return err
	}
	r.content.Topic = optional(reference)
	return nil
}

// SetReviewers replaces the reviewer list after validating every
// entry. On error the list is unchanged.
func (r *Request) SetReviewers(reviewers []ref.Reference) error {
	if len(reviewers) == 0 && !r.typ.Reviewers.Nullable {
		return &SlotError{Slot: SlotReviewers, Allowed: r.typ.Reviewers.Kinds}
	}
	for _, reviewer := range reviewers {
		if reviewer.IsZero() {
			return &SlotError{Slot: SlotReviewers, Allowed: r.typ.Reviewers.Kinds}
		}
		if err := r.typ.Reviewers.Check(SlotReviewers, reviewer); err != nil {
			return err
		}
	}
	r.content.Reviewers = slices.Clone(reviewers)
	return nil
}

func optional(reference ref.Reference) *ref.Reference {
	if reference.IsZero() {
		return nil
	}
	return &reference
}

// IsOpen reports whether the status is one of the type's open states.
func (r *Request) IsOpen() bool { return r.typ.IsOpen(r.content.Status) }

// IsExpired reports whether now is past expires_at. Both sides are
// compared in UTC; a request without expires_at never expires.
func (r *Request) IsExpired(now time.Time) bool {
	if r.content.ExpiresAt == "" {
		return false
	}
	expiresAt, err := schema.ParseTimestamp(r.content.ExpiresAt)
	if err != nil {
		return false
	}
	return now.UTC().After(expiresAt)
}

// Relations implements permission.Related: the slots identity occupies
// on this request.
func (r *Request) Relations(identity permission.Identity) []string {
	return Relations(&r.content, identity)
}

// Relations returns the slots identity occupies on content.
func Relations(content *schema.Request, identity permission.Identity) []string {
	var relations []string
	if identity.Matches(content.CreatedBy) {
		relations = append(relations, "creator")
	}
	if identity.Matches(content.ReceiverReference()) {
		relations = append(relations, "receiver")
	}
	if identity.Matches(content.TopicReference()) {
		relations = append(relations, "topic")
	}
	for _, reviewer := range content.Reviewers {
		if identity.Matches(reviewer) {
			relations = append(relations, "reviewer")
			break
		}
	}
	return relations
}

// Proxy returns the memoized proxy for a reference held by this
// request.
func (r *Request) Proxy(registry *resolver.Registry, reference ref.Reference) (resolver.Proxy, error) {
	if proxy, ok := r.proxies[reference]; ok {
		return proxy, nil
	}
	proxy, err := registry.Proxy(reference)
	if err != nil {
		return nil, err
	}
	if r.proxies == nil {
		r.proxies = make(map[ref.Reference]resolver.Proxy)
	}
	r.proxies[reference] = proxy
	return proxy, nil
}

// References returns every non-null reference the request holds, in
// slot order.
func (r *Request) References() []ref.Reference {
	references := []ref.Reference{r.content.CreatedBy}
	for _, reference := range []ref.Reference{r.Receiver(), r.Topic()} {
		if !reference.IsZero() {
			references = append(references, reference)
		}
	}
	return append(references, r.content.Reviewers...)
}

// CacheOption adjusts calculated-field access.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	bypass bool
}

// WithoutCache recomputes the field from the source instead of using
// a cached value. The fresh value is not stored.
func WithoutCache() CacheOption {
	return func(options *cacheOptions) { options.bypass = true }
}

func applyCacheOptions(options []CacheOption) cacheOptions {
	var applied cacheOptions
	for _, option := range options {
		option(&applied)
	}
	return applied
}

// LastReply returns the most recent comment on the request, or nil.
func (r *Request) LastReply(ctx context.Context, source EventSource, options ...CacheOption) (*schema.Event, error) {
	applied := applyCacheOptions(options)
	if r.computed.hasLastReply && !applied.bypass {
		return r.computed.lastReply, nil
	}
	reply, err := source.LastEvent(ctx, r.content.ID, schema.EventComment)
	if err != nil {
		return nil, fmt.Errorf("last reply of request %s: %w", r.content.ID, err)
	}
	if !applied.bypass {
		r.computed.lastReply = reply
		r.computed.hasLastReply = true
	}
	return reply, nil
}

// LastActivity returns max(updated, last reply created). It resolves
// LastReply first, through the same cache.
func (r *Request) LastActivity(ctx context.Context, source EventSource, options ...CacheOption) (time.Time, error) {
	applied := applyCacheOptions(options)
	if r.computed.hasLastActivity && !applied.bypass {
		return r.computed.lastActivity, nil
	}

	reply, err := r.LastReply(ctx, source, options...)
	if err != nil {
		return time.Time{}, err
	}
	activity, err := schema.ParseTimestamp(r.content.UpdatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("request %s updated: %w", r.content.ID, err)
	}
	if reply != nil {
		replied, err := schema.ParseTimestamp(reply.CreatedAt)
		if err != nil {
			return time.Time{}, fmt.Errorf("event %s created: %w", reply.ID, err)
		}
		if replied.After(activity) {
			activity = replied
		}
	}

	if !applied.bypass {
		r.computed.lastActivity = activity
		r.computed.hasLastActivity = true
	}
	return activity, nil
}
