// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
)

// Document is the stored or projected form of an entity: a string-keyed
// tree of JSON-compatible values. Every document carries its id under
// the "id" key.
type Document = map[string]any

// ReadManyResult is the outcome of a batched fetch. Found holds one
// document per id that exists, in no particular order. MissingIDs lists
// the requested ids that do not.
type ReadManyResult struct {
	Found      []Document
	MissingIDs []string
}

// Service is the backing store for one entity kind.
type Service interface {
	// Name identifies the service. The expansion engine groups
	// references by service name, so two resolvers sharing a service
	// must return the same name.
	Name() string

	// Read fetches one entity document. Returns an error wrapping
	// ErrEntityNotFound when the entity does not exist.
	Read(ctx context.Context, id string) (Document, error)

	// ReadMany fetches every listed entity in one round trip.
	ReadMany(ctx context.Context, ids []string) (ReadManyResult, error)
}

// Resolver handles one entity kind.
type Resolver interface {
	// TypeID is the registry key ("users", "records"). Unique within
	// a registry.
	TypeID() string

	// Kind is the reference key ("user", "record"). Unique within a
	// registry.
	Kind() string

	// Matches reports whether entity is a live entity of this kind.
	Matches(entity any) bool

	// Reference returns the reference for a live entity. The entity
	// must satisfy Matches.
	Reference(entity any) (ref.Reference, error)

	// Proxy wraps a reference of this kind. Never fails and never
	// performs I/O.
	Proxy(reference ref.Reference) Proxy

	// Service returns the backing service for this kind.
	Service() Service
}

// Proxy owns one reference and resolves it lazily. A proxy memoizes
// its own resolution; it is private to the object graph that created
// it and not safe for concurrent use.
type Proxy interface {
	Reference() ref.Reference

	// Resolve returns the live entity. A missing entity returns
	// (nil, nil) and marks the proxy as a ghost. Backend errors are
	// returned and not memoized.
	Resolve(ctx context.Context) (any, error)

	// IsGhost reports whether a previous Resolve found the entity
	// missing.
	IsGhost() bool

	// GhostRecord is the projection shown in place of a missing
	// entity.
	GhostRecord() Document

	// SystemRecord returns the fixed projection of a reference that
	// names a built-in identity rather than a stored entity. Such
	// references are never fetched.
	SystemRecord() (Document, bool)

	// PickFields projects a fetched document for display to identity,
	// dropping fields the identity may not see.
	PickFields(identity permission.Identity, record Document) Document
}

// Definition configures a resolver built with New.
type Definition struct {
	TypeID  string
	Kind    string
	Service Service

	// Match recognizes live entities of this kind.
	Match func(entity any) bool

	// ID extracts the id of a matched entity.
	ID func(entity any) string

	// Decode turns a fetched document into the live entity.
	Decode func(document Document) (any, error)

	// Ghost builds the placeholder projection for a missing id.
	Ghost func(id string) Document

	// System optionally recognizes ids of built-in identities.
	System func(id string) (Document, bool)

	// Pick projects a document for an identity. Nil returns a shallow
	// copy of the document.
	Pick func(identity permission.Identity, record Document) Document
}

// New builds a Resolver from a Definition.
func New(definition Definition) (Resolver, error) {
	switch {
	case definition.TypeID == "":
		return nil, fmt.Errorf("resolver definition: TypeID is required")
	case definition.Kind == "":
		return nil, fmt.Errorf("resolver %s: Kind is required", definition.TypeID)
	case definition.Service == nil:
		return nil, fmt.Errorf("resolver %s: Service is required", definition.TypeID)
	case definition.Match == nil || definition.ID == nil:
		return nil, fmt.Errorf("resolver %s: Match and ID are required", definition.TypeID)
	case definition.Decode == nil:
		return nil, fmt.Errorf("resolver %s: Decode is required", definition.TypeID)
	}
	if definition.Ghost == nil {
		definition.Ghost = func(id string) Document { return Document{"id": id, "is_ghost": true} }
	}
	return &entityResolver{definition: definition}, nil
}

type entityResolver struct {
	definition Definition
}

func (r *entityResolver) TypeID() string          { return r.definition.TypeID }
func (r *entityResolver) Kind() string            { return r.definition.Kind }
func (r *entityResolver) Service() Service        { return r.definition.Service }
func (r *entityResolver) Matches(entity any) bool { return entity != nil && r.definition.Match(entity) }

func (r *entityResolver) Reference(entity any) (ref.Reference, error) {
	if !r.Matches(entity) {
		return ref.Reference{}, fmt.Errorf("resolver %s: %T is not a %s: %w", r.definition.TypeID, entity, r.definition.Kind, ErrNoMatchingResolver)
	}
	return ref.New(r.definition.Kind, r.definition.ID(entity))
}

func (r *entityResolver) Proxy(reference ref.Reference) Proxy {
	return &entityProxy{reference: reference, definition: &r.definition}
}

// UnknownGhost is the projection of a reference whose kind no
// resolver handles.
func UnknownGhost(reference ref.Reference) Document {
	return Document{"id": reference.ID(), "is_ghost": true}
}
