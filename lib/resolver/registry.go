// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"fmt"

	"github.com/bureau-foundation/requests/lib/ref"
)

// Registry is an immutable, ordered set of resolvers. Safe for
// concurrent use.
type Registry struct {
	resolvers []Resolver
	byKind    map[string]Resolver
	byTypeID  map[string]Resolver
}

// NewRegistry builds a registry from resolvers in priority order.
// Fails with ErrDuplicateResolver if two resolvers share a type id or
// a kind.
func NewRegistry(resolvers ...Resolver) (*Registry, error) {
	registry := &Registry{
		resolvers: make([]Resolver, 0, len(resolvers)),
		byKind:    make(map[string]Resolver, len(resolvers)),
		byTypeID:  make(map[string]Resolver, len(resolvers)),
	}
	for _, resolver := range resolvers {
		if _, exists := registry.byTypeID[resolver.TypeID()]; exists {
			return nil, fmt.Errorf("resolver type id %q: %w", resolver.TypeID(), ErrDuplicateResolver)
		}
		if existing, exists := registry.byKind[resolver.Kind()]; exists {
			return nil, fmt.Errorf("kind %q claimed by both %q and %q: %w",
				resolver.Kind(), existing.TypeID(), resolver.TypeID(), ErrDuplicateResolver)
		}
		registry.resolvers = append(registry.resolvers, resolver)
		registry.byKind[resolver.Kind()] = resolver
		registry.byTypeID[resolver.TypeID()] = resolver
	}
	return registry, nil
}

// Reference returns the reference for a live entity using the first
// resolver, in registration order, whose Matches accepts it.
func (r *Registry) Reference(entity any) (ref.Reference, error) {
	for _, resolver := range r.resolvers {
		if resolver.Matches(entity) {
			return resolver.Reference(entity)
		}
	}
	return ref.Reference{}, fmt.Errorf("%T: %w", entity, ErrNoMatchingResolver)
}

// Proxy returns a lazily-resolving proxy for reference. The only
// failure is ErrUnknownReferenceKind; no I/O happens here.
func (r *Registry) Proxy(reference ref.Reference) (Proxy, error) {
	resolver, ok := r.byKind[reference.Kind()]
	if !ok {
		return nil, fmt.Errorf("%q: %w", reference.Kind(), ErrUnknownReferenceKind)
	}
	return resolver.Proxy(reference), nil
}

// ForKind returns the resolver handling kind.
func (r *Registry) ForKind(kind string) (Resolver, bool) {
	resolver, ok := r.byKind[kind]
	return resolver, ok
}

// ForTypeID returns the resolver registered under typeID.
func (r *Registry) ForTypeID(typeID string) (Resolver, bool) {
	resolver, ok := r.byTypeID[typeID]
	return resolver, ok
}

// Kinds returns the resolvable kinds in registration order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, len(r.resolvers))
	for i, resolver := range r.resolvers {
		kinds[i] = resolver.Kind()
	}
	return kinds
}
