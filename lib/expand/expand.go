// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package expand

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
	"github.com/bureau-foundation/requests/lib/resolver"
)

// ExpandedKey is the row key the engine writes projections under.
const ExpandedKey = "expanded"

// Field names one reference-valued field of a row.
type Field struct {
	// Path is the field's location in the row. Dots descend into
	// nested objects ("last_reply.created_by").
	Path string

	// Name is the key under "expanded". Defaults to Path.
	Name string

	// Multi marks a field holding a list of references. The expanded
	// value is a list in the same order.
	Multi bool
}

func (f Field) key() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Path
}

// Row is one result row, the JSON-compatible projection of a dumped
// document.
type Row = map[string]any

// Engine expands references in result rows. Safe for concurrent use.
type Engine struct {
	registry *resolver.Registry
	fields   []Field
	logger   *slog.Logger
}

// New returns an engine expanding fields through registry. A nil
// logger discards.
func New(registry *resolver.Registry, logger *slog.Logger, fields ...Field) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{registry: registry, fields: slices.Clone(fields), logger: logger}
}

// Fields returns the configured fields.
func (e *Engine) Fields() []Field { return slices.Clone(e.fields) }

// entityKey identifies one fetched entity.
type entityKey struct {
	service string
	id      string
}

// batch holds the state of one Expand call.
type batch struct {
	proxies  map[ref.Reference]resolver.Proxy
	services map[string]resolver.Service

	// pending lists, per service, the distinct ids to fetch in first
	// seen order.
	pending map[string][]string
	seen    map[entityKey]bool

	records map[entityKey]resolver.Document
	ghosts  map[entityKey]bool
}

// Expand writes the projection of every configured reference in rows
// under each row's "expanded" key, as seen by identity. It returns an
// error only when ctx is done; resolution failures become ghosts.
func (e *Engine) Expand(ctx context.Context, identity permission.Identity, rows []Row) error {
	b := &batch{
		proxies:  make(map[ref.Reference]resolver.Proxy),
		services: make(map[string]resolver.Service),
		pending:  make(map[string][]string),
		seen:     make(map[entityKey]bool),
		records:  make(map[entityKey]resolver.Document),
		ghosts:   make(map[entityKey]bool),
	}

	for _, row := range rows {
		for _, field := range e.fields {
			for _, reference := range e.references(row, field) {
				e.collect(b, reference)
			}
		}
	}

	if err := e.fetch(ctx, b); err != nil {
		return err
	}

	for _, row := range rows {
		for _, field := range e.fields {
			e.expandField(b, identity, row, field)
		}
	}
	return nil
}

// collect records a reference for fetching. System references and
// references of unknown kinds are resolved without a fetch.
func (e *Engine) collect(b *batch, reference ref.Reference) {
	if _, done := b.proxies[reference]; done {
		return
	}
	proxy, err := e.registry.Proxy(reference)
	if err != nil {
		b.proxies[reference] = nil
		e.logger.Warn("expanding unknown reference kind", "reference", reference.String(), "error", err)
		return
	}
	b.proxies[reference] = proxy
	if _, isSystem := proxy.SystemRecord(); isSystem {
		return
	}

	owner, _ := e.registry.ForKind(reference.Kind())
	service := owner.Service()
	key := entityKey{service: service.Name(), id: reference.ID()}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.services[key.service] = service
	b.pending[key.service] = append(b.pending[key.service], key.id)
}

// fetch issues one ReadMany per service.
func (e *Engine) fetch(ctx context.Context, b *batch) error {
	names := make([]string, 0, len(b.pending))
	for name := range b.pending {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids := b.pending[name]
		result, err := b.services[name].ReadMany(ctx, ids)
		if err != nil {
			e.logger.Warn("expansion fetch failed, projecting ghosts",
				"service", name, "ids", len(ids), "error", err)
			for _, id := range ids {
				b.ghosts[entityKey{service: name, id: id}] = true
			}
			continue
		}
		for _, document := range result.Found {
			id, _ := document["id"].(string)
			b.records[entityKey{service: name, id: id}] = document
		}
		for _, id := range ids {
			if _, found := b.records[entityKey{service: name, id: id}]; !found {
				b.ghosts[entityKey{service: name, id: id}] = true
			}
		}
	}
	return nil
}

func (e *Engine) expandField(b *batch, identity permission.Identity, row Row, field Field) {
	value, present := lookup(row, field.Path)
	if !present || value == nil {
		return
	}

	var expanded any
	if field.Multi {
		items, ok := value.([]any)
		if !ok {
			return
		}
		projections := make([]any, 0, len(items))
		for index, item := range items {
			reference, err := ref.FromMap(item)
			if err != nil {
				// Keep the slot so positions match the source list.
				e.logger.Warn("malformed reference in list", "field", field.Path, "index", index, "error", err)
				projections = append(projections, resolver.Document{"is_ghost": true})
				continue
			}
			projections = append(projections, e.project(b, identity, reference))
		}
		expanded = projections
	} else {
		reference, err := ref.FromMap(value)
		if err != nil {
			e.logger.Warn("skipping malformed reference", "field", field.Path, "error", err)
			return
		}
		expanded = e.project(b, identity, reference)
	}

	target, _ := row[ExpandedKey].(map[string]any)
	if target == nil {
		target = make(map[string]any)
		row[ExpandedKey] = target
	}
	target[field.key()] = expanded
}

// project returns the display record of an already collected
// reference.
func (e *Engine) project(b *batch, identity permission.Identity, reference ref.Reference) resolver.Document {
	proxy := b.proxies[reference]
	if proxy == nil {
		return resolver.UnknownGhost(reference)
	}
	if record, isSystem := proxy.SystemRecord(); isSystem {
		return record
	}
	owner, _ := e.registry.ForKind(reference.Kind())
	key := entityKey{service: owner.Service().Name(), id: reference.ID()}
	if b.ghosts[key] {
		return proxy.GhostRecord()
	}
	return proxy.PickFields(identity, b.records[key])
}

// references extracts the references a field holds in row. Malformed
// values are skipped.
func (e *Engine) references(row Row, field Field) []ref.Reference {
	value, present := lookup(row, field.Path)
	if !present || value == nil {
		return nil
	}
	if !field.Multi {
		reference, err := ref.FromMap(value)
		if err != nil {
			return nil
		}
		return []ref.Reference{reference}
	}
	items, _ := value.([]any)
	references := make([]ref.Reference, 0, len(items))
	for _, item := range items {
		if reference, err := ref.FromMap(item); err == nil {
			references = append(references, reference)
		}
	}
	return references
}

// lookup follows a dotted path through nested objects.
func lookup(row Row, path string) (any, bool) {
	var current any = row
	for part := range strings.SplitSeq(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = object[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
