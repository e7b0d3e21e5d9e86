// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bureau-foundation/requests/lib/clock"
	"github.com/bureau-foundation/requests/lib/config"
	"github.com/bureau-foundation/requests/lib/directory"
	"github.com/bureau-foundation/requests/lib/markup"
	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/request"
	"github.com/bureau-foundation/requests/lib/requestdef"
	"github.com/bureau-foundation/requests/lib/requestindex"
	"github.com/bureau-foundation/requests/lib/requeststore"
	"github.com/bureau-foundation/requests/lib/resolver"
	"github.com/bureau-foundation/requests/lib/result"
	"github.com/bureau-foundation/requests/lib/sqlitepool"
)

// RequestService is the process state behind the socket actions.
type RequestService struct {
	pool      *sqlitepool.Pool
	directory *directory.Directory
	requests  *request.Service
	results   *result.Builder
	policy    permission.Policy
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger
}

// openRequestService opens the database and assembles the request
// service from cfg. The search index is rebuilt from the store before
// returning.
func openRequestService(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*RequestService, error) {
	requestCompression, err := requeststore.ParseCompression(cfg.Store.Compression.Requests)
	if err != nil {
		return nil, fmt.Errorf("store.compression.requests: %w", err)
	}
	eventCompression, err := requeststore.ParseCompression(cfg.Store.Compression.Events)
	if err != nil {
		return nil, fmt.Errorf("store.compression.events: %w", err)
	}

	definitions, err := requestdef.LoadDir(cfg.Paths.Definitions)
	if err != nil {
		return nil, err
	}
	types, eventTypes, err := requestdef.Build(definitions)
	if err != nil {
		return nil, fmt.Errorf("request type definitions: %w", err)
	}
	types, err = enabledTypes(types, cfg.Requests.RequestTypes)
	if err != nil {
		return nil, err
	}
	typeRegistry, err := request.NewTypeRegistry(types...)
	if err != nil {
		return nil, err
	}
	eventTypeRegistry, err := request.NewEventTypeRegistry(eventTypes...)
	if err != nil {
		return nil, err
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   logger,
		Schemas:  []string{directory.Schema, requeststore.Schema},
	})
	if err != nil {
		return nil, fmt.Errorf("opening request database: %w", err)
	}

	policy := newPolicy(cfg.Requests)
	entities := directory.New(pool, clk, logger)
	resolvers, err := entities.Resolvers(cfg.Requests.Resolvers, policy)
	if err != nil {
		pool.Close()
		return nil, err
	}
	registry, err := resolver.NewRegistry(resolvers...)
	if err != nil {
		pool.Close()
		return nil, err
	}

	store := requeststore.New(pool, requeststore.Config{
		RequestCompression: &requestCompression,
		EventCompression:   &eventCompression,
		MinCompressSize:    cfg.Store.Compression.MinSize,
		Logger:             logger,
	})

	requests, err := request.NewService(request.ServiceConfig{
		Types:        typeRegistry,
		EventTypes:   eventTypeRegistry,
		Resolvers:    registry,
		Store:        store,
		Index:        requestindex.NewIndex(),
		Policy:       policy,
		Clock:        clk,
		Logger:       logger,
		Renderer:     markup.New(),
		PreviewLimit: cfg.Requests.CommentPreviewLimit,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	indexed, err := requests.Reindex(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building search index: %w", err)
	}

	logger.Info("request service ready",
		"request_types", len(types),
		"resolvers", registry.Kinds(),
		"indexed", indexed,
		"policy", cfg.Requests.PermissionPolicy,
	)

	return &RequestService{
		pool:      pool,
		directory: entities,
		requests:  requests,
		results:   result.NewBuilder(requests, registry, result.Links{API: cfg.Links.API, UI: cfg.Links.UI}, logger),
		policy:    policy,
		clock:     clk,
		startedAt: clk.Now(),
		logger:    logger,
	}, nil
}

// Close releases the database.
func (rs *RequestService) Close() error {
	return rs.pool.Close()
}

// newPolicy builds the permission policy named by the configuration.
func newPolicy(cfg config.RequestsConfig) permission.Policy {
	if cfg.PermissionPolicy == config.PolicyAllowAll {
		return permission.AllowAll{}
	}
	grants := cfg.Grants
	if len(grants) == 0 {
		grants = permission.DefaultGrants()
	}
	return &permission.GrantPolicy{Grants: grants, Admins: cfg.Admins}
}

// enabledTypes keeps the types listed in enabled, in definition order.
// An empty list keeps every type.
func enabledTypes(types []*request.Type, enabled []string) ([]*request.Type, error) {
	if len(enabled) == 0 {
		return types, nil
	}
	var kept []*request.Type
	var errs []error
	for _, id := range enabled {
		if !slices.ContainsFunc(types, func(typ *request.Type) bool { return typ.ID == id }) {
			errs = append(errs, fmt.Errorf("requests.request_types: %q: %w", id, request.ErrUnknownRequestType))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, typ := range types {
		if slices.Contains(enabled, typ.ID) {
			kept = append(kept, typ)
		}
	}
	return kept, nil
}
