// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/requests/lib/clock"
	"github.com/bureau-foundation/requests/lib/config"
	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/request"
	"github.com/bureau-foundation/requests/lib/requestindex"
)

func TestEnabledTypes(t *testing.T) {
	review := &request.Type{ID: "record-review"}
	types := []*request.Type{request.DefaultType(), review}

	kept, err := enabledTypes(types, nil)
	if err != nil || len(kept) != 2 {
		t.Fatalf("empty list: kept %d, err %v", len(kept), err)
	}

	kept, err = enabledTypes(types, []string{"record-review"})
	if err != nil {
		t.Fatalf("enabledTypes: %v", err)
	}
	if len(kept) != 1 || kept[0] != review {
		t.Errorf("kept = %v, want only record-review", kept)
	}

	_, err = enabledTypes(types, []string{"record-review", "membership"})
	if !errors.Is(err, request.ErrUnknownRequestType) {
		t.Errorf("unknown type error = %v, want ErrUnknownRequestType", err)
	}
}

func TestNewPolicy(t *testing.T) {
	cfg := config.Default().Requests

	if _, ok := newPolicy(config.RequestsConfig{PermissionPolicy: config.PolicyAllowAll}).(permission.AllowAll); !ok {
		t.Error("allow-all did not build AllowAll")
	}

	policy, ok := newPolicy(cfg).(*permission.GrantPolicy)
	if !ok {
		t.Fatalf("grants built %T", newPolicy(cfg))
	}
	if len(policy.Grants) != len(permission.DefaultGrants()) {
		t.Errorf("no configured grants: got %d grants, want the %d defaults", len(policy.Grants), len(permission.DefaultGrants()))
	}

	cfg.Grants = []permission.Grant{{Actions: []string{"request/*"}}}
	cfg.Admins = []string{operator}
	policy = newPolicy(cfg).(*permission.GrantPolicy)
	if len(policy.Grants) != 1 || policy.Admins[0] != operator {
		t.Errorf("configured policy = %+v", policy)
	}
	if !policy.Can(permission.Identity{ID: operator}, directoryWrite, nil) {
		t.Error("admin cannot write the directory")
	}
	if policy.Can(permission.Identity{ID: ada}, directoryWrite, nil) {
		t.Error("ordinary user can write the directory")
	}
}

func TestOpenRequestServiceRejectsUnknownType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Requests.RequestTypes = []string{"membership"}

	_, err := openRequestService(t.Context(), cfg, clock.Fake(epoch), testLogger())
	if !errors.Is(err, request.ErrUnknownRequestType) {
		t.Fatalf("error = %v, want ErrUnknownRequestType", err)
	}
}

func TestOpenRequestServiceRejectsBadDefinition(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.Definitions = t.TempDir()
	bad := []byte(`{"type_id": "broken", "expires_in": "soon"}`)
	if err := os.WriteFile(filepath.Join(cfg.Paths.Definitions, "broken.jsonc"), bad, 0o600); err != nil {
		t.Fatalf("writing definition: %v", err)
	}

	if _, err := openRequestService(t.Context(), cfg, clock.Fake(epoch), testLogger()); err == nil {
		t.Fatal("expected an error for an invalid definition")
	}
}

func TestOpenRequestServiceRebuildsIndex(t *testing.T) {
	cfg := testConfig(t)
	env := newTestEnv(t, cfg)
	env.seedDirectory(t)
	created := env.createReview(t, "Survives restart")

	// A second service over the same database finds the request
	// through search without any writes.
	cfg.Socket.Path = filepath.Join(cfg.Paths.Run, "second.sock")
	reopened, err := openRequestService(t.Context(), cfg, clock.Fake(epoch), testLogger())
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	page, err := reopened.requests.Search(t.Context(), permission.Identity{ID: ada}, requestindex.Filter{}, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Total != 1 || page.Hits[0].ID != created.ID {
		t.Errorf("reopened index has %d requests, want %s", page.Total, created.Number)
	}
}
