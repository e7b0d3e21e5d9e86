// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bureau-foundation/requests/lib/codec"
)

func TestClientCall(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger(), nil)
	server.Handle("get", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Request string `cbor:"request"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"number": request.Request, "status": "open"}, nil
	})
	server.Handle("noop", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	serve(t, server)
	client := NewServiceClient(server.socketPath)

	var result struct {
		Number string `cbor:"number"`
		Status string `cbor:"status"`
	}
	if err := client.Call(t.Context(), "get", map[string]any{"request": "req-1a2b"}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Number != "req-1a2b" || result.Status != "open" {
		t.Errorf("result = %+v", result)
	}

	// A nil result discards the data.
	if err := client.Call(t.Context(), "get", nil, nil); err != nil {
		t.Errorf("Call with nil result: %v", err)
	}

	// No data leaves the result untouched.
	var untouched map[string]any
	if err := client.Call(t.Context(), "noop", nil, &untouched); err != nil {
		t.Fatalf("Call noop: %v", err)
	}
	if untouched != nil {
		t.Errorf("result should stay nil when the server returns no data, got %v", untouched)
	}
}

func TestClientCallServiceError(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger(), classifyTestError)
	server.Handle("guarded", func(ctx context.Context, raw []byte) (any, error) {
		return nil, errTestDenied
	})
	server.Handle("broken", func(ctx context.Context, raw []byte) (any, error) {
		return nil, errors.New("something broke")
	})
	serve(t, server)
	client := NewServiceClient(server.socketPath)

	tests := []struct {
		action  string
		kind    string
		message string
	}{
		{"guarded", "permission_denied", `service error on "guarded" (permission_denied): denied`},
		{"broken", "", `service error on "broken": something broke`},
		{"missing", KindUnknownAction, `service error on "missing" (unknown_action): unknown action "missing"`},
	}
	for _, test := range tests {
		err := client.Call(t.Context(), test.action, nil, nil)
		var serviceErr *ServiceError
		if !errors.As(err, &serviceErr) {
			t.Fatalf("%s: expected *ServiceError, got %T: %v", test.action, err, err)
		}
		if serviceErr.Action != test.action || serviceErr.Kind != test.kind {
			t.Errorf("%s: action %q kind %q, want kind %q", test.action, serviceErr.Action, serviceErr.Kind, test.kind)
		}
		if serviceErr.Error() != test.message {
			t.Errorf("%s: Error() = %q, want %q", test.action, serviceErr.Error(), test.message)
		}
	}
}

func TestClientCallConnectionRefused(t *testing.T) {
	client := NewServiceClient(testSocketPath(t))

	err := client.Call(context.Background(), "status", nil, nil)
	if err == nil {
		t.Fatal("expected error for a missing socket")
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		t.Fatalf("connection failure should not be *ServiceError, got %v", serviceErr)
	}
}

func TestClientConcurrentCalls(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger(), nil)
	server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Value int `cbor:"value"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"value": request.Value}, nil
	})
	serve(t, server)
	client := NewServiceClient(server.socketPath)

	const concurrency = 20
	var calls sync.WaitGroup
	for i := range concurrency {
		calls.Add(1)
		go func() {
			defer calls.Done()
			var result map[string]any
			if err := client.Call(t.Context(), "echo", map[string]any{"value": i}, &result); err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			if result["value"] != uint64(i) {
				t.Errorf("call %d: got value %v", i, result["value"])
			}
		}()
	}
	calls.Wait()
}
