// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requeststore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/requests/lib/ref"
	"github.com/bureau-foundation/requests/lib/request"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
	"github.com/bureau-foundation/requests/lib/sqlitepool"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "requests.db"),
		PoolSize: 2,
		Schemas:  []string{Schema},
	})
	if err != nil {
		t.Fatalf("sqlitepool.Open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return New(pool, cfg)
}

const (
	firstID  = "0b5c2a4e-6a43-4a5e-9d0c-3f1b7f6f0a01"
	secondID = "0b5c2a4e-6a43-4a5e-9d0c-3f1b7f6f0a02"
)

func testRequest(id, number string) schema.Request {
	receiver := ref.User("2")
	return schema.Request{
		Version:   schema.RequestVersion,
		ID:        id,
		Number:    number,
		Type:      "mock",
		Title:     "Add dataset",
		Status:    schema.StatusOpen,
		CreatedBy: ref.User("1"),
		Receiver:  &receiver,
		CreatedAt: schema.FormatTimestamp(epoch),
		UpdatedAt: schema.FormatTimestamp(epoch),
	}
}

func testEvent(id, requestID, parentID string, offset time.Duration) schema.Event {
	at := schema.FormatTimestamp(epoch.Add(offset))
	return schema.Event{
		ID:        id,
		RequestID: requestID,
		Type:      schema.EventComment,
		ParentID:  parentID,
		CreatedBy: ref.User("1"),
		CreatedAt: at,
		UpdatedAt: at,
		Payload:   &schema.Payload{Content: "<p>" + id + "</p>", Format: schema.FormatHTML},
	}
}

func mustCreate(t *testing.T, store *Store, content schema.Request, events ...schema.Event) {
	t.Helper()
	if err := store.CreateRequest(context.Background(), content, events...); err != nil {
		t.Fatalf("CreateRequest(%s): %v", content.ID, err)
	}
}

func eventIDs(events []schema.Event) []string {
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}
	return ids
}

func TestGetRequestByNumberAndID(t *testing.T) {
	store := openTestStore(t, Config{})
	ctx := context.Background()
	mustCreate(t, store, testRequest(firstID, "req-3f9a"))

	for _, id := range []string{"req-3f9a", firstID} {
		content, err := store.GetRequest(ctx, id)
		if err != nil {
			t.Fatalf("GetRequest(%q): %v", id, err)
		}
		if content.ID != firstID || content.Title != "Add dataset" {
			t.Errorf("GetRequest(%q) = %+v", id, content)
		}
		if content.Receiver == nil || *content.Receiver != ref.User("2") {
			t.Errorf("GetRequest(%q) receiver = %v, want user:2", id, content.Receiver)
		}
	}

	if _, err := store.GetRequest(ctx, ""); !errors.Is(err, request.ErrInvalidID) {
		t.Errorf("empty id: err = %v, want ErrInvalidID", err)
	}
	if _, err := store.GetRequest(ctx, "req-zzzz"); !errors.Is(err, request.ErrNotFound) {
		t.Errorf("unknown number: err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetRequest(ctx, secondID); !errors.Is(err, request.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestGetRequestHidesDeleted(t *testing.T) {
	store := openTestStore(t, Config{})
	ctx := context.Background()
	content := testRequest(firstID, "req-3f9a")
	content.IsDeleted = true
	content.Status = schema.StatusDeleted
	mustCreate(t, store, content)

	if _, err := store.GetRequest(ctx, "req-3f9a"); !errors.Is(err, request.ErrNotFound) {
		t.Errorf("deleted request: err = %v, want ErrNotFound", err)
	}
	exists, err := store.NumberExists(ctx, "req-3f9a")
	if err != nil {
		t.Fatalf("NumberExists: %v", err)
	}
	if !exists {
		t.Error("NumberExists ignores deleted requests, want true")
	}
	if exists, _ := store.NumberExists(ctx, "req-0000"); exists {
		t.Error("NumberExists(req-0000) = true, want false")
	}
}

func TestUpdateRequestRevision(t *testing.T) {
	store := openTestStore(t, Config{})
	ctx := context.Background()
	content := testRequest(firstID, "req-3f9a")
	mustCreate(t, store, content)

	content.Status = schema.StatusAccepted
	content.Revision = 1
	accepted := testEvent("e-accept", firstID, "", time.Minute)
	accepted.Type = schema.EventAccepted
	accepted.Payload = &schema.Payload{Event: schema.StatusAccepted}
	if err := store.UpdateRequest(ctx, content, 0, accepted); err != nil {
		t.Fatalf("UpdateRequest: %v", err)
	}

	stored, err := store.GetRequest(ctx, firstID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if stored.Status != schema.StatusAccepted || stored.Revision != 1 {
		t.Errorf("stored = status %q revision %d, want accepted 1", stored.Status, stored.Revision)
	}
	last, err := store.LastEvent(ctx, firstID, schema.EventAccepted)
	if err != nil || last == nil || last.ID != "e-accept" {
		t.Errorf("LastEvent(A) = %v, %v; want e-accept", last, err)
	}

	content.Status = schema.StatusDeclined
	if err := store.UpdateRequest(ctx, content, 0); !errors.Is(err, request.ErrConflict) {
		t.Errorf("stale revision: err = %v, want ErrConflict", err)
	}
	missing := testRequest(secondID, "req-0001")
	if err := store.UpdateRequest(ctx, missing, 0); !errors.Is(err, request.ErrNotFound) {
		t.Errorf("missing request: err = %v, want ErrNotFound", err)
	}
}

func TestEventsOrderAndThreads(t *testing.T) {
	store := openTestStore(t, Config{})
	ctx := context.Background()
	mustCreate(t, store, testRequest(firstID, "req-3f9a"))

	// Two replies share a timestamp; insertion order breaks the tie.
	events := []schema.Event{
		testEvent("c1", firstID, "", 1*time.Second),
		testEvent("r1", firstID, "c1", 2*time.Second),
		testEvent("r2", firstID, "c1", 2*time.Second),
		testEvent("r3", firstID, "c1", 3*time.Second),
		testEvent("c2", firstID, "", 4*time.Second),
	}
	for _, event := range events {
		if err := store.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent(%s): %v", event.ID, err)
		}
	}

	all, err := store.RequestEvents(ctx, firstID)
	if err != nil {
		t.Fatalf("RequestEvents: %v", err)
	}
	if got := strings.Join(eventIDs(all), ","); got != "c1,r1,r2,r3,c2" {
		t.Errorf("RequestEvents = %s, want c1,r1,r2,r3,c2", got)
	}

	children, err := store.Children(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if got := strings.Join(eventIDs(children), ","); got != "r3,r2" {
		t.Errorf("Children(c1, 2) = %s, want r3,r2", got)
	}
	children, err = store.Children(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if got := strings.Join(eventIDs(children), ","); got != "r3,r2,r1" {
		t.Errorf("Children(c1, 0) = %s, want r3,r2,r1", got)
	}

	count, err := store.CountChildren(ctx, "c1")
	if err != nil || count != 3 {
		t.Errorf("CountChildren(c1) = %d, %v; want 3", count, err)
	}
	count, err = store.CountChildren(ctx, "c2")
	if err != nil || count != 0 {
		t.Errorf("CountChildren(c2) = %d, %v; want 0", count, err)
	}

	last, err := store.LastEvent(ctx, firstID, schema.EventComment)
	if err != nil || last == nil || last.ID != "c2" {
		t.Errorf("LastEvent(C) = %v, %v; want c2", last, err)
	}
	none, err := store.LastEvent(ctx, firstID, schema.EventExpired)
	if err != nil || none != nil {
		t.Errorf("LastEvent(E) = %v, %v; want nil", none, err)
	}
}

func TestCreateEventRequiresRequest(t *testing.T) {
	store := openTestStore(t, Config{})
	err := store.CreateEvent(context.Background(), testEvent("c1", firstID, "", 0))
	if !errors.Is(err, request.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateEvent(t *testing.T) {
	store := openTestStore(t, Config{})
	ctx := context.Background()
	mustCreate(t, store, testRequest(firstID, "req-3f9a"), testEvent("c1", firstID, "", 0))

	event, err := store.GetEvent(ctx, "c1")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	event.Payload.Content = "<p>edited</p>"
	event.Revision = 1
	if err := store.UpdateEvent(ctx, event, 0); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if err := store.UpdateEvent(ctx, event, 0); !errors.Is(err, request.ErrConflict) {
		t.Errorf("stale revision: err = %v, want ErrConflict", err)
	}

	stored, err := store.GetEvent(ctx, "c1")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if stored.Payload.Content != "<p>edited</p>" || stored.Revision != 1 {
		t.Errorf("stored = %q revision %d", stored.Payload.Content, stored.Revision)
	}
	if _, err := store.GetEvent(ctx, "missing"); !errors.Is(err, request.ErrNotFound) {
		t.Errorf("missing event: err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetEvent(ctx, ""); !errors.Is(err, request.ErrInvalidID) {
		t.Errorf("empty id: err = %v, want ErrInvalidID", err)
	}
}

func TestExpiringRequests(t *testing.T) {
	store := openTestStore(t, Config{})
	ctx := context.Background()

	soon := testRequest(firstID, "req-0001")
	soon.ExpiresAt = schema.FormatTimestamp(epoch.Add(time.Hour))
	later := testRequest(secondID, "req-0002")
	later.ExpiresAt = schema.FormatTimestamp(epoch.Add(48 * time.Hour))
	never := testRequest("0b5c2a4e-6a43-4a5e-9d0c-3f1b7f6f0a03", "req-0003")
	mustCreate(t, store, soon)
	mustCreate(t, store, later)
	mustCreate(t, store, never)

	expiring, err := store.ExpiringRequests(ctx, epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("ExpiringRequests: %v", err)
	}
	if len(expiring) != 1 || expiring[0].ID != firstID {
		t.Errorf("ExpiringRequests(+1h) = %d requests, want only %s", len(expiring), firstID)
	}

	var listed []string
	err = store.ListRequests(ctx, func(content schema.Request) error {
		listed = append(listed, content.Number)
		return nil
	})
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(listed) != 3 {
		t.Errorf("ListRequests = %v, want 3 requests", listed)
	}
}

func TestCompressedDocumentsRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			store := openTestStore(t, Config{
				RequestCompression: &compression,
				EventCompression:   &compression,
				MinCompressSize:    16,
			})
			ctx := context.Background()
			content := testRequest(firstID, "req-3f9a")
			content.Description = strings.Repeat("the dataset needs curation. ", 64)
			comment := testEvent("c1", firstID, "", 0)
			comment.Payload.Content = strings.Repeat("<p>looks good</p>", 64)
			mustCreate(t, store, content, comment)

			stored, err := store.GetRequest(ctx, "req-3f9a")
			if err != nil {
				t.Fatalf("GetRequest: %v", err)
			}
			if stored.Description != content.Description {
				t.Error("description changed in round trip")
			}
			event, err := store.GetEvent(ctx, "c1")
			if err != nil {
				t.Fatalf("GetEvent: %v", err)
			}
			if event.Payload.Content != comment.Payload.Content {
				t.Error("comment content changed in round trip")
			}
		})
	}
}
