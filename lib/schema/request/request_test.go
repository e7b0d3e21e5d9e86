// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/requests/lib/codec"
	"github.com/bureau-foundation/requests/lib/ref"
)

func validRequest() Request {
	receiver := ref.User("2")
	return Request{
		Version:   RequestVersion,
		ID:        "0d8a5c1e-8f43-4c1e-9a35-6cc4d5f7e2b1",
		Number:    "req-3f9a",
		Type:      "default",
		Status:    StatusOpen,
		CreatedBy: ref.User("1"),
		Receiver:  &receiver,
		CreatedAt: "2026-02-01T10:00:00Z",
		UpdatedAt: "2026-02-01T10:00:00Z",
	}
}

func TestRequestValidate(t *testing.T) {
	request := validRequest()
	if err := request.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Request)
		want   string
	}{
		{"missing id", func(r *Request) { r.ID = "" }, "id is required"},
		{"missing type", func(r *Request) { r.Type = "" }, "request_type_id is required"},
		{"missing creator", func(r *Request) { r.CreatedBy = ref.Reference{} }, "created_by is required"},
		{"bad expiry", func(r *Request) { r.ExpiresAt = "tomorrow" }, "expires_at"},
		{"duplicate reviewer", func(r *Request) { r.Reviewers = []ref.Reference{ref.User("3"), ref.User("3")} }, "duplicate reviewer"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := validRequest()
			test.modify(&request)
			err := request.Validate()
			if err == nil {
				t.Fatal("Validate succeeded")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error = %q, want it to contain %q", err, test.want)
			}
		})
	}
}

func TestCanModify(t *testing.T) {
	request := validRequest()
	if err := request.CanModify(); err != nil {
		t.Errorf("CanModify at current version: %v", err)
	}
	request.Version = RequestVersion + 1
	if err := request.CanModify(); err == nil {
		t.Error("CanModify succeeded for a newer schema version")
	}
}

func TestEventValidate(t *testing.T) {
	event := Event{
		ID:        "e1",
		RequestID: "r1",
		Type:      EventComment,
		CreatedBy: ref.User("1"),
		CreatedAt: "2026-02-01T10:00:00Z",
		Payload:   &Payload{Content: "<p>hi</p>", Format: FormatHTML},
	}
	if err := event.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	event.Payload.Format = FormatMarkdown
	if err := event.Validate(); err == nil {
		t.Error("Validate accepted a stored markdown comment")
	}

	event.Payload = nil
	if err := event.Validate(); err == nil {
		t.Error("Validate accepted a comment without content")
	}

	accepted := Event{ID: "e2", RequestID: "r1", Type: EventAccepted, CreatedBy: ref.System(), CreatedAt: "2026-02-01T10:00:00Z"}
	if err := accepted.Validate(); err != nil {
		t.Errorf("Validate(system event): %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for _, input := range []string{
		"2026-02-01T10:00:00Z",
		"2026-02-01T11:00:00+01:00",
		"2026-02-01T10:00:00",
		"2026-02-01 10:00:00",
		"2026-02-01T10:00:00.000000",
	} {
		got, err := ParseTimestamp(input)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", input, err)
			continue
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) = %v, want %v in UTC", input, got, want)
		}
	}
	if _, err := ParseTimestamp("last tuesday"); err == nil {
		t.Error("ParseTimestamp accepted garbage")
	}
	if got := FormatTimestamp(want.In(time.FixedZone("X", 3600))); got != "2026-02-01T10:00:00Z" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}

func TestDocumentFlattening(t *testing.T) {
	count := 8
	document := RequestDocument{
		Request:      validRequest(),
		IsOpen:       true,
		LastActivity: "2026-02-01T10:00:00Z",
		LastReply: &EventDocument{
			Event:         Event{ID: "c8", RequestID: "r", Type: EventComment, CreatedBy: ref.User("2")},
			ChildrenCount: &count,
		},
	}

	data, err := json.Marshal(document)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if flat["status"] != StatusOpen || flat["is_open"] != true {
		t.Errorf("flattened document = %v", flat)
	}
	createdBy, ok := flat["created_by"].(map[string]any)
	if !ok || createdBy["user"] != "1" {
		t.Errorf("created_by = %v, want {user: 1}", flat["created_by"])
	}

	cborData, err := codec.Marshal(document)
	if err != nil {
		t.Fatalf("codec.Marshal: %v", err)
	}
	var decoded RequestDocument
	if err := codec.Unmarshal(cborData, &decoded); err != nil {
		t.Fatalf("codec.Unmarshal: %v", err)
	}
	if decoded.ID != document.ID || decoded.LastReply == nil || *decoded.LastReply.ChildrenCount != 8 {
		t.Errorf("CBOR round trip = %+v", decoded)
	}
	if decoded.ReceiverReference() != ref.User("2") {
		t.Errorf("receiver = %v, want user:2", decoded.ReceiverReference())
	}
}
