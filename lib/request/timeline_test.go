// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/requests/lib/ref"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

func newTestTimeline(t *testing.T) *Timeline {
	t.Helper()
	types, err := NewEventTypeRegistry()
	if err != nil {
		t.Fatalf("NewEventTypeRegistry: %v", err)
	}
	return NewTimeline("r1", types)
}

// commentEvent returns a comment on request r1 created seconds after
// epoch.
func commentEvent(id, parentID string, seconds int) schema.Event {
	created := schema.FormatTimestamp(epoch.Add(time.Duration(seconds) * time.Second))
	return schema.Event{
		ID:        id,
		RequestID: "r1",
		Type:      schema.EventComment,
		ParentID:  parentID,
		CreatedBy: ref.User("1"),
		CreatedAt: created,
		UpdatedAt: created,
		Payload:   &schema.Payload{Content: id, Format: schema.FormatHTML},
	}
}

func mustAppend(t *testing.T, timeline *Timeline, content schema.Event) *Event {
	t.Helper()
	event, err := timeline.Append(content)
	if err != nil {
		t.Fatalf("Append(%s): %v", content.ID, err)
	}
	return event
}

func TestTimelineThreading(t *testing.T) {
	timeline := newTestTimeline(t)
	mustAppend(t, timeline, commentEvent("c1", "", 1))
	mustAppend(t, timeline, commentEvent("c2", "c1", 2))

	accepted := commentEvent("a1", "", 3)
	accepted.Type = schema.EventAccepted
	accepted.Payload = &schema.Payload{Event: schema.StatusAccepted}
	mustAppend(t, timeline, accepted)

	tests := []struct {
		name    string
		content schema.Event
		want    error
	}{
		{"reply to reply", commentEvent("c3", "c2", 4), ErrNestedThreadingNotAllowed},
		{"reply to accepted event", commentEvent("c4", "a1", 4), ErrThreadingNotSupported},
		{"missing parent", commentEvent("c5", "nope", 4), ErrNotFound},
		{"duplicate id", commentEvent("c1", "", 4), ErrValidation},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := timeline.Append(test.content); !errors.Is(err, test.want) {
				t.Fatalf("Append = %v, want %v", err, test.want)
			}
		})
	}

	foreign := commentEvent("x1", "", 5)
	foreign.RequestID = "r2"
	if _, err := timeline.Append(foreign); !errors.Is(err, ErrValidation) {
		t.Errorf("event of another request: err = %v, want ErrValidation", err)
	}

	if timeline.Len() != 3 {
		t.Errorf("Len = %d after rejected appends, want 3", timeline.Len())
	}
	var topLevel []string
	for _, event := range timeline.TopLevel() {
		topLevel = append(topLevel, event.ID())
	}
	if !slices.Equal(topLevel, []string{"c1", "a1"}) {
		t.Errorf("TopLevel = %v, want [c1 a1]", topLevel)
	}
}

func TestTimelineChildrenPreview(t *testing.T) {
	ctx := context.Background()
	timeline := newTestTimeline(t)
	parent := mustAppend(t, timeline, commentEvent("c0", "", 0))
	for i := 1; i <= 8; i++ {
		mustAppend(t, timeline, commentEvent(fmt.Sprintf("c%d", i), "c0", i))
	}

	children, err := parent.Children(ctx, timeline, 5)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if got := eventContents(children.Preview); !slices.Equal(got, []string{"c8", "c7", "c6", "c5", "c4"}) {
		t.Errorf("preview = %v, want [c8 c7 c6 c5 c4]", got)
	}
	if children.Total != 8 || !children.HasMore {
		t.Errorf("Total = %d, HasMore = %v; want 8, true", children.Total, children.HasMore)
	}

	all, err := parent.AllChildren(ctx, timeline)
	if err != nil {
		t.Fatalf("AllChildren: %v", err)
	}
	if got := eventContents(all); !slices.Equal(got, []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8"}) {
		t.Errorf("AllChildren = %v", got)
	}
}

func TestTimelineChildrenExactLimit(t *testing.T) {
	timeline := newTestTimeline(t)
	parent := mustAppend(t, timeline, commentEvent("c0", "", 0))
	for i := 1; i <= 5; i++ {
		mustAppend(t, timeline, commentEvent(fmt.Sprintf("c%d", i), "c0", i))
	}
	children, err := parent.Children(context.Background(), timeline, 5)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if children.Total != 5 || children.HasMore || len(children.Preview) != 5 {
		t.Errorf("children = {total %d, more %v, preview %d}; want {5 false 5}",
			children.Total, children.HasMore, len(children.Preview))
	}
}

func TestTimelineLastEvent(t *testing.T) {
	ctx := context.Background()
	timeline := newTestTimeline(t)
	if last, err := timeline.LastEvent(ctx, "r1", schema.EventComment); err != nil || last != nil {
		t.Fatalf("empty timeline LastEvent = %v, %v", last, err)
	}
	mustAppend(t, timeline, commentEvent("c1", "", 1))
	mustAppend(t, timeline, commentEvent("c2", "c1", 2))

	last, err := timeline.LastEvent(ctx, "r1", schema.EventComment)
	if err != nil || last == nil || last.ID != "c2" {
		t.Errorf("LastEvent = %v, %v; want c2", last, err)
	}
	if last, _ := timeline.LastEvent(ctx, "r2", schema.EventComment); last != nil {
		t.Errorf("LastEvent for another request = %v, want nil", last)
	}
}

func TestLoadTimelineTrustsStoredEvents(t *testing.T) {
	types, err := NewEventTypeRegistry()
	if err != nil {
		t.Fatalf("NewEventTypeRegistry: %v", err)
	}
	removed := commentEvent("c1", "", 1)
	removed.Type = schema.EventRemoved
	removed.Payload = &schema.Payload{Event: "comment_deleted"}
	legacy := commentEvent("l1", "", 3)
	legacy.Type = "legacy"

	timeline, err := LoadTimeline("r1", types, []schema.Event{removed, commentEvent("c2", "c1", 2), legacy})
	if err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	if count, _ := timeline.CountChildren(context.Background(), "c1"); count != 1 {
		t.Errorf("reply to removed comment dropped: count = %d", count)
	}
	event, ok := timeline.Get("l1")
	if !ok || event.Type().ID != "legacy" || event.Type().AllowThreading {
		t.Errorf("unregistered type placeholder = %+v", event.Type())
	}
}
