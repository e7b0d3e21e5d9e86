// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type document struct {
	ID      string         `json:"id"`
	Status  string         `json:"status,omitempty"`
	Count   int            `json:"count"`
	Payload map[string]any `json:"payload,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": 2, "mid": "x"}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("Marshal produced different bytes on iteration %d", i)
		}
	}
}

func TestJSONTagFallbackAndOmitempty(t *testing.T) {
	data, err := Marshal(document{ID: "req-1", Count: 3})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic map[string]any
	if err := Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if generic["id"] != "req-1" {
		t.Errorf("id = %v, want req-1", generic["id"])
	}
	if _, present := generic["status"]; present {
		t.Error("empty status was encoded despite omitempty")
	}
	if _, present := generic["payload"]; present {
		t.Error("nil payload was encoded despite omitempty")
	}
}

func TestNestedMapsDecodeAsStringKeyed(t *testing.T) {
	data, err := Marshal(document{ID: "x", Payload: map[string]any{"content": "hi", "nested": map[string]any{"a": "b"}}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded document
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	nested, ok := decoded.Payload["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested payload decoded as %T, want map[string]any", decoded.Payload["nested"])
	}
	if nested["a"] != "b" {
		t.Errorf("nested[a] = %v, want b", nested["a"])
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, id := range []string{"a", "b"} {
		if err := encoder.Encode(document{ID: id}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for _, want := range []string{"a", "b"} {
		var decoded document
		if err := decoder.Decode(&decoded); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decoded.ID != want {
			t.Errorf("ID = %q, want %q", decoded.ID, want)
		}
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var decoded document
	if err := Unmarshal([]byte{0xff, 0x00}, &decoded); err == nil {
		t.Error("Unmarshal of invalid CBOR succeeded")
	}
}
