// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bureau-foundation/requests/lib/codec"
)

// Well-known entity kinds. The set of kinds is open: any kind string
// that passes validation may be used, and the resolver registry
// decides at runtime which kinds are resolvable.
const (
	KindUser      = "user"
	KindGroup     = "group"
	KindRecord    = "record"
	KindCommunity = "community"
)

// SystemID is the id of the system identity. {"user": "system"} is
// the creator of every event emitted by the service itself (expiry,
// scheduled actions) and never corresponds to a stored user.
const SystemID = "system"

// Reference is a validated {kind, id} pointer to an entity. Two
// references are equal iff kind and id match, so Reference values
// may be compared with == and used as map keys.
//
// The zero value is the null reference; use IsZero to check.
type Reference struct {
	kind string
	id   string
}

// New validates kind and id and returns a Reference.
func New(kind, id string) (Reference, error) {
	if err := validateKind(kind); err != nil {
		return Reference{}, fmt.Errorf("invalid reference: %w", err)
	}
	if err := validateID(id); err != nil {
		return Reference{}, fmt.Errorf("invalid %s reference: %w", kind, err)
	}
	return Reference{kind: kind, id: id}, nil
}

// MustNew is like New but panics on error. Use in tests and static
// initialization where the input is known-valid.
func MustNew(kind, id string) Reference {
	reference, err := New(kind, id)
	if err != nil {
		panic(fmt.Sprintf("ref.MustNew(%q, %q): %v", kind, id, err))
	}
	return reference
}

// User returns a user reference. Panics on an invalid id.
func User(id string) Reference { return MustNew(KindUser, id) }

// System returns the reference of the system identity.
func System() Reference { return Reference{kind: KindUser, id: SystemID} }

// Parse parses the text form "kind:id". The id may itself contain
// colons; only the first separates kind from id.
func Parse(text string) (Reference, error) {
	kind, id, found := strings.Cut(text, ":")
	if !found {
		return Reference{}, fmt.Errorf("invalid reference %q: expected kind:id", text)
	}
	return New(kind, id)
}

// FromMap converts a decoded single-key map ({"user": "42"}) into a
// Reference. Both map[string]any (decoded JSON or CBOR) and
// map[string]string are accepted. Any other shape is an error.
func FromMap(value any) (Reference, error) {
	switch typed := value.(type) {
	case map[string]string:
		if len(typed) != 1 {
			return Reference{}, fmt.Errorf("invalid reference: expected exactly one key, got %d", len(typed))
		}
		for kind, id := range typed {
			return New(kind, id)
		}
	case map[string]any:
		if len(typed) != 1 {
			return Reference{}, fmt.Errorf("invalid reference: expected exactly one key, got %d", len(typed))
		}
		for kind, raw := range typed {
			id, ok := raw.(string)
			if !ok {
				return Reference{}, fmt.Errorf("invalid %s reference: id must be a string, got %T", kind, raw)
			}
			return New(kind, id)
		}
	}
	return Reference{}, fmt.Errorf("invalid reference: unsupported value of type %T", value)
}

// Kind returns the entity kind ("user", "record", ...).
func (r Reference) Kind() string { return r.kind }

// ID returns the entity id within its kind.
func (r Reference) ID() string { return r.id }

// IsZero reports whether r is the null reference.
func (r Reference) IsZero() bool { return r.kind == "" }

// IsSystem reports whether r points at the system identity.
func (r Reference) IsSystem() bool { return r.kind == KindUser && r.id == SystemID }

// String returns the text form "kind:id", or "" for the null
// reference.
func (r Reference) String() string {
	if r.IsZero() {
		return ""
	}
	return r.kind + ":" + r.id
}

// Map returns the single-key map form. The null reference maps to
// nil.
func (r Reference) Map() map[string]any {
	if r.IsZero() {
		return nil
	}
	return map[string]any{r.kind: r.id}
}

// MarshalJSON encodes r as {"<kind>": "<id>"}, or null for the null
// reference.
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]string{r.kind: r.id})
}

// UnmarshalJSON decodes the single-key map form. null decodes to the
// null reference.
func (r *Reference) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Reference{}
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid reference: %w", err)
	}
	parsed, err := FromMap(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalCBOR encodes r as a single-key CBOR map, or CBOR null for the
// null reference.
func (r Reference) MarshalCBOR() ([]byte, error) {
	if r.IsZero() {
		return []byte{0xf6}, nil
	}
	return codec.Marshal(map[string]string{r.kind: r.id})
}

// UnmarshalCBOR decodes the single-key CBOR map form. CBOR null and
// undefined decode to the null reference.
func (r *Reference) UnmarshalCBOR(data []byte) error {
	if len(data) == 1 && (data[0] == 0xf6 || data[0] == 0xf7) {
		*r = Reference{}
		return nil
	}
	var raw map[string]string
	if err := codec.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid reference: %w", err)
	}
	parsed, err := FromMap(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
