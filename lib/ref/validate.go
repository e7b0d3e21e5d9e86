// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"unicode"
)

const (
	maxKindLength = 64
	maxIDLength   = 256
)

// allowedKindChars is the set of characters permitted in a kind:
// a-z, 0-9, _ and -.
var allowedKindChars [256]bool

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		allowedKindChars[c] = true
	}
	for c := byte('0'); c <= '9'; c++ {
		allowedKindChars[c] = true
	}
	allowedKindChars['_'] = true
	allowedKindChars['-'] = true
}

func validateKind(kind string) error {
	if kind == "" {
		return fmt.Errorf("empty kind")
	}
	if len(kind) > maxKindLength {
		return fmt.Errorf("kind %q exceeds %d characters", kind, maxKindLength)
	}
	if kind[0] < 'a' || kind[0] > 'z' {
		return fmt.Errorf("kind %q must start with a lowercase letter", kind)
	}
	for i := 0; i < len(kind); i++ {
		if !allowedKindChars[kind[i]] {
			return fmt.Errorf("kind %q contains invalid character %q", kind, kind[i])
		}
	}
	return nil
}

// validateID accepts any non-empty printable id. Ids are opaque to the
// reference model: user ids are integers in one deployment and UUIDs
// in another.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty id")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("id exceeds %d bytes", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return fmt.Errorf("id %q contains a control or invalid character", id)
		}
	}
	return nil
}
