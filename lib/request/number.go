// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// numberPrefix starts every external request number.
const numberPrefix = "req-"

// minNumberLength is the number of hex digits in a fresh number. Longer
// prefixes are used only on collision.
const minNumberLength = 4

// generateNumber derives the external number from the internal id:
// "req-" followed by the shortest prefix (at least four hex digits) of
// the BLAKE3 hash of the id that no existing request uses.
func generateNumber(ctx context.Context, store Store, id string) (string, error) {
	sum := blake3.Sum256([]byte(id))
	digest := hex.EncodeToString(sum[:])
	for length := minNumberLength; length <= len(digest); length++ {
		candidate := numberPrefix + digest[:length]
		exists, err := store.NumberExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking request number %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free request number for id %s", id)
}
