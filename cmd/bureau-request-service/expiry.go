// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"
)

// runExpiry sweeps expired requests on every tick until ctx is
// cancelled. A failed sweep is logged and retried on the next tick.
func (rs *RequestService) runExpiry(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			rs.sweepExpired(ctx)
		}
	}
}

func (rs *RequestService) sweepExpired(ctx context.Context) int {
	expired, err := rs.requests.ExpireStale(ctx)
	if err != nil {
		rs.logger.Error("expiry sweep failed", "error", err, "expired", expired)
		return expired
	}
	if expired > 0 {
		rs.logger.Info("expired requests", "count", expired)
	}
	return expired
}
