// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. These functions
// centralize the raw I/O that happens before the structured logger
// exists:
//
//   - Fatal error reporting to stderr from main().
//   - --version output.
//
// Everything after logger setup goes through slog.
package process
