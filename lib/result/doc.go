// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package result turns requests and events into the items returned to
// clients: the dumped document projected to a plain map, the links a
// client follows from it, and the expanded references.
//
// Every list is expanded in a single [expand.Engine.Expand] call. A
// timeline's previewed replies are expanded in the same batch as the
// top-level events that carry them.
package result
