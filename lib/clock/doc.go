// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the two time operations the request service
// needs, reading the current time and periodic ticks, so that
// expiration, last-activity, and event ordering can be tested
// deterministically.
//
// Production code injects Real(). Tests inject Fake(initial) and move
// time with Advance.
package clock
