// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the request
// service.
//
// Configuration is loaded from a single file specified by either the
// BUREAU_REQUESTS_CONFIG environment variable (via [Load]) or a
// --config flag (via [LoadFile]). There are no fallbacks, no
// ~/.config discovery, and no automatic file search. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production rejects the allow-all
// permission policy.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${BUREAU_ROOT}, ${BUREAU_STATE}, ${BUREAU_RUN}, and
// ${VAR:-default} patterns are expanded. No other environment
// variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Store, Socket, Requests, Links
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
