// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"path"
	"strings"
)

// MatchPattern checks whether value matches a hierarchical glob
// pattern:
//
//	"request/accept"  matches only "request/accept"
//	"request/*"       matches "request/accept" but not "request/a/b"
//	"request/**"      matches "request", "request/accept", "request/a/b"
//	"**/read"         matches "read", "request/read", "user/email/read"
//	"**"              matches anything
//
// Malformed patterns never match.
func MatchPattern(pattern, value string) bool {
	if pattern == "**" {
		return true
	}
	if !strings.Contains(pattern, "**") {
		return matchGlob(pattern, value)
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if matchGlob(prefix, value) {
			return true
		}
		depth := strings.Count(prefix, "/") + 1
		segments := strings.SplitN(value, "/", depth+1)
		if len(segments) <= depth {
			return false
		}
		return matchGlob(prefix, strings.Join(segments[:depth], "/"))
	}

	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if matchGlob(suffix, value) {
			return true
		}
		depth := strings.Count(suffix, "/") + 1
		segments := strings.Split(value, "/")
		if len(segments) <= depth {
			return false
		}
		return matchGlob(suffix, strings.Join(segments[len(segments)-depth:], "/"))
	}

	// Interior "**" is not supported.
	return false
}

// MatchAnyPattern reports whether value matches any of the patterns.
// An empty pattern list matches nothing.
func MatchAnyPattern(patterns []string, value string) bool {
	for _, pattern := range patterns {
		if MatchPattern(pattern, value) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, value string) bool {
	matched, err := path.Match(pattern, value)
	return err == nil && matched
}
