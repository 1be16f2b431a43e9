// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"strings"
)

// MatchPattern checks if an event type matches a pattern.
// Patterns support wildcards:
// - "server.*" matches "server.started", "server.stopped", etc.
// - "*.started" matches "server.started", "tunnel.started", etc.
// - "*" matches everything
func MatchPattern(eventType, pattern string) bool {
	if pattern == "" || eventType == "" {
		return false
	}

	// Match all
	if pattern == "*" {
		return true
	}

	// Exact match
	if pattern == eventType {
		return true
	}

	// Wildcard at end (server.*)
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(eventType, prefix+".")
	}

	// Wildcard at start (*.started)
	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(eventType, "."+suffix)
	}

	return false
}

// CompiledPattern is a validated pattern for repeated matching.
type CompiledPattern struct {
	pattern string
}

// CompilePattern validates a pattern for later matching.
func CompilePattern(pattern string) (CompiledPattern, error) {
	if pattern == "" {
		return CompiledPattern{}, errors.New("empty pattern")
	}
	return CompiledPattern{pattern: pattern}, nil
}

// Match reports whether the event type matches the compiled pattern.
func (cp CompiledPattern) Match(eventType string) bool {
	return MatchPattern(eventType, cp.pattern)
}
