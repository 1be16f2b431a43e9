// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		eventType string
		pattern   string
		want      bool
	}{
		{EventServerStarted, "*", true},
		{EventServerStarted, "server.started", true},
		{EventServerStarted, "server.*", true},
		{EventServerStopped, "server.*", true},
		{EventTunnelStarted, "server.*", false},
		{EventServerStarted, "*.started", true},
		{EventTunnelStarted, "*.started", true},
		{EventServerStopped, "*.started", false},
		{EventServerStarted, "", false},
		{"", "*", false},
		{EventServerStarted, "tunnel.started", false},
	}

	for _, tt := range tests {
		got := MatchPattern(tt.eventType, tt.pattern)
		assert.Equal(t, tt.want, got, "MatchPattern(%q, %q)", tt.eventType, tt.pattern)
	}
}

func TestCompilePattern(t *testing.T) {
	_, err := CompilePattern("")
	assert.Error(t, err)

	cp, err := CompilePattern("server.*")
	assert.NoError(t, err)
	assert.True(t, cp.Match(EventServerStarted))
	assert.False(t, cp.Match(EventTunnelStarted))
}
