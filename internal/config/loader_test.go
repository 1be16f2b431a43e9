// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gantry.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load(t *testing.T) {
	path := writeConfig(t, `{
		// comments are allowed in hjson
		project: {
			name: myapp
		}
		server: {
			port: 2000
			host: 0.0.0.0
		}
		bundler: {
			command: ["npx", "react-native", "start"]
			port: 8081
		}
		location: {
			scheme: myapp
			host_type: tunnel
		}
	}`)

	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "myapp", cfg.Project.Name)
	assert.Equal(t, 2000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"npx", "react-native", "start"}, cfg.Bundler.Command)
	assert.Equal(t, 8081, cfg.Bundler.Port)
	assert.Equal(t, "myapp", cfg.Location.Scheme)
	assert.Equal(t, "tunnel", cfg.Location.HostType)
}

func TestLoader_LoadWithDefaults(t *testing.T) {
	path := writeConfig(t, `{
		project: {
			name: myapp
		}
	}`)

	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1880, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "metro", cfg.Bundler.Name)
	assert.Equal(t, "ngrok", cfg.Tunnel.Binary)
	assert.Equal(t, "30s", cfg.Session.Interval)
	assert.Equal(t, "lan", cfg.Location.HostType)
	assert.Equal(t, "http", cfg.Location.Protocol)
	assert.Equal(t, []string{"app.json", "app.config.js", ".env"}, cfg.Watch.Files)
	assert.Equal(t, 10000, cfg.Events.History.MaxEvents)
	assert.Equal(t, "expo-dev-client", cfg.Settings.DevClientPackage)

	// Project root defaults to the config file's directory
	assert.Equal(t, filepath.Dir(path), cfg.Project.Root)
}

func TestLoader_LoadMissingFile(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/gantry.hjson")
	assert.Error(t, err)
}

func TestLoader_LoadInvalidHJSON(t *testing.T) {
	path := writeConfig(t, `{ project: { name: [unclosed }`)

	loader := NewLoader()
	_, err := loader.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Second, ParseDuration("", time.Second))
	assert.Equal(t, time.Second, ParseDuration("bogus", time.Second))
	assert.Equal(t, 250*time.Millisecond, ParseDuration("250ms", time.Second))
}
