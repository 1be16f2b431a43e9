// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	// Project root defaults to the config file's directory
	if cfg.Project.Root == "" {
		abs, err := filepath.Abs(path)
		if err == nil {
			cfg.Project.Root = filepath.Dir(abs)
		}
	}

	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
// It looks for gantry.hjson first, then gantry.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"gantry.hjson",
		"gantry.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for gantry.hjson, gantry.json)")
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 1880
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	// Bundler defaults
	if cfg.Bundler.Name == "" {
		cfg.Bundler.Name = "metro"
	}
	if cfg.Bundler.ReadyTimeout == "" {
		cfg.Bundler.ReadyTimeout = "60s"
	}
	if cfg.Bundler.StopTimeout == "" {
		cfg.Bundler.StopTimeout = "10s"
	}
	if cfg.Bundler.LogBufferSize == 0 {
		cfg.Bundler.LogBufferSize = 1000
	}

	// Tunnel defaults
	if cfg.Tunnel.Binary == "" {
		cfg.Tunnel.Binary = "ngrok"
	}
	if cfg.Tunnel.StartTimeout == "" {
		cfg.Tunnel.StartTimeout = "60s"
	}
	if cfg.Tunnel.StopTimeout == "" {
		cfg.Tunnel.StopTimeout = "5s"
	}

	// Session defaults
	if cfg.Session.Interval == "" {
		cfg.Session.Interval = "30s"
	}
	if cfg.Session.Timeout == "" {
		cfg.Session.Timeout = "10s"
	}

	// Location defaults
	if cfg.Location.HostType == "" {
		cfg.Location.HostType = "lan"
	}
	if cfg.Location.Protocol == "" {
		cfg.Location.Protocol = "http"
	}

	// Watch defaults
	if len(cfg.Watch.Files) == 0 {
		cfg.Watch.Files = []string{"app.json", "app.config.js", ".env"}
	}
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "100ms"
	}

	// Events defaults
	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}

	// Settings defaults
	if cfg.Settings.DevClientPackage == "" {
		cfg.Settings.DevClientPackage = "expo-dev-client"
	}
}
