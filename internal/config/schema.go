// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for Gantry.
package config

import (
	"time"
)

// Config is the root configuration structure for Gantry.
type Config struct {
	Version  string         `json:"version"`
	Project  ProjectConfig  `json:"project"`
	Server   ServerConfig   `json:"server"`
	Bundler  BundlerConfig  `json:"bundler"`
	Tunnel   TunnelConfig   `json:"tunnel"`
	Session  SessionConfig  `json:"session"`
	Location LocationConfig `json:"location"`
	Watch    WatchConfig    `json:"watch"`
	Events   EventsConfig   `json:"events"`
	Settings SettingsConfig `json:"settings"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name string `json:"name"`
	Root string `json:"root"` // Project root directory (defaults to config file dir)
}

// ServerConfig configures the Gantry HTTP API server.
type ServerConfig struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	TLSCert      string `json:"tls_cert"`      // Path to TLS certificate file (enables HTTPS if both cert and key set)
	TLSKey       string `json:"tls_key"`       // Path to TLS private key file
	TLSTailscale bool   `json:"tls_tailscale"` // Use the local Tailscale daemon for certificates
}

// BundlerConfig configures the bundler dev-server child process.
type BundlerConfig struct {
	Name          string            `json:"name"` // Display name, e.g. "metro"
	Command       []string          `json:"command"`
	Args          []string          `json:"args"`
	WorkDir       string            `json:"work_dir"`
	Env           map[string]string `json:"env"`
	Port          int               `json:"port"` // 0 picks a free port
	ReadyTimeout  string            `json:"ready_timeout"`
	StopTimeout   string            `json:"stop_timeout"`
	LogBufferSize int               `json:"log_buffer_size"`
}

// TunnelConfig configures the public tunnel process.
type TunnelConfig struct {
	Binary       string `json:"binary"` // Tunnel binary (default "ngrok")
	Region       string `json:"region"`
	StartTimeout string `json:"start_timeout"`
	StopTimeout  string `json:"stop_timeout"`
}

// SessionConfig configures the remote development-session registrar.
type SessionConfig struct {
	Endpoint string `json:"endpoint"` // Registrar base URL; empty disables remote notification
	Interval string `json:"interval"` // Keep-alive interval
	Timeout  string `json:"timeout"`  // Per-request timeout
}

// LocationConfig holds the URL-construction inputs.
type LocationConfig struct {
	Scheme   string `json:"scheme"`    // Custom deep-link scheme (e.g. "myapp")
	HostType string `json:"host_type"` // "localhost", "lan", or "tunnel"
	LanHost  string `json:"lan_host"`  // LAN-reachable host or IP for host_type "lan"
	Protocol string `json:"protocol"`  // "http" or "https"
}

// WatchConfig configures config-file watching.
type WatchConfig struct {
	Files    []string `json:"files"` // Files to watch, relative to project root
	Debounce string   `json:"debounce"`
}

// EventsConfig configures the event system.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// SettingsConfig carries environment-style flags the core reads but does
// not own. They are threaded explicitly rather than read from globals.
type SettingsConfig struct {
	Offline          bool   `json:"offline"`           // Suppress tunnel start
	InterstitialPage bool   `json:"interstitial_page"` // Serve the runtime-selection loading page
	DevClientPackage string `json:"dev_client_package"` // Package dir checked under node_modules for dev-client eligibility
	TargetNative     bool   `json:"target_native"`     // Whether native runtimes are the launch target
}

// ParseDuration parses a duration string, returning defaultVal on empty or invalid input.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
