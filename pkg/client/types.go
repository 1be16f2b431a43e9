// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// ServerState is the lifecycle state of the dev server.
type ServerState string

// Dev-server lifecycle states.
const (
	ServerStateStopped  ServerState = "stopped"
	ServerStateStarting ServerState = "starting"
	ServerStateRunning  ServerState = "running"
	ServerStateStopping ServerState = "stopping"
)

// ServerStatus describes the dev server as reported by the API.
type ServerStatus struct {
	// State is the current lifecycle state.
	State ServerState `json:"state"`

	// URL is the server URL as recorded at start.
	URL string `json:"url,omitempty"`

	// LocalURL addresses the server via localhost.
	LocalURL string `json:"local_url,omitempty"`

	// TunnelURL is the public tunnel URL, if a tunnel is active.
	TunnelURL string `json:"tunnel_url,omitempty"`

	// Port is the public port of the server.
	Port int `json:"port,omitempty"`

	// Headless reports whether the server runs without an attached instance.
	Headless bool `json:"headless,omitempty"`
}

// HostType selects how devices address the dev server.
type HostType string

// Host types.
const (
	HostLocalhost HostType = "localhost"
	HostLAN       HostType = "lan"
	HostTunnel    HostType = "tunnel"
)

// LocationOptions are the URL-construction inputs for a start request.
type LocationOptions struct {
	Scheme   string   `json:"scheme,omitempty"`
	HostType HostType `json:"host_type,omitempty"`
	LanHost  string   `json:"lan_host,omitempty"`
	Protocol string   `json:"protocol,omitempty"`
}

// StartOptions configures a dev-server start request. The zero value uses
// the server's configured defaults.
type StartOptions struct {
	Protocol     string          `json:"protocol,omitempty"`
	Mode         string          `json:"mode,omitempty"` // "development" or "production"
	DevClient    bool            `json:"dev_client,omitempty"`
	ManifestType string          `json:"manifest_type,omitempty"`
	MaxWorkers   int             `json:"max_workers,omitempty"`
	Port         int             `json:"port,omitempty"`
	Headless     bool            `json:"headless,omitempty"`
	Minify       bool            `json:"minify,omitempty"`
	ImageEditing bool            `json:"image_editing,omitempty"`
	Location     LocationOptions `json:"location,omitempty"`
}

// MessageMethod identifies a broadcast command understood by connected
// runtimes.
type MessageMethod string

// Broadcast methods.
const (
	MethodReload         MessageMethod = "reload"
	MethodDevMenu        MessageMethod = "devMenu"
	MethodSendDevCommand MessageMethod = "sendDevCommand"
)

// URLs are the addressable URLs of the running dev server.
type URLs struct {
	// Local addresses the server via localhost.
	Local string `json:"local,omitempty"`

	// LAN addresses the server via the configured LAN host.
	LAN string `json:"lan,omitempty"`

	// Tunnel is the public tunnel URL, if a tunnel is active.
	Tunnel string `json:"tunnel,omitempty"`

	// ExpoGo is the URL a stock client runtime loads the project from.
	ExpoGo string `json:"expo_go,omitempty"`
}

// OpenTarget selects where to launch the project.
type OpenTarget string

// Open targets.
const (
	TargetSimulator OpenTarget = "simulator"
	TargetEmulator  OpenTarget = "emulator"
	TargetDesktop   OpenTarget = "desktop"
)

// Device describes the device an open operation launched on.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Booted bool   `json:"booted"`
}

// OpenResult reports what an open operation launched.
type OpenResult struct {
	// URL is the URL that was opened on the target.
	URL string `json:"url"`

	// Runtime is the runtime classification ("expo", "custom" or "web").
	Runtime string `json:"runtime"`

	// Device is the device the URL was opened on, if any.
	Device Device `json:"device,omitempty"`
}

// OpenOptions configures an open request.
type OpenOptions struct {
	// Custom launches into the project's custom development client
	// instead of the stock runtime.
	Custom bool

	// LaunchProps are appended to the custom client URL as query
	// parameters. Only used with Custom.
	LaunchProps map[string]string
}

// BundlerState is the lifecycle state of the bundler process.
type BundlerState string

// Bundler process states.
const (
	BundlerStateStopped  BundlerState = "stopped"
	BundlerStateStarting BundlerState = "starting"
	BundlerStateRunning  BundlerState = "running"
	BundlerStateStopping BundlerState = "stopping"
	BundlerStateCrashed  BundlerState = "crashed"
)

// BundlerStatus is a snapshot of the bundler process.
type BundlerStatus struct {
	State     BundlerState `json:"state"`
	PID       int          `json:"pid"`
	Port      int          `json:"port"`
	ExitCode  int          `json:"exit_code"`
	StartedAt time.Time    `json:"started_at,omitempty"`
	StoppedAt time.Time    `json:"stopped_at,omitempty"`
}

// Event is an entry in the Gantry event history.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// ListOptions filter an event history query.
type ListOptions struct {
	// Types limits results to matching event types. Wildcards are
	// supported ("server.*").
	Types []string

	// Since limits results to events after this time.
	Since time.Time

	// Until limits results to events before this time.
	Until time.Time

	// Limit caps the number of returned events.
	Limit int
}
