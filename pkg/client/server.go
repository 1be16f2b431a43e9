// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// ServerClient provides access to dev-server lifecycle operations.
//
// The dev server is the bundler-backed HTTP server Gantry controls. The
// ServerClient allows starting, stopping and restarting it, broadcasting
// commands to connected runtimes, and launching the project on devices.
//
// Access this client through [Client.Server]:
//
//	status, err := client.Server.Status(ctx)
type ServerClient struct {
	c *Client
}

// Status returns the current dev-server state and URLs.
func (s *ServerClient) Status(ctx context.Context) (*ServerStatus, error) {
	data, err := s.c.get(ctx, "/api/v1/server")
	if err != nil {
		return nil, err
	}

	var status ServerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse server status: %w", err)
	}

	return &status, nil
}

// Start starts the dev server.
//
// If the server is already running, it is stopped and replaced by a fresh
// instance. A nil opts starts with the server's configured defaults.
func (s *ServerClient) Start(ctx context.Context, opts *StartOptions) (*ServerStatus, error) {
	var data json.RawMessage
	var err error
	if opts == nil {
		data, err = s.c.post(ctx, "/api/v1/server/start")
	} else {
		data, err = s.c.postJSON(ctx, "/api/v1/server/start", opts)
	}
	if err != nil {
		return nil, err
	}

	var status ServerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse server status: %w", err)
	}

	return &status, nil
}

// Stop stops the dev server.
//
// Stopping deregisters the development session, stops any active tunnel
// and shuts down the bundler. Stopping an already stopped server is a
// no-op.
func (s *ServerClient) Stop(ctx context.Context) error {
	_, err := s.c.post(ctx, "/api/v1/server/stop")
	return err
}

// Restart restarts the dev server with the options from its last start.
//
// Returns an error with code "DEV_SERVER_NOT_STARTED" if the server has
// never been started.
func (s *ServerClient) Restart(ctx context.Context) (*ServerStatus, error) {
	data, err := s.c.post(ctx, "/api/v1/server/restart")
	if err != nil {
		return nil, err
	}

	var status ServerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse server status: %w", err)
	}

	return &status, nil
}

// Broadcast sends a command to all connected runtimes.
//
// Returns an error with code "HEADLESS_UNSUPPORTED" when the server runs
// headless.
func (s *ServerClient) Broadcast(ctx context.Context, method MessageMethod, params map[string]interface{}) error {
	body := map[string]interface{}{"method": method}
	if len(params) > 0 {
		body["params"] = params
	}
	_, err := s.c.postJSON(ctx, "/api/v1/server/message", body)
	return err
}

// URLs returns the addressable URLs of the running dev server.
func (s *ServerClient) URLs(ctx context.Context) (*URLs, error) {
	data, err := s.c.get(ctx, "/api/v1/server/urls")
	if err != nil {
		return nil, err
	}

	var urls URLs
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("failed to parse urls: %w", err)
	}

	return &urls, nil
}

// Open launches the project on a simulator, emulator or the desktop
// browser.
//
// A nil opts opens the stock runtime for the target.
func (s *ServerClient) Open(ctx context.Context, target OpenTarget, opts *OpenOptions) (*OpenResult, error) {
	body := map[string]interface{}{"target": target}
	if opts != nil {
		if opts.Custom {
			body["custom"] = true
		}
		if len(opts.LaunchProps) > 0 {
			body["launch_props"] = opts.LaunchProps
		}
	}

	data, err := s.c.postJSON(ctx, "/api/v1/server/open", body)
	if err != nil {
		return nil, err
	}

	var result OpenResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse open result: %w", err)
	}

	return &result, nil
}
