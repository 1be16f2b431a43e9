// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// BundlerClient provides access to the bundler process state and logs.
//
// Access this client through [Client.Bundler]:
//
//	status, err := client.Bundler.Status(ctx)
type BundlerClient struct {
	c *Client
}

// Status returns a snapshot of the bundler process.
func (b *BundlerClient) Status(ctx context.Context) (*BundlerStatus, error) {
	data, err := b.c.get(ctx, "/api/v1/bundler")
	if err != nil {
		return nil, err
	}

	var status BundlerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse bundler status: %w", err)
	}

	return &status, nil
}

// Logs returns the most recent lines from the bundler's log buffer.
//
// The lines parameter specifies how many lines to return. For streaming
// output, connect to /api/v1/bundler/logs/stream over a WebSocket.
func (b *BundlerClient) Logs(ctx context.Context, lines int) ([]string, error) {
	path := fmt.Sprintf("/api/v1/bundler/logs?lines=%d", lines)
	data, err := b.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse bundler logs: %w", err)
	}

	return payload.Lines, nil
}
