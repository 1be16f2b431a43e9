// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EventClient provides access to the Gantry event history.
//
// Events track lifecycle activity: server starts and stops, tunnel
// state, session registration, config changes and platform launches.
//
// Access this client through [Client.Events]:
//
//	events, err := client.Events.List(ctx, nil)
type EventClient struct {
	c *Client
}

// List returns past events matching the given options.
//
// A nil opts returns the full retained history.
func (e *EventClient) List(ctx context.Context, opts *ListOptions) ([]Event, error) {
	path := "/api/v1/events"

	if opts != nil {
		query := url.Values{}
		for _, t := range opts.Types {
			query.Add("type", t)
		}
		if opts.Limit > 0 {
			query.Set("limit", strconv.Itoa(opts.Limit))
		}
		if !opts.Since.IsZero() {
			query.Set("since", opts.Since.Format(time.RFC3339))
		}
		if !opts.Until.IsZero() {
			query.Set("until", opts.Until.Format(time.RFC3339))
		}
		if len(query) > 0 {
			path += "?" + query.Encode()
		}
	}

	data, err := e.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}

	return events, nil
}
