// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the Gantry API.
//
// Gantry is a dev-server lifecycle controller for bundler-based app
// development. This client library provides typed access to the Gantry
// control API: dev-server lifecycle, bundler process state and logs,
// and the event history.
//
// # Getting Started
//
// Create a client pointing to your Gantry server:
//
//	c := client.New("http://localhost:1880")
//
// The client provides access to different API resources through sub-clients:
//
//	// Get the dev-server status
//	status, err := c.Server.Status(ctx)
//
//	// Start the dev server
//	status, err := c.Server.Start(ctx, nil)
//
//	// Send a reload command to all connected runtimes
//	err := c.Server.Broadcast(ctx, client.MethodReload, nil)
//
//	// Tail the bundler log buffer
//	lines, err := c.Bundler.Logs(ctx, 100)
//
// # API Versioning
//
// Gantry uses date-based API versioning. By default, the client uses the
// latest API version. You can pin to a specific version for stability:
//
//	c := client.New("http://localhost:1880", client.WithVersion("2026-08-30"))
//
// The version is sent via the Gantry-Version HTTP header on each request.
//
// # Error Handling
//
// API errors are returned as *APIError values, which include an error code
// and message:
//
//	status, err := c.Server.Restart(ctx)
//	if err != nil {
//	    if apiErr, ok := err.(*client.APIError); ok {
//	        fmt.Printf("API error: %s - %s\n", apiErr.Code, apiErr.Message)
//	    }
//	}
//
// # Context Support
//
// All API methods accept a context.Context for cancellation and timeouts:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	status, err := c.Server.Status(ctx)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a Gantry API client.
//
// A Client provides access to the Gantry API through resource-specific
// sub-clients. Use [New] to create a Client instance.
//
// The Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client

	// Server provides access to dev-server lifecycle operations.
	Server *ServerClient

	// Bundler provides access to the bundler process state and logs.
	Bundler *BundlerClient

	// Events provides access to the event history.
	Events *EventClient
}

// Option configures a [Client]. Options are passed to [New] to customize
// client behavior.
type Option func(*Client)

// New creates a new Gantry API client with the given base URL and options.
//
// The baseURL should be the root URL of the Gantry server (e.g.,
// "http://localhost:1880"). Any trailing slash is automatically removed.
//
// By default, the client uses:
//   - The latest API version ([LatestVersion])
//   - A 30-second HTTP timeout
//
// Use options like [WithVersion], [WithTimeout], or [WithHTTPClient] to customize.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	// Initialize resource clients
	c.Server = &ServerClient{c: c}
	c.Bundler = &BundlerClient{c: c}
	c.Events = &EventClient{c: c}

	return c
}

// WithVersion sets the API version to use for all requests.
//
// Gantry uses date-based versioning (e.g., "2026-08-30"). Pinning to a
// specific version ensures API compatibility as the server evolves.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
//
// This is useful for advanced configurations like custom TLS settings,
// proxy configuration, or request tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests.
//
// The default timeout is 30 seconds. Use a longer timeout for operations
// that may take more time, such as a dev-server start that waits for the
// bundler to become ready.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError represents an error response from the Gantry API.
//
// API errors include a machine-readable Code and a human-readable Message.
//
// Common error codes include:
//   - "CONFIGURATION_ERROR": The start options were invalid
//   - "DEV_SERVER_NOT_STARTED": The operation requires a running server
//   - "HEADLESS_UNSUPPORTED": The operation is unsupported on a headless server
//   - "SERVER_CLOSE_TIMEOUT": The server failed to close in time
//   - "UNSUPPORTED_RUNTIME": The project runtime does not support the operation
//   - "TUNNEL_ERROR": The tunnel process failed
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details contains additional error information, if available.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// post performs a POST request to the given path with no body.
func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

// do performs an HTTP request and parses the response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set(VersionHeader, c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Try to parse as standard envelope
	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		// If we can't parse it and status is bad, return error
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		// Return raw body for non-envelope responses
		return respBody, nil
	}

	// Check for error in envelope
	if apiResp.Error != nil {
		return nil, apiResp.Error
	}

	// Check for error embedded in data (some endpoints do this)
	if resp.StatusCode >= 400 {
		var errData APIError
		if err := json.Unmarshal(apiResp.Data, &errData); err == nil && errData.Code != "" {
			return nil, &errData
		}
	}

	return apiResp.Data, nil
}
