// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package urls builds addressable URLs for a running dev server.
package urls

import (
	"fmt"
	"net/url"
	"strings"
)

// HostType selects how the dev server is addressed.
type HostType string

const (
	HostLocalhost HostType = "localhost"
	HostLAN       HostType = "lan"
	HostTunnel    HostType = "tunnel"
)

// Options is the location-options snapshot a Creator is built from.
type Options struct {
	Scheme   string   // Custom deep-link scheme (e.g. "myapp"); empty if unavailable
	HostType HostType // Default host type
	LanHost  string   // LAN-reachable host or IP; falls back to "localhost"
	Protocol string   // "http" or "https"
}

// Creator composes URLs from a location snapshot plus resolution
// callbacks captured at construction time. It performs no I/O.
type Creator struct {
	opts             Options
	resolvePort      func() int
	resolveTunnelURL func() string
}

// NewCreator creates a URL creator. resolvePort returns the dev server's
// current port; resolveTunnelURL returns the active public tunnel URL, or
// empty when no tunnel is established.
func NewCreator(opts Options, resolvePort func() int, resolveTunnelURL func() string) *Creator {
	if opts.Protocol == "" {
		opts.Protocol = "http"
	}
	if opts.HostType == "" {
		opts.HostType = HostLAN
	}
	return &Creator{
		opts:             opts,
		resolvePort:      resolvePort,
		resolveTunnelURL: resolveTunnelURL,
	}
}

// Request overrides parts of the configured location for one construction.
type Request struct {
	Scheme   string   // Custom scheme override; empty uses the plain protocol
	HostType HostType // Host type override; empty uses the configured default
}

// ConstructURL returns the dev server URL for the requested host type and
// scheme. A tunnel host type falls back to LAN addressing when no tunnel
// URL is available.
func (c *Creator) ConstructURL(req Request) string {
	hostType := req.HostType
	if hostType == "" {
		hostType = c.opts.HostType
	}

	if hostType == HostTunnel {
		if tunnelURL := c.resolveTunnelURL(); tunnelURL != "" {
			if req.Scheme != "" {
				return swapScheme(tunnelURL, req.Scheme)
			}
			return tunnelURL
		}
		hostType = HostLAN
	}

	host := "localhost"
	if hostType == HostLAN && c.opts.LanHost != "" {
		host = c.opts.LanHost
	}

	scheme := c.opts.Protocol
	if req.Scheme != "" {
		scheme = req.Scheme
	}

	return fmt.Sprintf("%s://%s:%d", scheme, host, c.resolvePort())
}

// ConstructDevClientURL returns the deep link that opens a development
// client pointed at this server's manifest. Returns empty when no custom
// scheme is configured.
func (c *Creator) ConstructDevClientURL(req Request) string {
	scheme := req.Scheme
	if scheme == "" {
		scheme = c.opts.Scheme
	}
	if scheme == "" {
		return ""
	}

	manifestURL := c.ConstructURL(Request{HostType: req.HostType})
	return fmt.Sprintf("%s://expo-development-client/?url=%s", scheme, url.QueryEscape(manifestURL))
}

// ConstructLoadingURL returns the interstitial runtime-selection page URL
// for the given platform ("ios" or "android").
func (c *Creator) ConstructLoadingURL(req Request, platform string) string {
	return fmt.Sprintf("%s/_gantry/loading?platform=%s", c.ConstructURL(Request{HostType: req.HostType}), platform)
}

// swapScheme replaces the scheme of a URL, preserving host, port and path.
func swapScheme(rawURL, scheme string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Best effort on malformed input
		if i := strings.Index(rawURL, "://"); i >= 0 {
			return scheme + rawURL[i:]
		}
		return rawURL
	}
	u.Scheme = scheme
	return u.String()
}
