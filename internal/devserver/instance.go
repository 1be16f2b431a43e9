// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"context"
	"fmt"
	"net/http"
)

// Location describes where a server instance is reachable.
type Location struct {
	URL      string `json:"url"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Host     string `json:"host,omitempty"`
}

// ServerHandle closes an underlying server.
type ServerHandle interface {
	Close(ctx context.Context) error
}

// MessageMethod names a command broadcast to connected runtimes.
type MessageMethod string

const (
	MethodReload         MessageMethod = "reload"
	MethodDevMenu        MessageMethod = "devMenu"
	MethodSendDevCommand MessageMethod = "sendDevCommand"
)

// Valid reports whether the method is one of the accepted commands.
func (m MessageMethod) Valid() bool {
	switch m {
	case MethodReload, MethodDevMenu, MethodSendDevCommand:
		return true
	}
	return false
}

// MessageBroadcaster fans a command out to connected runtimes.
type MessageBroadcaster interface {
	Broadcast(method MessageMethod, params map[string]interface{}) error
}

// Instance is one running dev server. It is owned exclusively by the
// controller and replaced wholesale on restart, never mutated in place.
type Instance struct {
	Server     ServerHandle
	Location   Location
	Middleware http.Handler
	Messages   MessageBroadcaster
	Headless   bool
}

// headlessHandle is the server handle of a synthesized instance. The
// real server is assumed to run in another process, so close is a no-op.
type headlessHandle struct{}

func (headlessHandle) Close(context.Context) error { return nil }

// headlessBroadcaster rejects all broadcasts.
type headlessBroadcaster struct{}

func (headlessBroadcaster) Broadcast(method MessageMethod, _ map[string]interface{}) error {
	return NewError(CodeHeadlessUnsupported, "cannot broadcast %q to a headless server", method)
}

// newHeadlessInstance synthesizes an instance for a server assumed to be
// running elsewhere, used only to compute URLs.
func newHeadlessInstance(port int, protocol string) *Instance {
	if protocol == "" {
		protocol = "http"
	}
	return &Instance{
		Server: headlessHandle{},
		Location: Location{
			URL:      fmt.Sprintf("%s://localhost:%d", protocol, port),
			Port:     port,
			Protocol: protocol,
			Host:     "localhost",
		},
		Messages: headlessBroadcaster{},
		Headless: true,
	}
}
