// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the event bus for Gantry.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types []string  // Event types to match (supports wildcards)
	Since time.Time // Events after this time
	Until time.Time // Events before this time
	Limit int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Common event types
const (
	// Dev-server lifecycle events
	EventServerStarted = "server.started"
	EventServerStopped = "server.stopped"

	// Tunnel events
	EventTunnelStarted = "tunnel.started"
	EventTunnelStopped = "tunnel.stopped"

	// Development-session registrar events
	EventSessionStarted = "session.started"
	EventSessionStopped = "session.stopped"

	// Config watcher events
	EventConfigChanged = "config.changed"

	// Platform launch events
	EventPlatformOpened = "platform.opened"

	// Message broadcast events (mirrored onto the bus for observability)
	EventMessageBroadcast = "message.broadcast"
)
