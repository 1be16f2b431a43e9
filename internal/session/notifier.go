// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session advertises a running dev server to a remote session
// registry so development clients can discover it.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

const (
	defaultInterval = 30 * time.Second
	defaultTimeout  = 10 * time.Second
)

// Description identifies one advertised dev session.
type Description struct {
	SessionName string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Platform    string `json:"platform,omitempty"`
}

// Config configures the notifier.
type Config struct {
	Endpoint string // Session registry base URL; empty disables notification
	Interval time.Duration
	Timeout  time.Duration
}

// Notifier periodically re-registers a dev session with the registry and
// deregisters it on close. Registry failures are logged, never fatal;
// development continues without remote discovery.
type Notifier struct {
	cfg    Config
	client *http.Client

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	session Description
}

// NewNotifier creates a session notifier. A nil client uses a default
// with the configured timeout.
func NewNotifier(cfg Config, client *http.Client) *Notifier {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Notifier{cfg: cfg, client: client}
}

// Start begins keep-alive registration for the given session. A notifier
// that is already running is restarted with the new session description.
// Disabled (no endpoint) notifiers return immediately.
func (n *Notifier) Start(ctx context.Context, session Description) {
	if n.cfg.Endpoint == "" {
		return
	}

	n.Stop()

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	n.mu.Lock()
	n.cancel = cancel
	n.done = done
	n.session = session
	n.mu.Unlock()

	go n.run(runCtx, session, done)

	// First registration happens inline so the session is visible as soon
	// as Start returns.
	if err := n.notify(ctx, "alive", session); err != nil {
		log.Printf("Session: initial registration failed: %v", err)
	}
}

// Stop deregisters the session and halts keep-alives. Safe to call when
// not running. Returns the deregistration error, if any; the keep-alive
// loop is stopped regardless.
func (n *Notifier) Stop() error {
	n.mu.Lock()
	cancel := n.cancel
	done := n.done
	session := n.session
	n.cancel = nil
	n.done = nil
	n.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	ctx, cancelClose := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancelClose()
	if err := n.notify(ctx, "close", session); err != nil {
		return fmt.Errorf("deregister session: %w", err)
	}
	return nil
}

// Running reports whether keep-alives are active.
func (n *Notifier) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cancel != nil
}

func (n *Notifier) run(ctx context.Context, session Description, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.notify(ctx, "alive", session); err != nil {
				log.Printf("Session: keep-alive failed: %v", err)
			}
		}
	}
}

// notify sends one registration message. action is "alive" or "close".
func (n *Notifier) notify(ctx context.Context, action string, session Description) error {
	body, err := json.Marshal(map[string]interface{}{"data": session})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	url := fmt.Sprintf("%s/development-sessions/notify-%s", n.cfg.Endpoint, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify-%s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify-%s: registry returned %s", action, resp.Status)
	}
	return nil
}
