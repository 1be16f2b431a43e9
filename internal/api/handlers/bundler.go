// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/gantry/internal/bundler"
)

// BundlerHandler exposes the bundler process state and its log buffer.
type BundlerHandler struct {
	backend *bundler.Backend
}

// NewBundlerHandler creates a new bundler handler.
func NewBundlerHandler(backend *bundler.Backend) *BundlerHandler {
	return &BundlerHandler{backend: backend}
}

// Status returns the bundler process snapshot.
func (h *BundlerHandler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.backend.Status())
}

// Logs returns the last n lines of bundler output.
func (h *BundlerHandler) Logs(w http.ResponseWriter, r *http.Request) {
	n := 100
	if s := r.URL.Query().Get("lines"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			n = parsed
		}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"lines": h.backend.Logs(n)})
}

// StreamLogs streams bundler output over a WebSocket.
func (h *BundlerHandler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logCh := h.backend.SubscribeLogs()
	defer h.backend.UnsubscribeLogs(logCh)

	// Set up ping/pong
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	// Read goroutine (for close detection)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-logCh:
			if !ok {
				return
			}
			if err := conn.WriteJSON(line); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
