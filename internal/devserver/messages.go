// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var hubUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the wire format sent to connected runtimes.
type Message struct {
	Version int                    `json:"version"`
	Method  MessageMethod          `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// MessageHub accepts websocket connections from native runtimes and
// broadcasts commands to all of them.
type MessageHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan Message
	closed  bool
}

// NewMessageHub creates an empty hub.
func NewMessageHub() *MessageHub {
	return &MessageHub{clients: make(map[*websocket.Conn]chan Message)}
}

// ServeHTTP upgrades the request and keeps the connection registered
// until the client goes away.
func (h *MessageHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := hubUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	sendCh := make(chan Message, 16)
	h.clients[conn] = sendCh
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

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
		case msg := <-sendCh:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// Broadcast queues a command for every connected runtime. Slow clients
// are skipped rather than blocking the broadcast.
func (h *MessageHub) Broadcast(method MessageMethod, params map[string]interface{}) error {
	if !method.Valid() {
		return fmt.Errorf("unsupported message method %q", method)
	}

	msg := Message{Version: 2, Method: method, Params: params}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return fmt.Errorf("message hub closed")
	}
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Client too slow, drop
		}
	}
	return nil
}

// ClientCount returns the number of connected runtimes.
func (h *MessageHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects future connections.
func (h *MessageHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for conn := range h.clients {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]chan Message)
}
