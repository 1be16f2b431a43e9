// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	path    string
	session Description
}

func newRegistry(t *testing.T) (*httptest.Server, func() []recordedCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []recordedCall

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data Description `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		calls = append(calls, recordedCall{path: r.URL.Path, session: body.Data})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))

	return server, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedCall, len(calls))
		copy(out, calls)
		return out
	}
}

func TestNotifier_RegisterAndDeregister(t *testing.T) {
	server, calls := newRegistry(t)
	defer server.Close()

	n := NewNotifier(Config{
		Endpoint: server.URL,
		Interval: time.Hour, // no ticks during the test
	}, nil)

	n.Start(context.Background(), Description{
		SessionName: "myapp on http://localhost:8081",
		URL:         "http://localhost:8081",
		Source:      "desktop",
	})
	assert.True(t, n.Running())

	require.NoError(t, n.Stop())
	assert.False(t, n.Running())

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, "/development-sessions/notify-alive", got[0].path)
	assert.Equal(t, "http://localhost:8081", got[0].session.URL)
	assert.Equal(t, "/development-sessions/notify-close", got[1].path)
}

func TestNotifier_KeepAliveTicks(t *testing.T) {
	server, calls := newRegistry(t)
	defer server.Close()

	n := NewNotifier(Config{
		Endpoint: server.URL,
		Interval: 20 * time.Millisecond,
	}, nil)

	n.Start(context.Background(), Description{URL: "http://localhost:8081"})

	assert.Eventually(t, func() bool {
		return len(calls()) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	n.Stop()
}

func TestNotifier_DisabledWithoutEndpoint(t *testing.T) {
	n := NewNotifier(Config{}, nil)
	n.Start(context.Background(), Description{URL: "http://localhost:8081"})
	assert.False(t, n.Running())
	n.Stop()
}

func TestNotifier_RegistryFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewNotifier(Config{Endpoint: server.URL, Interval: time.Hour}, nil)

	// Registration failures are logged only; Start still succeeds.
	n.Start(context.Background(), Description{URL: "http://localhost:8081"})
	assert.True(t, n.Running())

	// Deregistration failure surfaces but keep-alives are stopped anyway.
	err := n.Stop()
	assert.Error(t, err)
	assert.False(t, n.Running())
}

func TestNotifier_StopWhenIdle(t *testing.T) {
	n := NewNotifier(Config{Endpoint: "http://example.invalid"}, nil)
	assert.NoError(t, n.Stop())
	assert.False(t, n.Running())
}
