// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/gantry/internal/devserver"
	"github.com/wingedpig/gantry/internal/events"
	"github.com/wingedpig/gantry/internal/session"
)

type stubFactory struct{}

func (stubFactory) Produce(context.Context, devserver.StartOptions) (*devserver.Instance, error) {
	panic("not used: tests start headless")
}

type stubTunnel struct{}

func (stubTunnel) Start(context.Context, string, int) error { return nil }
func (stubTunnel) Stop(context.Context) error               { return nil }
func (stubTunnel) ActiveURL() string                        { return "" }

type stubNotifier struct{}

func (stubNotifier) Start(context.Context, session.Description) {}
func (stubNotifier) Stop() error                                { return nil }

func newTestController(t *testing.T) *devserver.Controller {
	t.Helper()
	return devserver.NewController(devserver.Settings{
		ProjectRoot:  t.TempDir(),
		ProjectName:  "testapp",
		BundlerName:  "metro",
		TargetNative: true,
	}, stubFactory{}, stubTunnel{}, stubNotifier{}, nil)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestServerHandler_StatusStopped(t *testing.T) {
	h := NewServerHandler(newTestController(t))

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest("GET", "/api/v1/server", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "stopped", data["state"])
}

func TestServerHandler_StartHeadless(t *testing.T) {
	controller := newTestController(t)
	h := NewServerHandler(controller)

	body := strings.NewReader(`{"headless": true, "port": 8081}`)
	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest("POST", "/api/v1/server/start", body))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "running", data["state"])
	assert.Equal(t, "http://localhost:8081", data["url"])
	assert.Equal(t, true, data["headless"])

	// Stop cleans up
	rec = httptest.NewRecorder()
	h.Stop(rec, httptest.NewRequest("POST", "/api/v1/server/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, devserver.StateStopped, controller.State())
}

func TestServerHandler_StartHeadlessWithoutPort(t *testing.T) {
	h := NewServerHandler(newTestController(t))

	body := strings.NewReader(`{"headless": true}`)
	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest("POST", "/api/v1/server/start", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(devserver.CodeConfiguration), resp.Error.Code)
}

func TestServerHandler_BroadcastOnHeadless(t *testing.T) {
	controller := newTestController(t)
	_, err := controller.Start(context.Background(), devserver.StartOptions{Headless: true, Port: 8081})
	require.NoError(t, err)
	defer controller.Stop(context.Background())

	h := NewServerHandler(controller)

	body := strings.NewReader(`{"method": "reload"}`)
	rec := httptest.NewRecorder()
	h.Broadcast(rec, httptest.NewRequest("POST", "/api/v1/server/message", body))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(devserver.CodeHeadlessUnsupported), resp.Error.Code)
}

func TestServerHandler_BroadcastInvalidMethod(t *testing.T) {
	h := NewServerHandler(newTestController(t))

	body := strings.NewReader(`{"method": "explode"}`)
	rec := httptest.NewRecorder()
	h.Broadcast(rec, httptest.NewRequest("POST", "/api/v1/server/message", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerHandler_RestartBeforeStart(t *testing.T) {
	h := NewServerHandler(newTestController(t))

	rec := httptest.NewRecorder()
	h.Restart(rec, httptest.NewRequest("POST", "/api/v1/server/restart", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(devserver.CodeNotStarted), resp.Error.Code)
}

func TestEventHandler_History(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 100, HistoryMaxAge: time.Hour})
	defer bus.Close()

	bus.Publish(context.Background(), events.Event{Type: events.EventServerStarted})
	bus.Publish(context.Background(), events.Event{Type: events.EventTunnelStarted})

	h := NewEventHandler(bus)
	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest("GET", "/api/v1/events?type=server.*", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	list := resp.Data.([]interface{})
	assert.Len(t, list, 1)
}
