// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockServer creates a test server that returns the given response.
func mockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

// apiHandler creates a handler that returns a standard API response.
func apiHandler(data interface{}, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		resp := map[string]interface{}{
			"data": data,
		}
		json.NewEncoder(w).Encode(resp)
	}
}

// apiErrorHandler creates a handler that returns an API error.
func apiErrorHandler(code, message string, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		resp := map[string]interface{}{
			"error": map[string]string{
				"code":    code,
				"message": message,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestNew(t *testing.T) {
	c := New("http://localhost:1880")

	if c.BaseURL() != "http://localhost:1880" {
		t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), "http://localhost:1880")
	}

	if c.Version() != LatestVersion {
		t.Errorf("Version() = %q, want %q", c.Version(), LatestVersion)
	}

	// Test sub-clients are initialized
	if c.Server == nil {
		t.Error("Server client is nil")
	}
	if c.Bundler == nil {
		t.Error("Bundler client is nil")
	}
	if c.Events == nil {
		t.Error("Events client is nil")
	}
}

func TestNewWithOptions(t *testing.T) {
	t.Run("WithVersion", func(t *testing.T) {
		c := New("http://localhost:1880", WithVersion("2026-01-01"))
		if c.Version() != "2026-01-01" {
			t.Errorf("Version() = %q, want %q", c.Version(), "2026-01-01")
		}
	})

	t.Run("WithTimeout", func(t *testing.T) {
		c := New("http://localhost:1880", WithTimeout(60*time.Second))
		// We can't directly check the timeout, but we verify it doesn't panic
		if c == nil {
			t.Error("Client is nil")
		}
	})

	t.Run("WithHTTPClient", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := New("http://localhost:1880", WithHTTPClient(customClient))
		if c == nil {
			t.Error("Client is nil")
		}
	})

	t.Run("trailing slash removed", func(t *testing.T) {
		c := New("http://localhost:1880/")
		if c.BaseURL() != "http://localhost:1880" {
			t.Errorf("BaseURL() = %q, want trailing slash removed", c.BaseURL())
		}
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{
		Code:    "DEV_SERVER_NOT_STARTED",
		Message: "the dev server has not been started",
	}

	expected := "DEV_SERVER_NOT_STARTED: the dev server has not been started"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}

	// Test without code
	err2 := &APIError{
		Message: "Something went wrong",
	}
	if err2.Error() != "Something went wrong" {
		t.Errorf("Error() = %q, want %q", err2.Error(), "Something went wrong")
	}
}

func TestVersionHeader(t *testing.T) {
	var receivedVersion string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedVersion = r.Header.Get("Gantry-Version")
		apiHandler(ServerStatus{}, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL, WithVersion("2026-08-30"))
	_, _ = c.Server.Status(context.Background())

	if receivedVersion != "2026-08-30" {
		t.Errorf("Gantry-Version header = %q, want %q", receivedVersion, "2026-08-30")
	}
}

func TestServerClient_Status(t *testing.T) {
	status := ServerStatus{
		State:    ServerStateRunning,
		URL:      "http://192.168.1.20:8081",
		LocalURL: "http://localhost:8081",
		Port:     8081,
	}

	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/server" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		apiHandler(status, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL)
	result, err := c.Server.Status(context.Background())

	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if result.State != ServerStateRunning {
		t.Errorf("State = %q, want %q", result.State, ServerStateRunning)
	}

	if result.Port != 8081 {
		t.Errorf("Port = %d, want 8081", result.Port)
	}
}

func TestServerClient_Start(t *testing.T) {
	status := ServerStatus{
		State: ServerStateRunning,
		URL:   "http://localhost:8081",
		Port:  8081,
	}

	t.Run("without options", func(t *testing.T) {
		server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("Method = %s, want POST", r.Method)
			}
			if r.URL.Path != "/api/v1/server/start" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			apiHandler(status, http.StatusOK)(w, r)
		})
		defer server.Close()

		c := New(server.URL)
		result, err := c.Server.Start(context.Background(), nil)

		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		if result.State != ServerStateRunning {
			t.Errorf("State = %q, want %q", result.State, ServerStateRunning)
		}
	})

	t.Run("with options", func(t *testing.T) {
		server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			var opts StartOptions
			if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
				t.Errorf("failed to decode request body: %v", err)
			}
			if !opts.Headless {
				t.Error("Headless = false, want true")
			}
			if opts.Port != 8081 {
				t.Errorf("Port = %d, want 8081", opts.Port)
			}
			if !opts.ImageEditing {
				t.Error("ImageEditing = false, want true")
			}
			apiHandler(status, http.StatusOK)(w, r)
		})
		defer server.Close()

		c := New(server.URL)
		_, err := c.Server.Start(context.Background(), &StartOptions{Headless: true, Port: 8081, ImageEditing: true})

		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	})
}

func TestServerClient_Stop(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/v1/server/stop" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		apiHandler(ServerStatus{State: ServerStateStopped}, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL)
	err := c.Server.Stop(context.Background())

	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestServerClient_Restart(t *testing.T) {
	status := ServerStatus{
		State: ServerStateRunning,
		URL:   "http://localhost:8082",
		Port:  8082,
	}

	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/v1/server/restart" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		apiHandler(status, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL)
	result, err := c.Server.Restart(context.Background())

	if err != nil {
		t.Fatalf("Restart() error = %v", err)
	}

	if result.Port != 8082 {
		t.Errorf("Port = %d, want 8082", result.Port)
	}
}

func TestServerClient_Broadcast(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/v1/server/message" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req["method"] != "reload" {
			t.Errorf("method = %v, want reload", req["method"])
		}

		apiHandler(map[string]string{"method": "reload"}, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL)
	err := c.Server.Broadcast(context.Background(), MethodReload, nil)

	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
}

func TestServerClient_BroadcastHeadlessError(t *testing.T) {
	server := mockServer(t, apiErrorHandler("HEADLESS_UNSUPPORTED",
		"message broadcasting is unsupported on a headless server", http.StatusUnprocessableEntity))
	defer server.Close()

	c := New(server.URL)
	err := c.Server.Broadcast(context.Background(), MethodReload, nil)

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}

	if apiErr.Code != "HEADLESS_UNSUPPORTED" {
		t.Errorf("Code = %q, want %q", apiErr.Code, "HEADLESS_UNSUPPORTED")
	}
}

func TestServerClient_URLs(t *testing.T) {
	urls := URLs{
		Local:  "http://localhost:8081",
		LAN:    "http://192.168.1.20:8081",
		ExpoGo: "exp://192.168.1.20:8081",
	}

	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/server/urls" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		apiHandler(urls, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL)
	result, err := c.Server.URLs(context.Background())

	if err != nil {
		t.Fatalf("URLs() error = %v", err)
	}

	if result.Local != "http://localhost:8081" {
		t.Errorf("Local = %q, want %q", result.Local, "http://localhost:8081")
	}

	if result.ExpoGo != "exp://192.168.1.20:8081" {
		t.Errorf("ExpoGo = %q, want %q", result.ExpoGo, "exp://192.168.1.20:8081")
	}
}

func TestServerClient_Open(t *testing.T) {
	openResult := OpenResult{
		URL:     "exp://192.168.1.20:8081",
		Runtime: "expo",
		Device:  Device{ID: "emulator-5554", Name: "emulator-5554", Booted: true},
	}

	t.Run("stock runtime", func(t *testing.T) {
		server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("Method = %s, want POST", r.Method)
			}
			if r.URL.Path != "/api/v1/server/open" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}

			var req map[string]interface{}
			json.NewDecoder(r.Body).Decode(&req)
			if req["target"] != "emulator" {
				t.Errorf("target = %v, want emulator", req["target"])
			}
			if _, ok := req["custom"]; ok {
				t.Error("custom should not be set")
			}

			apiHandler(openResult, http.StatusOK)(w, r)
		})
		defer server.Close()

		c := New(server.URL)
		result, err := c.Server.Open(context.Background(), TargetEmulator, nil)

		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		if result.Runtime != "expo" {
			t.Errorf("Runtime = %q, want %q", result.Runtime, "expo")
		}

		if result.Device.ID != "emulator-5554" {
			t.Errorf("Device.ID = %q, want %q", result.Device.ID, "emulator-5554")
		}
	})

	t.Run("custom runtime with launch props", func(t *testing.T) {
		server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			var req map[string]interface{}
			json.NewDecoder(r.Body).Decode(&req)
			if req["custom"] != true {
				t.Error("custom = false, want true")
			}
			props, _ := req["launch_props"].(map[string]interface{})
			if props["launchMode"] != "most-recent" {
				t.Errorf("launch_props[launchMode] = %v, want most-recent", props["launchMode"])
			}
			apiHandler(openResult, http.StatusOK)(w, r)
		})
		defer server.Close()

		c := New(server.URL)
		_, err := c.Server.Open(context.Background(), TargetEmulator, &OpenOptions{
			Custom:      true,
			LaunchProps: map[string]string{"launchMode": "most-recent"},
		})

		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
	})
}

func TestBundlerClient_Status(t *testing.T) {
	status := BundlerStatus{
		State: BundlerStateRunning,
		PID:   1234,
		Port:  19000,
	}

	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/bundler" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		apiHandler(status, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL)
	result, err := c.Bundler.Status(context.Background())

	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if result.State != BundlerStateRunning {
		t.Errorf("State = %q, want %q", result.State, BundlerStateRunning)
	}

	if result.PID != 1234 {
		t.Errorf("PID = %d, want 1234", result.PID)
	}
}

func TestBundlerClient_Logs(t *testing.T) {
	logData := map[string]interface{}{
		"lines": []string{"line1", "line2", "line3"},
	}

	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/bundler/logs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("lines") != "100" {
			t.Errorf("lines param = %s, want 100", r.URL.Query().Get("lines"))
		}
		apiHandler(logData, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL)
	result, err := c.Bundler.Logs(context.Background(), 100)

	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}

	if len(result) != 3 {
		t.Errorf("Logs() returned %d lines, want 3", len(result))
	}
}

func TestEventClient_List(t *testing.T) {
	events := []Event{
		{
			ID:        "evt-1",
			Type:      "server.started",
			Timestamp: time.Now(),
		},
		{
			ID:        "evt-2",
			Type:      "server.stopped",
			Timestamp: time.Now(),
		},
	}

	t.Run("with limit", func(t *testing.T) {
		server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "50" {
				t.Errorf("limit = %q, want %q", r.URL.Query().Get("limit"), "50")
			}
			apiHandler(events, http.StatusOK)(w, r)
		})
		defer server.Close()

		c := New(server.URL)
		result, err := c.Events.List(context.Background(), &ListOptions{Limit: 50})

		if err != nil {
			t.Fatalf("List() error = %v", err)
		}

		if len(result) != 2 {
			t.Errorf("List() returned %d events, want 2", len(result))
		}
	})

	t.Run("with filters", func(t *testing.T) {
		server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			if query.Get("type") != "server.*" {
				t.Errorf("type = %q, want %q", query.Get("type"), "server.*")
			}
			if query.Get("since") == "" {
				t.Error("expected since parameter")
			}
			if query.Get("until") == "" {
				t.Error("expected until parameter")
			}
			apiHandler(events, http.StatusOK)(w, r)
		})
		defer server.Close()

		c := New(server.URL)
		now := time.Now()
		_, err := c.Events.List(context.Background(), &ListOptions{
			Types: []string{"server.*"},
			Since: now.Add(-1 * time.Hour),
			Until: now,
		})

		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
	})
}

func TestServerClient_Error(t *testing.T) {
	server := mockServer(t, apiErrorHandler("DEV_SERVER_NOT_STARTED",
		"the dev server has not been started", http.StatusConflict))
	defer server.Close()

	c := New(server.URL)
	_, err := c.Server.Restart(context.Background())

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}

	if apiErr.Code != "DEV_SERVER_NOT_STARTED" {
		t.Errorf("Code = %q, want %q", apiErr.Code, "DEV_SERVER_NOT_STARTED")
	}
}

func TestContextCancellation(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		apiHandler(ServerStatus{}, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := c.Server.Status(ctx)
	if err == nil {
		t.Error("expected error due to cancelled context")
	}
}

// invalidJSONHandler returns a handler that sends invalid JSON.
func invalidJSONHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": invalid json}`))
	}
}

func TestServerClient_InvalidJSON(t *testing.T) {
	server := mockServer(t, invalidJSONHandler())
	defer server.Close()

	c := New(server.URL)
	_, err := c.Server.Status(context.Background())
	if err == nil {
		t.Error("expected error for invalid JSON response")
	}
}

func TestEventClient_InvalidJSON(t *testing.T) {
	server := mockServer(t, invalidJSONHandler())
	defer server.Close()

	c := New(server.URL)
	_, err := c.Events.List(context.Background(), nil)
	if err == nil {
		t.Error("expected error for invalid JSON response")
	}
}
