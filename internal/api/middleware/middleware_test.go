// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogging_PassesResponseThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"state":"running"}`))
	})

	req := httptest.NewRequest("GET", "/api/v1/server", nil)
	rec := httptest.NewRecorder()

	Logging(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"state":"running"}`, rec.Body.String())
}

func TestLogging_ErrorStatusPassesThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	req := httptest.NewRequest("POST", "/api/v1/server/start", nil)
	rec := httptest.NewRecorder()

	Logging(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecovery(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("bundler exploded")
	})

	req := httptest.NewRequest("POST", "/api/v1/server/start", nil)
	rec := httptest.NewRecorder()

	// Must not propagate the panic
	Recovery(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("GET", "/api/v1/server", nil)
	rec := httptest.NewRecorder()

	Recovery(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCORS(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/v1/server", nil)
	rec := httptest.NewRecorder()

	CORS(handler).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORS_Preflight(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for OPTIONS")
	})

	req := httptest.NewRequest("OPTIONS", "/api/v1/server/start", nil)
	rec := httptest.NewRecorder()

	CORS(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusRecorder_TracksBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{
		ResponseWriter: rec,
		status:         http.StatusOK,
	}

	n, err := sr.Write([]byte(`{"port":8081}`))
	assert.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, 13, sr.bytes)
}

func TestStatusRecorder_TracksStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{
		ResponseWriter: rec,
		status:         http.StatusOK,
	}

	sr.WriteHeader(http.StatusAccepted)
	assert.Equal(t, http.StatusAccepted, sr.status)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
