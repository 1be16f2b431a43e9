// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wingedpig/gantry/internal/devserver"
)

// Response is the standard API response wrapper.
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
	Meta  *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo contains response metadata.
type MetaInfo struct {
	Timestamp time.Time `json:"timestamp"`
}

// Common error codes
const (
	ErrNotFound      = "NOT_FOUND"
	ErrBadRequest    = "BAD_REQUEST"
	ErrInternalError = "INTERNAL_ERROR"
	ErrServerError   = "SERVER_ERROR"
)

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	resp := Response{
		Data: data,
		Meta: &MetaInfo{Timestamp: time.Now()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	resp := Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		Meta: &MetaInfo{Timestamp: time.Now()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteDevServerError maps a controller error to an HTTP response,
// preserving its stable code.
func WriteDevServerError(w http.ResponseWriter, err error) {
	code := devserver.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case devserver.CodeConfiguration, devserver.CodeUnsupportedRuntime:
		status = http.StatusBadRequest
	case devserver.CodeNotStarted:
		status = http.StatusConflict
	case devserver.CodeHeadlessUnsupported:
		status = http.StatusUnprocessableEntity
	case devserver.CodeServerCloseTimeout:
		status = http.StatusGatewayTimeout
	case devserver.CodeTunnel:
		status = http.StatusBadGateway
	case "":
		WriteError(w, status, ErrServerError, err.Error())
		return
	}
	WriteError(w, status, string(code), err.Error())
}
