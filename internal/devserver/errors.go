// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error kind.
type Code string

const (
	// CodeConfiguration marks a missing or invalid start option.
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	// CodeHeadlessUnsupported marks an operation unavailable on a
	// synthesized headless instance.
	CodeHeadlessUnsupported Code = "HEADLESS_UNSUPPORTED"
	// CodeServerCloseTimeout marks a server close that exceeded its
	// bounded wait.
	CodeServerCloseTimeout Code = "SERVER_CLOSE_TIMEOUT"
	// CodeTunnel marks a tunnel start or stop failure.
	CodeTunnel Code = "TUNNEL_ERROR"
	// CodeNotStarted marks platform interaction attempted before the
	// server has a resolved port.
	CodeNotStarted Code = "DEV_SERVER_NOT_STARTED"
	// CodeUnsupportedRuntime marks a custom-runtime open requested in a
	// non-custom context.
	CodeUnsupportedRuntime Code = "UNSUPPORTED_RUNTIME"
)

// Error is a dev-server error with a stable code and a human message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates an error with the given code.
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a code.
func WrapError(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the code from an error chain, or empty if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
