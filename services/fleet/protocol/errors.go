// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend communication.
var (
	// ErrConnClosed indicates the connection was closed locally.
	ErrConnClosed = errors.New("backend connection closed")

	// ErrBackendExited indicates the backend process ended its stream.
	ErrBackendExited = errors.New("backend process exited")

	// ErrRequestTimeout indicates the caller's context expired while
	// waiting for a response.
	ErrRequestTimeout = errors.New("backend request timeout")
)

// BackendError is a command failure reported by the backend itself
// (a response with success=false).
type BackendError struct {
	// Command is the command that failed.
	Command string

	// Message is the backend's failure description.
	Message string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected command %q", e.Command)
	}
	return fmt.Sprintf("backend rejected command %q: %s", e.Command, e.Message)
}
