// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"errors"
	"fmt"

	"github.com/typefleet/typefleet/services/fleet/topology"
)

// ErrSessionClosed indicates Start was called on a closed session.
var ErrSessionClosed = errors.New("session closed")

// PartialFailureError reports that the primary server started but a
// companion process did not. The session stays usable without the
// companion; whether to accept the degraded fleet is the caller's call.
type PartialFailureError struct {
	// Role is the companion that failed to start.
	Role topology.Role

	// Err is the underlying spawn failure.
	Err error
}

// Error implements the error interface.
func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("companion %s process failed to start: %v", e.Role, e.Err)
}

// Unwrap returns the underlying spawn failure.
func (e *PartialFailureError) Unwrap() error { return e.Err }
