// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import "errors"

// Sentinel errors for logical servers.
var (
	// ErrServerTerminated indicates a request was routed to a server
	// that has already been torn down.
	ErrServerTerminated = errors.New("logical server terminated")
)
