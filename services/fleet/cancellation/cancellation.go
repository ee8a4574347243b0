// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cancellation provides the out-of-band signaling path used to
// request early termination of in-flight backend requests.
//
// The backend watches for marker files named after its cancellation pipe;
// touching "<pipe><seq>" asks it to abandon request <seq>. Signaling is
// fire-and-forget: it never blocks, requires no acknowledgment, and does
// not guarantee the in-flight operation stops before producing a response.
package cancellation

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/typefleet/typefleet/services/fleet/topology"
)

// Handle is a live cancellation channel scoped to exactly one process.
type Handle interface {
	// PipeName is the channel identifier handed to the backend at startup.
	PipeName() string

	// Cancel signals best-effort cancellation of request seq.
	Cancel(seq int64) error

	// Close releases the channel. Idempotent.
	Close() error
}

// Factory creates cancellation handles, one per spawned process.
type Factory interface {
	Create(role topology.Role) (Handle, error)
}

// =============================================================================
// PIPE-FILE IMPLEMENTATION
// =============================================================================

// PipeFactory creates file-based cancellation channels under a base
// directory, one subdirectory per handle.
type PipeFactory struct {
	base string
}

// NewPipeFactory returns a factory rooted at base; empty base falls back
// to the system temp directory.
func NewPipeFactory(base string) *PipeFactory {
	if base == "" {
		base = os.TempDir()
	}
	return &PipeFactory{base: base}
}

// Create allocates a fresh cancellation channel for one process role.
// The role only appears in the channel path for debuggability; uniqueness
// comes from the embedded UUID.
func (f *PipeFactory) Create(role topology.Role) (Handle, error) {
	dir := filepath.Join(f.base, fmt.Sprintf("tf-cancel-%s-%s", role, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cancellation directory for %s: %w", role, err)
	}
	return &pipeHandle{dir: dir, pipe: filepath.Join(dir, "request")}, nil
}

type pipeHandle struct {
	dir  string
	pipe string

	closeOnce sync.Once
	closeErr  error
}

// PipeName returns the path prefix the backend polls for markers.
func (h *pipeHandle) PipeName() string { return h.pipe }

// Cancel touches the marker file for seq. Errors are returned for
// logging only; callers must not treat them as request failure.
func (h *pipeHandle) Cancel(seq int64) error {
	f, err := os.OpenFile(fmt.Sprintf("%s%d", h.pipe, seq), os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("touch cancellation marker: %w", err)
	}
	return f.Close()
}

// Close removes the channel directory. Safe to call more than once.
func (h *pipeHandle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = os.RemoveAll(h.dir)
	})
	return h.closeErr
}
