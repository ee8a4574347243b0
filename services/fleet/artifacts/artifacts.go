// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package artifacts allocates per-process log and trace directories.
//
// Allocation is best-effort: an unwritable filesystem yields "no directory"
// rather than an error, and the caller degrades to not emitting the
// corresponding backend argument.
package artifacts

import (
	"log/slog"
	"os"
	"path/filepath"
)

// DirectoryProvider hands out fresh directories for backend artifacts.
type DirectoryProvider interface {
	// NewDirectory returns a newly created directory, or ok=false when no
	// directory could be provided. Absence is a normal outcome.
	NewDirectory() (path string, ok bool)
}

// TempProvider allocates unique subdirectories under a base directory.
type TempProvider struct {
	base   string
	prefix string
}

// NewTempProvider returns a provider rooted at base. An empty base falls
// back to the system temp directory.
func NewTempProvider(base, prefix string) *TempProvider {
	if base == "" {
		base = os.TempDir()
	}
	return &TempProvider{base: base, prefix: prefix}
}

// NewDirectory creates a fresh unique directory under the base.
func (p *TempProvider) NewDirectory() (string, bool) {
	if err := os.MkdirAll(p.base, 0o755); err != nil {
		slog.Warn("artifact base directory unavailable",
			slog.String("base", p.base),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	dir, err := os.MkdirTemp(p.base, p.prefix+"-")
	if err != nil {
		slog.Warn("artifact directory allocation failed",
			slog.String("base", p.base),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	return dir, true
}

// NoneProvider never yields a directory. Used when the corresponding
// feature is disabled and in tests exercising the degraded path.
type NoneProvider struct{}

// NewDirectory always reports absence.
func (NoneProvider) NewDirectory() (string, bool) { return "", false }

// FixedProvider always yields the same directory, creating it on first
// use. Useful in tests asserting argument construction.
type FixedProvider struct {
	Dir string
}

// NewDirectory returns the fixed directory.
func (p FixedProvider) NewDirectory() (string, bool) {
	if p.Dir == "" {
		return "", false
	}
	if err := os.MkdirAll(filepath.Clean(p.Dir), 0o755); err != nil {
		return "", false
	}
	return p.Dir, true
}
