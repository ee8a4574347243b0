// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package version models the resolved backend engine version and the
// feature thresholds that gate topology and argument decisions.
//
// Thresholds are exported constants rather than ambient lookups so that
// callers receive them explicitly and tests can reason about them.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Bundled is the engine version shipped with typefleet. Version resolution
// falls back to it when the workspace does not pin its own engine.
var Bundled = MustParse("5.3.2")

// Feature thresholds for the backend engine.
//
// Each constant names the minimum engine version at which typefleet starts
// using the corresponding capability.
var (
	// MinInferredProjectPerRoot gates per-project-root inference.
	MinInferredProjectPerRoot = MustParse("2.7.0")

	// MinSeparateSyntax gates running a dedicated syntax process next to
	// the semantic process.
	MinSeparateSyntax = MustParse("3.4.0")

	// MinDynamicRouting gates re-routing syntax-eligible requests while the
	// semantic process is still loading the project.
	MinDynamicRouting = MustParse("4.0.0")

	// MinPartialSemanticMode gates starting the syntax process in partial
	// semantic mode instead of pure syntax-only mode.
	MinPartialSemanticMode = MustParse("4.0.0")
)

// Version is an immutable semantic version of the backend engine.
//
// The zero value is invalid; construct through Parse, MustParse, or Resolve.
type Version struct {
	// canonical form with leading "v", e.g. "v4.0.0"
	v string
}

// Parse parses a version string such as "4.0.0" or "v4.0.0".
//
// Outputs:
//
//	Version - The parsed version
//	error - Non-nil if the string is not a valid semantic version
func Parse(s string) (Version, error) {
	c := s
	if !strings.HasPrefix(c, "v") {
		c = "v" + c
	}
	if !semver.IsValid(c) {
		return Version{}, fmt.Errorf("invalid engine version %q", s)
	}
	return Version{v: semver.Canonical(c)}, nil
}

// MustParse parses a version string and panics on failure. Intended for
// package-level constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Resolve parses a workspace-provided version string, falling back to the
// bundled version when the string is empty or malformed. Resolution never
// fails: a session always runs against some engine version.
func Resolve(s string) Version {
	if s == "" {
		return Bundled
	}
	v, err := Parse(s)
	if err != nil {
		return Bundled
	}
	return v
}

// IsZero reports whether v is the invalid zero value.
func (v Version) IsZero() bool {
	return v.v == ""
}

// IsBundled reports whether v is the engine version shipped with typefleet.
func (v Version) IsBundled() bool {
	return v.v == Bundled.v
}

// Compare returns -1, 0, or +1 comparing v against other in semantic
// version order.
func (v Version) Compare(other Version) int {
	return semver.Compare(v.v, other.v)
}

// AtLeast reports whether v >= min.
func (v Version) AtLeast(min Version) bool {
	return v.Compare(min) >= 0
}

// Before reports whether v < other.
func (v Version) Before(other Version) bool {
	return v.Compare(other) < 0
}

// String returns the version without the canonical "v" prefix, matching
// the form the backend reports about itself.
func (v Version) String() string {
	return strings.TrimPrefix(v.v, "v")
}
