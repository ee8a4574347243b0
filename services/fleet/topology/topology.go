// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package topology decides how many backend processes a session spawns and
// what role each one plays.
//
// Selection is a pure, total classification: every combination of client
// capabilities, configuration, and engine version maps to exactly one
// topology. The decision runs once per session and is immutable afterwards.
package topology

import (
	"github.com/typefleet/typefleet/services/fleet/config"
	"github.com/typefleet/typefleet/services/fleet/version"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is the functional specialization of one backend process. It is
// fixed for the process lifetime and drives argument construction and
// server-class mapping.
type Role string

const (
	// RoleMain is the sole process of a Single topology.
	RoleMain Role = "main"

	// RoleSyntax answers syntax-eligible requests only.
	RoleSyntax Role = "syntax"

	// RoleSemantic answers full program-wide semantic requests.
	RoleSemantic Role = "semantic"

	// RoleDiagnostics computes background diagnostics exclusively.
	RoleDiagnostics Role = "diagnostics"
)

// String returns the role name.
func (r Role) String() string { return string(r) }

// =============================================================================
// CAPABILITIES
// =============================================================================

// Capability is a client-advertised ability.
type Capability string

// CapabilitySemantic indicates the client can issue semantic requests.
// It is the only capability this package consults.
const CapabilitySemantic Capability = "semantic"

// CapabilitySet is a queryable set of client capabilities.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether the capability is present.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// =============================================================================
// TOPOLOGY SELECTION
// =============================================================================

// Topology is the arrangement of backend processes for one session.
type Topology string

const (
	// Single runs one combined process with role Main.
	Single Topology = "single"

	// SeparateSyntax runs a syntax process next to a semantic process with
	// a fixed request-class split.
	SeparateSyntax Topology = "separate-syntax"

	// DynamicSeparateSyntax is SeparateSyntax plus dynamic routing: while
	// the semantic process is still loading the project, borderline
	// requests are answered by the syntax process.
	DynamicSeparateSyntax Topology = "dynamic-separate-syntax"

	// SyntaxOnly runs a single syntax process and nothing else.
	SyntaxOnly Topology = "syntax-only"
)

// String returns the topology name.
func (t Topology) String() string { return string(t) }

// Select maps client capabilities, configuration, and engine version to a
// topology. First match wins:
//
//  1. no semantic capability → SyntaxOnly
//  2. direct socket path configured → Single
//  3. syntax-server preference Always → SyntaxOnly, Never → Single,
//     Auto → by engine version against the separate-syntax and
//     dynamic-routing thresholds.
//
// Side-effect free and total: there is no error case.
func Select(caps CapabilitySet, cfg config.ServiceConfig, v version.Version) Topology {
	if !caps.Has(CapabilitySemantic) {
		return SyntaxOnly
	}
	if cfg.SocketPath != "" {
		return Single
	}
	switch cfg.UseSyntaxServer {
	case config.SyntaxServerAlways:
		return SyntaxOnly
	case config.SyntaxServerNever:
		return Single
	}
	// Auto (and any unset preference): gate on engine version.
	switch {
	case v.AtLeast(version.MinDynamicRouting):
		return DynamicSeparateSyntax
	case v.AtLeast(version.MinSeparateSyntax):
		return SeparateSyntax
	default:
		return Single
	}
}

// SeparateDiagnostics reports whether the session runs a dedicated
// diagnostics process next to its primary. Orthogonal to Select, except
// that direct socket mode excludes it by construction, and a diagnostics
// process only ever exists alongside a semantic-capable primary.
func SeparateDiagnostics(caps CapabilitySet, cfg config.ServiceConfig) bool {
	return caps.Has(CapabilitySemantic) &&
		cfg.EnableProjectDiagnostics &&
		cfg.SocketPath == ""
}

// Roles returns the process roles a topology spawns, in spawn order
// (syntax before semantic). The diagnostics role is appended by the
// session when SeparateDiagnostics holds; it is not part of the topology.
func (t Topology) Roles() []Role {
	switch t {
	case SyntaxOnly:
		return []Role{RoleSyntax}
	case SeparateSyntax, DynamicSeparateSyntax:
		return []Role{RoleSyntax, RoleSemantic}
	default:
		return []Role{RoleMain}
	}
}

// Dynamic reports whether the topology re-routes borderline requests
// while the semantic process loads the project.
func (t Topology) Dynamic() bool {
	return t == DynamicSeparateSyntax
}
