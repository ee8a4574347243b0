// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

// Request classification. Every command falls into exactly one routing
// class; anything unlisted routes to the semantic/primary branch. The
// default is deterministic: requests are never dropped for being
// unclassifiable.

// syntaxCommands are answerable without program-wide semantic analysis
// and always go to the syntax branch when one exists.
var syntaxCommands = map[string]struct{}{
	"navtree":            {},
	"navtree-full":       {},
	"getOutliningSpans":  {},
	"jsxClosingTag":      {},
	"selectionRange":     {},
	"format":             {},
	"formatonkey":        {},
	"docCommentTemplate": {},
}

// sharedCommands mutate document state and must reach every branch so
// all processes agree on buffer contents.
var sharedCommands = map[string]struct{}{
	"change":     {},
	"close":      {},
	"open":       {},
	"updateOpen": {},
	"configure":  {},
}

// semanticCommands must never be answered by the syntax branch, even
// while the semantic branch is still loading.
var semanticCommands = map[string]struct{}{
	"geterr":           {},
	"geterrForProject": {},
	"projectInfo":      {},
	"configurePlugin":  {},
}

// diagnosticsCommands belong to the background error computation class
// and go to a dedicated diagnostics process when one exists.
var diagnosticsCommands = map[string]struct{}{
	"geterr":           {},
	"geterrForProject": {},
}

// IsSyntaxEligible reports whether command is answerable by a syntax
// process.
func IsSyntaxEligible(command string) bool {
	_, ok := syntaxCommands[command]
	return ok
}

// IsShared reports whether command must be broadcast to every branch.
func IsShared(command string) bool {
	_, ok := sharedCommands[command]
	return ok
}

// isSemanticOnly reports whether command is pinned to the semantic
// branch regardless of load state.
func isSemanticOnly(command string) bool {
	_, ok := semanticCommands[command]
	return ok
}

// IsDiagnostics reports whether command belongs to the background
// diagnostics class.
func IsDiagnostics(command string) bool {
	_, ok := diagnosticsCommands[command]
	return ok
}
