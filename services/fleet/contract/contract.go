// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package contract builds the startup contract of one backend process:
// the exact argument list plus the log and trace artifact paths.
//
// Building is deterministic and total. Missing artifact directories and
// unset options degrade to omitted arguments, never to errors; the
// argument list is an opaque contract with the backend binary and the
// emission order is kept stable for reproducibility.
package contract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/typefleet/typefleet/services/fleet/artifacts"
	"github.com/typefleet/typefleet/services/fleet/cancellation"
	"github.com/typefleet/typefleet/services/fleet/config"
	"github.com/typefleet/typefleet/services/fleet/plugins"
	"github.com/typefleet/typefleet/services/fleet/topology"
	"github.com/typefleet/typefleet/services/fleet/version"
)

// defaultLocale is emitted when no locale is configured.
const defaultLocale = "en"

// logFileName is the file created inside a granted log directory.
const logFileName = "tsserver.log"

// Contract is the immutable startup contract for one backend process.
type Contract struct {
	// Args is the full ordered argument list.
	Args []string

	// LogFile is the backend log file path, empty when logging is off or
	// no log directory could be provided.
	LogFile string

	// TraceDir is the trace directory path, empty when tracing is off or
	// no directory could be provided.
	TraceDir string

	// CancellationPipe is the cancellation channel identifier, empty
	// when no channel was provided.
	CancellationPipe string
}

// Builder produces startup contracts for a resolved configuration and
// engine version. One builder serves all processes of a session.
type Builder struct {
	// Config is the session configuration.
	Config config.ServiceConfig

	// Version is the resolved engine version.
	Version version.Version

	// LogDirs provides fresh log directories; nil behaves as "never".
	LogDirs artifacts.DirectoryProvider

	// TraceDirs provides fresh trace directories; nil behaves as "never".
	TraceDirs artifacts.DirectoryProvider

	// Plugins is the plugin registry; nil behaves as empty.
	Plugins plugins.Registry

	// BuiltinProbeLocations are probe paths always offered to the
	// backend, ahead of any plugin paths.
	BuiltinProbeLocations []string
}

// Build produces the startup contract for one process role.
//
// Inputs:
//
//	role - The process role; drives mode and type-acquisition flags
//	cancel - The process's cancellation handle, or nil for none
//
// Outputs:
//
//	Contract - The argument list and artifact paths. Never fails.
func (b *Builder) Build(role topology.Role, cancel cancellation.Handle) Contract {
	var c Contract
	args := make([]string, 0, 16)

	// Server mode. The syntax process runs partial semantic mode on
	// engines that support it, pure syntax mode otherwise.
	if role == topology.RoleSyntax {
		if b.Version.AtLeast(version.MinPartialSemanticMode) {
			args = append(args, "--serverMode", "partialSemantic")
		} else {
			args = append(args, "--syntaxOnly")
		}
	}

	// Project rooting.
	if b.Version.AtLeast(version.MinInferredProjectPerRoot) {
		args = append(args, "--useInferredProjectPerProjectRoot")
	} else {
		args = append(args, "--useSingleInferredProject")
	}

	// Companion processes never acquire typings on their own.
	if b.Config.DisableAutomaticTypeAcquisition ||
		role == topology.RoleSyntax || role == topology.RoleDiagnostics {
		args = append(args, "--disableAutomaticTypingAcquisition")
	}

	if cancel != nil {
		c.CancellationPipe = cancel.PipeName()
		args = append(args, "--cancellationPipeName", c.CancellationPipe+"*")
	}

	// Logging: only when enabled AND a directory was actually granted.
	// A provider yielding nothing degrades to no log arguments; warning
	// the user is the caller's job.
	if b.Config.LogLevel.Enabled() && b.LogDirs != nil {
		if dir, ok := b.LogDirs.NewDirectory(); ok {
			c.LogFile = filepath.Join(dir, logFileName)
			args = append(args,
				"--logVerbosity", string(b.Config.LogLevel),
				"--logFile", c.LogFile,
			)
		}
	}

	// Tracing, symmetrically.
	if b.Config.EnableTracing && b.TraceDirs != nil {
		if dir, ok := b.TraceDirs.NewDirectory(); ok {
			c.TraceDir = dir
			args = append(args, "--traceDirectory", c.TraceDir)
		}
	}

	// Plugins. Both lists are emitted only when non-empty.
	names, probes := b.pluginArgs()
	if len(names) > 0 {
		args = append(args, "--globalPlugins", strings.Join(names, ","))
	}
	if len(probes) > 0 {
		args = append(args, "--pluginProbeLocations", strings.Join(probes, ","))
	}

	if b.Config.NpmLocation != "" {
		args = append(args, "--npmLocation", fmt.Sprintf("%q", b.Config.NpmLocation))
	}

	locale := b.Config.Locale
	if locale == "" {
		locale = defaultLocale
	}
	args = append(args, "--locale", locale)

	// Fixed tail flags, always last.
	args = append(args,
		"--noGetErrOnBackgroundUpdate",
		"--validateDefaultNpmLocation",
	)

	c.Args = args
	return c
}

// pluginArgs returns the plugin name list and the probe-location list
// (builtin paths first, then paths of eligible plugins).
//
// A plugin's path joins the probe list when the resolved engine is the
// bundled one, or when the plugin opted into workspace engine versions.
func (b *Builder) pluginArgs() (names, probes []string) {
	probes = append(probes, b.BuiltinProbeLocations...)

	if b.Plugins == nil {
		return nil, probes
	}
	for _, p := range b.Plugins.Plugins() {
		names = append(names, p.Name)
		if p.Path == "" {
			continue
		}
		if b.Version.IsBundled() || p.EnableForWorkspaceVersions {
			probes = append(probes, p.Path)
		}
	}
	return names, probes
}
