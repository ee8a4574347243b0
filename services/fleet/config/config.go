// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config defines the runtime configuration surface consumed by the
// fleet orchestrator: which backend binary to run, how the syntax server is
// selected, and which per-process artifacts (logs, traces) are requested.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// SyntaxServerMode controls whether a dedicated syntax process is used.
type SyntaxServerMode string

const (
	// SyntaxServerAuto lets the engine version decide.
	SyntaxServerAuto SyntaxServerMode = "auto"

	// SyntaxServerAlways forces a syntax-only fleet.
	SyntaxServerAlways SyntaxServerMode = "always"

	// SyntaxServerNever forces a single combined process.
	SyntaxServerNever SyntaxServerMode = "never"
)

// LogLevel is the backend server log verbosity. LogOff disables backend
// logging entirely; any other value requests a log directory.
type LogLevel string

const (
	LogOff         LogLevel = "off"
	LogTerse       LogLevel = "terse"
	LogNormal      LogLevel = "normal"
	LogRequestTime LogLevel = "requesttime"
	LogVerbose     LogLevel = "verbose"
)

// Enabled reports whether backend logging is requested.
func (l LogLevel) Enabled() bool {
	return l != "" && l != LogOff
}

// ServiceConfig is the per-session configuration surface.
//
// All fields are read once when a session starts; the session never
// observes later mutation.
type ServiceConfig struct {
	// ServerPath is the backend server entry point handed to the spawner.
	ServerPath string `yaml:"server_path" validate:"required"`

	// EngineVersion optionally pins the backend engine version. Empty
	// means "use the bundled engine".
	EngineVersion string `yaml:"engine_version"`

	// SocketPath, when set, switches the session into direct
	// single-connection mode: one process, no companion processes.
	SocketPath string `yaml:"socket_path"`

	// UseSyntaxServer selects the syntax-server preference.
	UseSyntaxServer SyntaxServerMode `yaml:"use_syntax_server" validate:"oneof=auto always never"`

	// EnableProjectDiagnostics requests a dedicated diagnostics process.
	EnableProjectDiagnostics bool `yaml:"enable_project_diagnostics"`

	// DisableAutomaticTypeAcquisition turns off background typings install.
	DisableAutomaticTypeAcquisition bool `yaml:"disable_automatic_type_acquisition"`

	// LogLevel is the backend log verbosity (LogOff disables logging).
	LogLevel LogLevel `yaml:"log_level" validate:"oneof=off terse normal requesttime verbose"`

	// EnableTracing requests a per-process trace directory.
	EnableTracing bool `yaml:"enable_tracing"`

	// NpmLocation is an external package-manager binary, if configured.
	NpmLocation string `yaml:"npm_location"`

	// Locale is passed to the backend; empty falls back to a fixed default.
	Locale string `yaml:"locale"`

	// Plugins are the registered backend plugins, in load order.
	Plugins []PluginConfig `yaml:"plugins" validate:"dive"`

	// AdminAddr is the listen address of the admin/status HTTP surface.
	AdminAddr string `yaml:"admin_addr"`
}

// PluginConfig describes one registered backend plugin.
type PluginConfig struct {
	// Name is the plugin module name handed to the backend.
	Name string `yaml:"name" validate:"required"`

	// Path is the on-disk install location used for probing.
	Path string `yaml:"path"`

	// EnableForWorkspaceVersions opts the plugin into running under
	// workspace-pinned engine versions, not just the bundled one.
	EnableForWorkspaceVersions bool `yaml:"enable_for_workspace_versions"`
}

// Default returns the configuration used when the config file is absent.
func Default() ServiceConfig {
	return ServiceConfig{
		ServerPath:      "tsserver",
		UseSyntaxServer: SyntaxServerAuto,
		LogLevel:        LogOff,
		AdminAddr:       "127.0.0.1:7335",
	}
}

var validate = validator.New()

// Validate checks structural validity. It does not consult the filesystem;
// a missing server binary surfaces at spawn time, not here.
func (c *ServiceConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid fleet configuration: %w", err)
	}
	return nil
}
