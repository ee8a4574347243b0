// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	fleetconfig "github.com/typefleet/typefleet/services/fleet/config"
)

type TypefleetConfig struct {
	// Fleet is the per-session fleet configuration handed to the
	// orchestrator: server binary, syntax-server mode, diagnostics,
	// backend logging, plugins.
	Fleet fleetconfig.ServiceConfig `yaml:"fleet"`

	// Capabilities the daemon advertises on behalf of its client.
	// Known value: "semantic". An empty list means syntax-only.
	Capabilities []string `yaml:"capabilities"`

	// Logging configures the daemon's own structured logs (not the
	// backend server logs, which fleet.log_level controls).
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry configures traces and metrics export.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // empty disables file logging
	JSON  bool   `yaml:"json"`
	Quiet bool   `yaml:"quiet"`
}

type TelemetryConfig struct {
	// TraceExporter can be "otlp", "stdout", or "none".
	TraceExporter string `yaml:"trace_exporter"`

	// MetricExporter can be "prometheus", "stdout", or "none".
	MetricExporter string `yaml:"metric_exporter"`

	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

func DefaultConfig() TypefleetConfig {
	return TypefleetConfig{
		Fleet:        fleetconfig.Default(),
		Capabilities: []string{"semantic"},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.typefleet/logs",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
	}
}
