// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cliconfig "github.com/typefleet/typefleet/cmd/typefleet/config"
	"github.com/typefleet/typefleet/pkg/logging"
	"github.com/typefleet/typefleet/services/fleet/admin"
	"github.com/typefleet/typefleet/services/fleet/artifacts"
	"github.com/typefleet/typefleet/services/fleet/cancellation"
	fleetconfig "github.com/typefleet/typefleet/services/fleet/config"
	"github.com/typefleet/typefleet/services/fleet/plugins"
	"github.com/typefleet/typefleet/services/fleet/process"
	"github.com/typefleet/typefleet/services/fleet/session"
	"github.com/typefleet/typefleet/services/fleet/telemetry"
	"github.com/typefleet/typefleet/services/fleet/topology"
)

// shutdownTimeout bounds the drain of the admin server and telemetry
// exporters on exit.
const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg := cliconfig.Global
	applyFlagOverrides(&cfg.Fleet)
	if err := cfg.Fleet.Validate(); err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "typefleet",
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Quiet,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "typefleet",
		ServiceVersion: daemonVersion,
		Environment:    telemetry.DefaultConfig().Environment,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	sess := session.New(session.Options{
		Capabilities: capabilitiesFromConfig(cfg.Capabilities),
		Config:       cfg.Fleet,
		Spawner:      &process.ExecSpawner{ServerPath: cfg.Fleet.ServerPath},
		Cancellation: cancellation.NewPipeFactory(""),
		LogDirs:      logDirProvider(cfg.Fleet),
		TraceDirs:    traceDirProvider(cfg.Fleet),
		Plugins:      plugins.FromConfig(cfg.Fleet.Plugins),
	})

	root, err := sess.Start(ctx)
	if err != nil {
		var partial *session.PartialFailureError
		if !errors.As(err, &partial) {
			return fmt.Errorf("start session: %w", err)
		}
		slog.Warn("session degraded, continuing without dedicated process",
			slog.String("role", partial.Role.String()),
			slog.String("error", partial.Err.Error()),
		)
	}
	_ = root // requests arrive over the client transport, not this command

	adm := admin.New(cfg.Fleet.AdminAddr, sess)
	admErr := make(chan error, 1)
	go func() { admErr <- adm.Run() }()

	slog.Info("typefleet running",
		slog.String("session", sess.ID()),
		slog.String("topology", sess.Topology().String()),
	)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-admErr:
		if err != nil {
			slog.Error("admin server failed", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := adm.Shutdown(shutdownCtx); err != nil {
		slog.Warn("admin shutdown", slog.String("error", err.Error()))
	}
	if err := sess.Close(); err != nil {
		slog.Warn("session close", slog.String("error", err.Error()))
	}
	if err := telemetryShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown", slog.String("error", err.Error()))
	}
	return nil
}

// applyFlagOverrides lets serve flags win over the config file.
func applyFlagOverrides(fc *fleetconfig.ServiceConfig) {
	if serverPath != "" {
		fc.ServerPath = serverPath
	}
	if engineVersion != "" {
		fc.EngineVersion = engineVersion
	}
	if adminAddr != "" {
		fc.AdminAddr = adminAddr
	}
	if syntaxMode != "" {
		fc.UseSyntaxServer = fleetconfig.SyntaxServerMode(syntaxMode)
	}
}

func capabilitiesFromConfig(names []string) topology.CapabilitySet {
	caps := make([]topology.Capability, 0, len(names))
	for _, n := range names {
		caps = append(caps, topology.Capability(n))
	}
	return topology.NewCapabilitySet(caps...)
}

func logDirProvider(fc fleetconfig.ServiceConfig) artifacts.DirectoryProvider {
	if !fc.LogLevel.Enabled() {
		return artifacts.NoneProvider{}
	}
	return artifacts.NewTempProvider("", "typefleet-log")
}

func traceDirProvider(fc fleetconfig.ServiceConfig) artifacts.DirectoryProvider {
	if !fc.EnableTracing {
		return artifacts.NoneProvider{}
	}
	return artifacts.NewTempProvider("", "typefleet-trace")
}
