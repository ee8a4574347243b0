// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session orchestrates the backend fleet of one logical client
// session: it selects the composite topology, builds each process's
// startup contract, spawns the processes sequentially, and composes them
// into the single logical server handed to the caller.
//
// The session exclusively owns every process it spawns. No process is
// shared across sessions, and restart policy lives outside this package.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/typefleet/typefleet/services/fleet/artifacts"
	"github.com/typefleet/typefleet/services/fleet/cancellation"
	"github.com/typefleet/typefleet/services/fleet/config"
	"github.com/typefleet/typefleet/services/fleet/contract"
	"github.com/typefleet/typefleet/services/fleet/plugins"
	"github.com/typefleet/typefleet/services/fleet/process"
	"github.com/typefleet/typefleet/services/fleet/server"
	"github.com/typefleet/typefleet/services/fleet/topology"
	"github.com/typefleet/typefleet/services/fleet/version"
)

// Options configures a session.
type Options struct {
	// Capabilities are the client's advertised capabilities.
	Capabilities topology.CapabilitySet

	// Config is the session configuration surface.
	Config config.ServiceConfig

	// Spawner creates backend processes.
	Spawner process.Spawner

	// Cancellation creates per-process cancellation channels.
	Cancellation cancellation.Factory

	// LogDirs and TraceDirs provide artifact directories. Either may be
	// nil to disable the corresponding arguments.
	LogDirs   artifacts.DirectoryProvider
	TraceDirs artifacts.DirectoryProvider

	// Plugins is the backend plugin registry. May be nil.
	Plugins plugins.Registry

	// BuiltinProbeLocations are probe paths always offered to the backend.
	BuiltinProbeLocations []string
}

// Session owns the backend fleet of one logical client session.
type Session struct {
	id   string
	opts Options

	version  version.Version
	topology topology.Topology

	mu     sync.Mutex
	root   server.Server
	procs  []*server.ProcessServer
	closed bool
}

// New creates a session; no processes are spawned until Start.
func New(opts Options) *Session {
	return &Session{id: uuid.NewString(), opts: opts}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start selects the topology, spawns the fleet, and returns the logical
// server.
//
// Description:
//
//	Processes are spawned sequentially (syntax, then semantic, then
//	diagnostics as applicable); they run concurrently once started and
//	spawn order implies no readiness dependency. A primary spawn
//	failure tears down anything already spawned and fails Start. A
//	diagnostics spawn failure returns the usable primary together with
//	a *PartialFailureError: the degrade decision belongs to the caller.
//
// Thread Safety:
//
//	Call once. Concurrent use of the returned server is safe.
func (s *Session) Start(ctx context.Context) (server.Server, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	s.version = version.Resolve(s.opts.Config.EngineVersion)
	s.topology = topology.Select(s.opts.Capabilities, s.opts.Config, s.version)
	sessionsStarted.WithLabelValues(s.topology.String()).Inc()

	slog.Info("session starting",
		slog.String("session", s.id),
		slog.String("topology", s.topology.String()),
		slog.String("engine", s.version.String()),
	)

	builder := &contract.Builder{
		Config:                s.opts.Config,
		Version:               s.version,
		LogDirs:               s.opts.LogDirs,
		TraceDirs:             s.opts.TraceDirs,
		Plugins:               s.opts.Plugins,
		BuiltinProbeLocations: s.opts.BuiltinProbeLocations,
	}

	// Spawn the primary fleet.
	var primaries []*server.ProcessServer
	for _, role := range s.topology.Roles() {
		ps, err := s.spawnOne(ctx, builder, role)
		if err != nil {
			s.teardown()
			return nil, fmt.Errorf("spawn %s process: %w", role, err)
		}
		primaries = append(primaries, ps)
	}

	var primary server.Server
	if len(primaries) == 2 {
		primary = server.NewSyntaxRouter(primaries[0], primaries[1], s.topology.Dynamic())
	} else {
		primary = primaries[0]
	}

	// Dedicated diagnostics process, when eligible. Failure here leaves
	// the primary usable; it is surfaced, not swallowed.
	if topology.SeparateDiagnostics(s.opts.Capabilities, s.opts.Config) {
		diag, err := s.spawnOne(ctx, builder, topology.RoleDiagnostics)
		if err != nil {
			s.setRoot(primary)
			return primary, &PartialFailureError{Role: topology.RoleDiagnostics, Err: err}
		}
		primary = server.NewDiagnosticsRouter(primary, diag)
	}

	s.setRoot(primary)
	return primary, nil
}

// spawnOne builds the startup contract for one role and spawns it.
func (s *Session) spawnOne(ctx context.Context, b *contract.Builder, role topology.Role) (*server.ProcessServer, error) {
	var handle cancellation.Handle
	if s.opts.Cancellation != nil {
		var err error
		handle, err = s.opts.Cancellation.Create(role)
		if err != nil {
			processSpawns.WithLabelValues(role.String(), "error").Inc()
			return nil, fmt.Errorf("cancellation channel for %s: %w", role, err)
		}
	}

	c := b.Build(role, handle)
	if s.opts.Config.LogLevel.Enabled() && c.LogFile == "" {
		slog.Warn("backend logging requested but no log directory available",
			slog.String("role", role.String()),
		)
	}

	start := time.Now()
	h, err := s.opts.Spawner.Spawn(ctx, role, c)
	if err != nil {
		if handle != nil {
			_ = handle.Close()
		}
		processSpawns.WithLabelValues(role.String(), "error").Inc()
		return nil, err
	}
	processSpawns.WithLabelValues(role.String(), "ok").Inc()
	spawnDuration.WithLabelValues(role.String()).Observe(time.Since(start).Seconds())

	ps := server.NewProcessServer(role, h, handle, c, s.version)
	s.mu.Lock()
	s.procs = append(s.procs, ps)
	s.mu.Unlock()
	return ps, nil
}

func (s *Session) setRoot(root server.Server) {
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()
}

// Server returns the logical server, or nil before Start.
func (s *Session) Server() server.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Topology returns the topology selected for this session.
func (s *Session) Topology() topology.Topology { return s.topology }

// Version returns the resolved engine version.
func (s *Session) Version() version.Version { return s.version }

// Processes returns the process-backed servers the session owns, in
// spawn order.
func (s *Session) Processes() []*server.ProcessServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*server.ProcessServer, len(s.procs))
	copy(out, s.procs)
	return out
}

// teardown terminates every spawned process. Terminate is idempotent,
// so overlapping with router-driven termination is harmless.
func (s *Session) teardown() error {
	s.mu.Lock()
	procs := make([]*server.ProcessServer, len(s.procs))
	copy(procs, s.procs)
	root := s.root
	s.mu.Unlock()

	var g errgroup.Group
	if root != nil {
		g.Go(root.Terminate)
	}
	for _, ps := range procs {
		g.Go(ps.Terminate)
	}
	return g.Wait()
}

// Close terminates the whole fleet. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	slog.Info("session closing", slog.String("session", s.id))
	return s.teardown()
}
