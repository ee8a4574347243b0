// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server presents one or more backend processes as a single
// logical analysis server.
//
// Three variants implement the same contract: ProcessServer wraps one
// process directly; SyntaxRouter composes a syntax process with a
// semantic process; DiagnosticsRouter composes a primary logical server
// with a dedicated diagnostics process. Routing servers own their child
// variants exclusively.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/typefleet/typefleet/services/fleet/cancellation"
	"github.com/typefleet/typefleet/services/fleet/contract"
	"github.com/typefleet/typefleet/services/fleet/process"
	"github.com/typefleet/typefleet/services/fleet/protocol"
	"github.com/typefleet/typefleet/services/fleet/topology"
	"github.com/typefleet/typefleet/services/fleet/version"
)

// =============================================================================
// LOGICAL SERVER CONTRACT
// =============================================================================

// Kind classifies a logical server by the request classes it can answer.
type Kind string

const (
	// KindSyntax answers syntax-eligible requests only.
	KindSyntax Kind = "syntax"

	// KindSemantic answers the full request surface.
	KindSemantic Kind = "semantic"
)

// KindForRole maps a process role to its server class: role Syntax is
// syntax-class, every other role is semantic-class.
func KindForRole(role topology.Role) Kind {
	if role == topology.RoleSyntax {
		return KindSyntax
	}
	return KindSemantic
}

// Server is the caller-visible logical analysis server.
//
// Description:
//
//	One Server may internally own one or two backend processes. Execute
//	blocks for the response; Notify is fire-and-forget for commands the
//	backend does not answer. Events merges the event streams of all
//	owned processes. Terminate tears down every owned process and is
//	idempotent.
//
// Thread Safety:
//
//	All implementations are safe for concurrent use. Multiple requests
//	may be in flight at once; response ordering is backend-determined.
type Server interface {
	// Execute routes a request and waits for its response.
	Execute(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

	// Notify routes a request for which no response is produced.
	Notify(req *protocol.Request) error

	// Cancel signals best-effort cancellation of the in-flight request
	// with the given seq. Returns false when the request is unknown or
	// no cancellation channel exists. Never blocks on the backend.
	Cancel(seq int64) bool

	// Events is the merged backend event stream. Closed on termination.
	Events() <-chan protocol.Event

	// Kind reports the server class.
	Kind() Kind

	// Terminate tears down all owned processes. Idempotent.
	Terminate() error
}

// =============================================================================
// PROCESS-BACKED SERVER
// =============================================================================

// ProcessServer satisfies the logical server contract with exactly one
// backend process.
type ProcessServer struct {
	role    topology.Role
	kind    Kind
	handle  process.Handle
	conn    *protocol.Conn
	cancel  cancellation.Handle
	logFile string
	version version.Version

	readCancel context.CancelFunc

	terminateOnce sync.Once
	terminateErr  error
	terminated    chan struct{}
}

// NewProcessServer wraps one spawned process. It takes ownership of the
// handle and the cancellation handle and starts the read loop.
func NewProcessServer(
	role topology.Role,
	h process.Handle,
	cancel cancellation.Handle,
	c contract.Contract,
	v version.Version,
) *ProcessServer {
	readCtx, readCancel := context.WithCancel(context.Background())
	s := &ProcessServer{
		role:       role,
		kind:       KindForRole(role),
		handle:     h,
		conn:       protocol.NewConn(h.Stdout(), h.Stdin()),
		cancel:     cancel,
		logFile:    c.LogFile,
		version:    v,
		readCancel: readCancel,
		terminated: make(chan struct{}),
	}
	go func() {
		err := s.conn.ReadLoop(readCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("backend read loop ended",
				slog.String("role", role.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
	return s
}

// Execute sends one request to the backend and waits for the response.
func (s *ProcessServer) Execute(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	select {
	case <-s.terminated:
		return nil, ErrServerTerminated
	default:
	}

	ctx, span := startRequestSpan(ctx, req.Command, s.role.String())
	defer span.End()

	start := time.Now()
	resp, err := s.conn.Execute(ctx, req)
	recordRequest(ctx, req.Command, s.role.String(), time.Since(start), err == nil)
	return resp, err
}

// Notify sends one request the backend does not answer.
func (s *ProcessServer) Notify(req *protocol.Request) error {
	select {
	case <-s.terminated:
		return ErrServerTerminated
	default:
	}
	return s.conn.Notify(req)
}

// Cancel signals the backend's cancellation channel for seq. Best
// effort: a response may still arrive afterwards and the caller must
// tolerate it.
func (s *ProcessServer) Cancel(seq int64) bool {
	if s.cancel == nil {
		return false
	}
	if err := s.cancel.Cancel(seq); err != nil {
		slog.Debug("cancellation signal failed",
			slog.String("role", s.role.String()),
			slog.Int64("seq", seq),
			slog.String("error", err.Error()),
		)
		return false
	}
	recordCancellation(context.Background(), s.role.String())
	return true
}

// Events returns the backend's event stream.
func (s *ProcessServer) Events() <-chan protocol.Event {
	return s.conn.Events()
}

// Kind reports the server class derived from the process role.
func (s *ProcessServer) Kind() Kind { return s.kind }

// Role returns the wrapped process's role.
func (s *ProcessServer) Role() topology.Role { return s.role }

// PID returns the wrapped process's OS pid.
func (s *ProcessServer) PID() int { return s.handle.PID() }

// LogFile returns the backend log file path, if one was contracted.
func (s *ProcessServer) LogFile() string { return s.logFile }

// Version returns the engine version this process runs.
func (s *ProcessServer) Version() version.Version { return s.version }

// Terminate releases the cancellation channel, closes the connection,
// and signals the process to exit. Calling it again is a no-op.
func (s *ProcessServer) Terminate() error {
	s.terminateOnce.Do(func() {
		close(s.terminated)

		if s.cancel != nil {
			if err := s.cancel.Close(); err != nil {
				slog.Warn("cancellation channel release failed",
					slog.String("role", s.role.String()),
					slog.String("error", err.Error()),
				)
			}
		}
		s.conn.Close()
		s.terminateErr = s.handle.Stop()
		s.readCancel()

		slog.Info("backend server terminated", slog.String("role", s.role.String()))
	})
	return s.terminateErr
}
