// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"context"
	"errors"
	"sync"

	"github.com/typefleet/typefleet/services/fleet/protocol"
)

// DiagnosticsRouter composes a primary logical server with a dedicated
// diagnostics-only process.
//
// Description:
//
//	Diagnostics-class requests go to the diagnostics branch; shared
//	document-state commands are mirrored to the diagnostics branch and
//	answered by the primary; everything else goes to the primary, which
//	may itself be a SyntaxRouter. There are no state transitions. When
//	no diagnostics process exists, this router is not constructed at
//	all: absence is structural, not a runtime fallback.
//
// Thread Safety:
//
//	Safe for concurrent use.
type DiagnosticsRouter struct {
	primary     Server
	diagnostics Server

	routes sync.Map // request seq → Server

	events chan protocol.Event
	done   chan struct{}
	pumpWg sync.WaitGroup

	terminateOnce sync.Once
	terminateErr  error
}

// NewDiagnosticsRouter composes the primary with the diagnostics branch.
func NewDiagnosticsRouter(primary, diagnostics Server) *DiagnosticsRouter {
	r := &DiagnosticsRouter{
		primary:     primary,
		diagnostics: diagnostics,
		events:      make(chan protocol.Event, 64),
		done:        make(chan struct{}),
	}
	r.pumpWg.Add(2)
	go r.pump(primary)
	go r.pump(diagnostics)
	go func() {
		r.pumpWg.Wait()
		close(r.events)
	}()
	return r
}

func (r *DiagnosticsRouter) pump(child Server) {
	defer r.pumpWg.Done()
	for ev := range child.Events() {
		select {
		case r.events <- ev:
		case <-r.done:
			return
		}
	}
}

// route picks the branch for a non-shared command. Unclassified
// requests deterministically go to the primary.
func (r *DiagnosticsRouter) route(command string) Server {
	if IsDiagnostics(command) {
		return r.diagnostics
	}
	return r.primary
}

// Execute routes one request and waits for its response.
func (r *DiagnosticsRouter) Execute(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	target := r.route(req.Command)
	if IsShared(req.Command) {
		// Keep the diagnostics process's view of open documents in
		// sync; the primary owns the response.
		_ = r.diagnostics.Notify(req)
		target = r.primary
	}

	r.routes.Store(req.Seq, target)
	defer r.routes.Delete(req.Seq)
	return target.Execute(ctx, req)
}

// Notify routes one response-less request; shared commands reach both
// branches.
func (r *DiagnosticsRouter) Notify(req *protocol.Request) error {
	if IsShared(req.Command) {
		diagErr := r.diagnostics.Notify(req)
		primErr := r.primary.Notify(req)
		return errors.Join(diagErr, primErr)
	}
	return r.route(req.Command).Notify(req)
}

// Cancel forwards the cancellation to the branch that received seq.
func (r *DiagnosticsRouter) Cancel(seq int64) bool {
	if target, ok := r.routes.Load(seq); ok {
		return target.(Server).Cancel(seq)
	}
	return false
}

// Events is the merged event stream of both branches.
func (r *DiagnosticsRouter) Events() <-chan protocol.Event {
	return r.events
}

// Kind reports semantic-class.
func (r *DiagnosticsRouter) Kind() Kind { return KindSemantic }

// Primary returns the wrapped primary logical server.
func (r *DiagnosticsRouter) Primary() Server { return r.primary }

// Terminate tears down both branches. Idempotent.
func (r *DiagnosticsRouter) Terminate() error {
	r.terminateOnce.Do(func() {
		close(r.done)
		r.terminateErr = errors.Join(r.primary.Terminate(), r.diagnostics.Terminate())
	})
	return r.terminateErr
}
