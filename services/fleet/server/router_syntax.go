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
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/typefleet/typefleet/services/fleet/protocol"
)

// LoadState is the one-shot state of a SyntaxRouter.
type LoadState int32

const (
	// StateLoading means the semantic branch has not yet reported
	// project-load completion.
	StateLoading LoadState = iota

	// StateLoaded means completion was observed. The transition is
	// one-way and irreversible for the session lifetime.
	StateLoaded
)

// String returns the state name.
func (s LoadState) String() string {
	if s == StateLoading {
		return "loading"
	}
	return "loaded"
}

// SyntaxRouter composes a syntax-only process and a semantic-capable
// process behind one logical server identity.
//
// Description:
//
//	Syntax-eligible requests always go to the syntax branch; requests
//	pinned to semantic analysis always go to the semantic branch; shared
//	document-state commands are mirrored to the syntax branch and
//	answered by the semantic branch. With dynamic routing enabled the
//	router starts in StateLoading and sends borderline (unclassified)
//	requests to the syntax branch until the semantic branch emits the
//	project-load-completion event; afterwards they go to the semantic
//	branch. Requests already in flight when the transition occurs keep
//	the branch they were dispatched to.
//
// Thread Safety:
//
//	Safe for concurrent use.
type SyntaxRouter struct {
	syntax   Server
	semantic Server
	dynamic  bool

	state  atomic.Int32
	routes sync.Map // request seq → Server

	events chan protocol.Event
	done   chan struct{}
	pumpWg sync.WaitGroup

	terminateOnce sync.Once
	terminateErr  error
}

// NewSyntaxRouter composes the two branches. With dynamic enabled the
// router starts in StateLoading; otherwise the split is fixed from the
// start and the load-completion event has no routing effect.
func NewSyntaxRouter(syntax, semantic Server, dynamic bool) *SyntaxRouter {
	r := &SyntaxRouter{
		syntax:   syntax,
		semantic: semantic,
		dynamic:  dynamic,
		events:   make(chan protocol.Event, 64),
		done:     make(chan struct{}),
	}
	if !dynamic {
		r.state.Store(int32(StateLoaded))
	}

	r.pumpWg.Add(2)
	go r.pump(syntax, false)
	go r.pump(semantic, true)
	go func() {
		r.pumpWg.Wait()
		close(r.events)
	}()
	return r
}

// pump forwards one branch's events into the merged stream. The
// semantic branch is additionally watched for load completion. A branch
// whose stream ends does not tear down the sibling; that decision
// belongs to the owning session.
func (r *SyntaxRouter) pump(child Server, watchLoad bool) {
	defer r.pumpWg.Done()
	for ev := range child.Events() {
		if watchLoad && ev.Event == protocol.EventProjectLoadingFinish {
			r.markLoaded()
		}
		select {
		case r.events <- ev:
		case <-r.done:
			return
		}
	}
}

// markLoaded performs the one-way Loading→Loaded transition.
func (r *SyntaxRouter) markLoaded() {
	if r.state.CompareAndSwap(int32(StateLoading), int32(StateLoaded)) {
		slog.Info("semantic branch finished loading, borderline requests promoted")
	}
}

// State returns the current load state.
func (r *SyntaxRouter) State() LoadState {
	return LoadState(r.state.Load())
}

// route picks the branch for a non-shared command.
func (r *SyntaxRouter) route(command string) Server {
	switch {
	case IsSyntaxEligible(command):
		return r.syntax
	case isSemanticOnly(command):
		return r.semantic
	case r.dynamic && r.State() == StateLoading:
		// Borderline request while the project is still loading.
		return r.syntax
	default:
		// Deterministic default: unclassified requests go semantic.
		return r.semantic
	}
}

// Execute routes one request and waits for its response.
func (r *SyntaxRouter) Execute(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	target := r.route(req.Command)
	if IsShared(req.Command) {
		// Mirror document state to the syntax branch; the semantic
		// branch owns the response.
		_ = r.syntax.Notify(req)
		target = r.semantic
	}

	r.routes.Store(req.Seq, target)
	defer r.routes.Delete(req.Seq)
	return target.Execute(ctx, req)
}

// Notify routes one response-less request; shared commands reach both
// branches.
func (r *SyntaxRouter) Notify(req *protocol.Request) error {
	if IsShared(req.Command) {
		synErr := r.syntax.Notify(req)
		semErr := r.semantic.Notify(req)
		return errors.Join(synErr, semErr)
	}
	return r.route(req.Command).Notify(req)
}

// Cancel forwards the cancellation to the branch that received seq.
func (r *SyntaxRouter) Cancel(seq int64) bool {
	if target, ok := r.routes.Load(seq); ok {
		return target.(Server).Cancel(seq)
	}
	return false
}

// Events is the merged event stream of both branches.
func (r *SyntaxRouter) Events() <-chan protocol.Event {
	return r.events
}

// Kind reports semantic-class: the router answers the full surface.
func (r *SyntaxRouter) Kind() Kind { return KindSemantic }

// Terminate tears down both branches. Idempotent.
func (r *SyntaxRouter) Terminate() error {
	r.terminateOnce.Do(func() {
		close(r.done)
		r.terminateErr = errors.Join(r.syntax.Terminate(), r.semantic.Terminate())
	})
	return r.terminateErr
}
