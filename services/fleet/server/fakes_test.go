// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/typefleet/typefleet/services/fleet/protocol"
)

// fakeBranch is a scriptable logical server used to exercise routers
// without real processes.
type fakeBranch struct {
	name string
	kind Kind

	mu        sync.Mutex
	executed  []string
	notified  []string
	cancelled []int64

	// block, when non-nil, is received from before Execute responds.
	block chan struct{}

	events     chan protocol.Event
	eventsOnce sync.Once

	terminateOnce sync.Once
	terminations  int
}

func newFakeBranch(name string, kind Kind) *fakeBranch {
	return &fakeBranch{
		name:   name,
		kind:   kind,
		events: make(chan protocol.Event, 16),
	}
}

func (f *fakeBranch) Execute(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	f.mu.Lock()
	f.executed = append(f.executed, req.Command)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &protocol.Response{
		Type:       protocol.TypeResponse,
		Command:    req.Command,
		RequestSeq: req.Seq,
		Success:    true,
		Body:       json.RawMessage(`{"answeredBy":"` + f.name + `"}`),
	}, nil
}

func (f *fakeBranch) Notify(req *protocol.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, req.Command)
	return nil
}

func (f *fakeBranch) Cancel(seq int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, seq)
	return true
}

func (f *fakeBranch) Events() <-chan protocol.Event { return f.events }

func (f *fakeBranch) Kind() Kind { return f.kind }

func (f *fakeBranch) Terminate() error {
	f.terminateOnce.Do(func() {
		f.mu.Lock()
		f.terminations++
		f.mu.Unlock()
		f.closeEvents()
	})
	return nil
}

// emit injects a synthetic backend event.
func (f *fakeBranch) emit(name string) {
	f.events <- protocol.Event{Type: protocol.TypeEvent, Event: name}
}

// closeEvents ends the event stream, simulating process exit.
func (f *fakeBranch) closeEvents() {
	f.eventsOnce.Do(func() { close(f.events) })
}

func (f *fakeBranch) executedCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.executed))
	copy(out, f.executed)
	return out
}

func (f *fakeBranch) notifiedCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.notified))
	copy(out, f.notified)
	return out
}

func (f *fakeBranch) cancelledSeqs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.cancelled))
	copy(out, f.cancelled)
	return out
}
