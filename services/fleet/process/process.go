// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package process is the process-creation boundary: it turns a startup
// contract into a live backend OS process with attached stdio.
//
// Creation failure is fatal to that process's construction and is
// propagated, never retried here. Restart policy belongs to the session
// owner.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/typefleet/typefleet/services/fleet/contract"
	"github.com/typefleet/typefleet/services/fleet/topology"
)

// ErrProcessExited indicates an operation against a process that already
// terminated.
var ErrProcessExited = errors.New("backend process exited")

// killGrace is how long Stop waits for a voluntary exit before killing.
const killGrace = 5 * time.Second

// Handle is one running backend process plus its I/O channel.
type Handle interface {
	// Stdin is the pipe requests are written to.
	Stdin() io.WriteCloser

	// Stdout is the pipe responses and events are read from.
	Stdout() io.Reader

	// PID returns the OS process ID.
	PID() int

	// Stop closes stdin to request a voluntary exit, then kills the
	// process if it does not exit within a grace period. Idempotent.
	Stop() error

	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// Spawner creates backend processes. The session owns exactly one and
// reuses it for every role it spawns.
type Spawner interface {
	Spawn(ctx context.Context, role topology.Role, c contract.Contract) (Handle, error)
}

// =============================================================================
// EXEC-BACKED IMPLEMENTATION
// =============================================================================

// ExecSpawner spawns the configured backend binary with the contract's
// argument list.
type ExecSpawner struct {
	// ServerPath is the backend entry point.
	ServerPath string

	// WorkDir is the working directory for spawned processes.
	WorkDir string
}

// Spawn starts one backend process.
//
// Outputs:
//
//	Handle - The live process
//	error - Non-nil if the binary is missing or the fork failed; the
//	        failure is the caller's to surface, there is no retry here.
func (s *ExecSpawner) Spawn(ctx context.Context, role topology.Role, c contract.Contract) (Handle, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	path, err := exec.LookPath(s.ServerPath)
	if err != nil {
		return nil, fmt.Errorf("backend binary %q not found: %w", s.ServerPath, err)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, path, c.Args...)
	cmd.Dir = s.WorkDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start backend process for role %s: %w", role, err)
	}

	slog.Info("backend process started",
		slog.String("role", role.String()),
		slog.Int("pid", cmd.Process.Pid),
		slog.Int("args", len(c.Args)),
	)

	p := &stdioProcess{
		role:   role,
		cmd:    cmd,
		cancel: cancel,
		stdin:  stdin,
		stdout: stdout,
		done:   make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

type stdioProcess struct {
	role   topology.Role
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdin  io.WriteCloser
	stdout io.ReadCloser

	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// reap waits for process exit and closes done.
func (p *stdioProcess) reap() {
	err := p.cmd.Wait()
	if err != nil {
		slog.Warn("backend process exited",
			slog.String("role", p.role.String()),
			slog.String("error", err.Error()),
		)
	}
	close(p.done)
}

func (p *stdioProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *stdioProcess) Stdout() io.Reader     { return p.stdout }
func (p *stdioProcess) PID() int              { return p.cmd.Process.Pid }

// Done is closed once the process has exited.
func (p *stdioProcess) Done() <-chan struct{} { return p.done }

// Stop requests a voluntary exit and escalates to kill after a grace
// period. Safe to call more than once.
func (p *stdioProcess) Stop() error {
	p.stopOnce.Do(func() {
		_ = p.stdin.Close()

		select {
		case <-p.done:
		case <-time.After(killGrace):
			slog.Warn("backend process did not exit, killing",
				slog.String("role", p.role.String()),
				slog.Int("pid", p.cmd.Process.Pid),
			)
			p.stopErr = p.cmd.Process.Kill()
			<-p.done
		}
		p.cancel()
	})
	return p.stopErr
}
