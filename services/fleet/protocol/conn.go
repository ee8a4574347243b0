// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package protocol implements the backend wire contract: Content-Length
// framed JSON messages over the process's stdio, with request/response
// correlation by sequence number and an event stream for notifications.
package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// =============================================================================
// CONNECTION
// =============================================================================

// Conn frames and correlates messages to one backend process.
//
// Description:
//
//	Writes requests with Content-Length headers and matches responses to
//	pending requests by request_seq. Backend events are delivered on the
//	Events channel. Requests in flight when the connection closes fail
//	with ErrConnClosed; a response arriving after its request was given
//	up on is dropped silently (late results are tolerated, not errors).
//
// Thread Safety:
//
//	Safe for concurrent use. Multiple goroutines may execute requests and
//	send notifications simultaneously; ReadLoop must run in exactly one
//	goroutine.
type Conn struct {
	reader    *bufio.Reader
	writer    io.Writer
	writeMu   sync.Mutex
	pending   map[int64]chan Response
	pendingMu sync.Mutex
	events    chan Event
	closed    atomic.Bool
}

// NewConn creates a connection over the given reader (backend stdout)
// and writer (backend stdin).
func NewConn(r io.Reader, w io.Writer) *Conn {
	var reader *bufio.Reader
	if r != nil {
		reader = bufio.NewReader(r)
	}
	return &Conn{
		reader:  reader,
		writer:  w,
		pending: make(map[int64]chan Response),
		events:  make(chan Event, 64),
	}
}

// Events returns the backend event stream. The channel is closed when
// ReadLoop returns. Consumers must drain it; an undrained stream stalls
// the read loop rather than dropping events.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Execute sends a request and waits for the matching response.
//
// Inputs:
//
//	ctx - Context bounding the wait; expiry yields ErrRequestTimeout
//	req - The request; req.Seq must be unique among in-flight requests
//
// Outputs:
//
//	*Response - The backend's response (Success true)
//	error - ErrConnClosed, ErrRequestTimeout, write errors, or a
//	        *BackendError when the backend reports success=false
func (c *Conn) Execute(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	respCh := make(chan Response, 1)
	c.pendingMu.Lock()
	c.pending[req.Seq] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.Seq)
		c.pendingMu.Unlock()
	}()

	if err := c.writeMessage(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, ctx.Err())
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrConnClosed
		}
		if !resp.Success {
			return nil, &BackendError{Command: resp.Command, Message: resp.Message}
		}
		return &resp, nil
	}
}

// Notify sends a request for which the backend produces no response
// (e.g. open, close, change).
func (c *Conn) Notify(req *Request) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.writeMessage(req)
}

// writeMessage marshals and writes one framed message.
func (c *Conn) writeMessage(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := c.writer.Write([]byte(header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// =============================================================================
// READ LOOP
// =============================================================================

// ReadLoop reads messages from the backend until the stream ends or ctx
// is cancelled. Responses are matched to pending requests; events go to
// the Events channel. Run in a dedicated goroutine.
func (c *Conn) ReadLoop(ctx context.Context) error {
	if c.reader == nil {
		return fmt.Errorf("no reader configured")
	}
	defer close(c.events)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := c.readMessage()
		if err != nil {
			if c.closed.Load() {
				// Local close; stream EOF is expected.
				return nil
			}
			if err == io.EOF {
				return ErrBackendExited
			}
			return fmt.Errorf("read: %w", err)
		}

		if err := c.dispatch(ctx, msg); err != nil {
			return err
		}
	}
}

// readMessage reads one Content-Length framed message.
func (c *Conn) readMessage() (json.RawMessage, error) {
	var contentLength int

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)

		// Empty line marks end of headers.
		if line == "" {
			break
		}

		if strings.HasPrefix(line, "Content-Length:") {
			lenStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, err = strconv.Atoi(lenStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length value %q: %w", lenStr, err)
			}
			if contentLength < 0 {
				return nil, fmt.Errorf("negative Content-Length: %d", contentLength)
			}
		}
		// Other headers are ignored.
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing or zero Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// dispatch routes one received message by its type field.
func (c *Conn) dispatch(ctx context.Context, msg json.RawMessage) error {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		// Backend wrote something unparseable; skip the frame.
		return nil
	}

	switch env.Type {
	case TypeResponse:
		var resp Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			return nil
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.RequestSeq]
		c.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
				// Late duplicate; the waiter already got an answer.
			}
		}
		// No waiter: a late result after cancellation. Dropped.

	case TypeEvent:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			return nil
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close marks the connection closed and fails all pending requests.
// Does not close the underlying reader or writer. Idempotent.
func (c *Conn) Close() {
	if c.closed.Swap(true) {
		return
	}

	c.pendingMu.Lock()
	for seq, ch := range c.pending {
		close(ch)
		delete(c.pending, seq)
	}
	c.pendingMu.Unlock()
}
