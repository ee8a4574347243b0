// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func TestConn_WriteMessage(t *testing.T) {
	t.Run("writes Content-Length header", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConn(nil, &buf)

		if err := c.writeMessage(NewRequest(1, "navtree", nil)); err != nil {
			t.Fatalf("writeMessage: %v", err)
		}
		if !strings.Contains(buf.String(), "Content-Length:") {
			t.Errorf("missing Content-Length header in: %s", buf.String())
		}
	})

	t.Run("writes request fields", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConn(nil, &buf)

		req := NewRequest(7, "format", map[string]string{"file": "a.ts"})
		if err := c.writeMessage(req); err != nil {
			t.Fatalf("writeMessage: %v", err)
		}

		out := buf.String()
		for _, want := range []string{`"seq":7`, `"type":"request"`, `"command":"format"`, `"file":"a.ts"`} {
			if !strings.Contains(out, want) {
				t.Errorf("missing %s in: %s", want, out)
			}
		}
	})
}

func TestConn_ReadMessage(t *testing.T) {
	t.Run("reads framed message", func(t *testing.T) {
		msg := `{"seq":1,"type":"response"}`
		c := NewConn(strings.NewReader(frame(msg)), nil)

		body, err := c.readMessage()
		if err != nil {
			t.Fatalf("readMessage: %v", err)
		}
		if string(body) != msg {
			t.Errorf("got %s, want %s", body, msg)
		}
	})

	t.Run("ignores extra headers", func(t *testing.T) {
		msg := `{"seq":1,"type":"response"}`
		input := fmt.Sprintf("Content-Length: %d\r\nContent-Type: application/json\r\n\r\n%s", len(msg), msg)
		c := NewConn(strings.NewReader(input), nil)

		body, err := c.readMessage()
		if err != nil {
			t.Fatalf("readMessage: %v", err)
		}
		if string(body) != msg {
			t.Errorf("got %s, want %s", body, msg)
		}
	})

	t.Run("errors on missing Content-Length", func(t *testing.T) {
		c := NewConn(strings.NewReader("\r\n{}"), nil)
		if _, err := c.readMessage(); err == nil {
			t.Error("expected error for missing Content-Length")
		}
	})

	t.Run("EOF for empty input", func(t *testing.T) {
		c := NewConn(strings.NewReader(""), nil)
		if _, err := c.readMessage(); err != io.EOF {
			t.Errorf("expected EOF, got %v", err)
		}
	})
}

func TestConn_ExecuteRoundTrip(t *testing.T) {
	resp := `{"seq":1,"type":"response","command":"navtree","request_seq":5,"success":true,"body":{}}`
	var out bytes.Buffer
	c := NewConn(strings.NewReader(frame(resp)), &out)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.ReadLoop(context.Background())
	}()

	got, err := c.Execute(context.Background(), NewRequest(5, "navtree", nil))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.RequestSeq != 5 || !got.Success {
		t.Errorf("unexpected response: %+v", got)
	}

	<-done // EOF after one message
}

func TestConn_ExecuteBackendFailure(t *testing.T) {
	resp := `{"seq":1,"type":"response","command":"geterr","request_seq":3,"success":false,"message":"no project"}`
	var out bytes.Buffer
	c := NewConn(strings.NewReader(frame(resp)), &out)
	go func() { _ = c.ReadLoop(context.Background()) }()

	_, err := c.Execute(context.Background(), NewRequest(3, "geterr", nil))
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError, got %v", err)
	}
	if be.Command != "geterr" || be.Message != "no project" {
		t.Errorf("unexpected backend error: %+v", be)
	}
}

func TestConn_ExecuteContextExpiry(t *testing.T) {
	// Reader that never delivers a response.
	r, _ := io.Pipe()
	var out bytes.Buffer
	c := NewConn(r, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Execute(ctx, NewRequest(1, "quickinfo", nil))
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("expected ErrRequestTimeout, got %v", err)
	}
}

func TestConn_EventsDelivered(t *testing.T) {
	ev := `{"seq":1,"type":"event","event":"projectLoadingFinish"}`
	c := NewConn(strings.NewReader(frame(ev)), &bytes.Buffer{})

	go func() { _ = c.ReadLoop(context.Background()) }()

	select {
	case got, ok := <-c.Events():
		if !ok {
			t.Fatal("event channel closed before delivering event")
		}
		if got.Event != EventProjectLoadingFinish {
			t.Errorf("event = %q, want %q", got.Event, EventProjectLoadingFinish)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestConn_LateResponseDropped(t *testing.T) {
	// A response for a request nobody is waiting on must not panic or
	// block the read loop.
	late := `{"seq":1,"type":"response","command":"navtree","request_seq":99,"success":true}`
	next := `{"seq":2,"type":"event","event":"syntaxDiag"}`
	c := NewConn(strings.NewReader(frame(late)+frame(next)), &bytes.Buffer{})

	go func() { _ = c.ReadLoop(context.Background()) }()

	select {
	case got := <-c.Events():
		if got.Event != EventSyntaxDiag {
			t.Errorf("event = %q, want syntaxDiag", got.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read loop stalled on late response")
	}
}

func TestConn_CloseFailsPending(t *testing.T) {
	r, _ := io.Pipe()
	c := NewConn(r, &bytes.Buffer{})

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), NewRequest(1, "references", nil))
		errCh <- err
	}()

	// Let the request register before closing.
	time.Sleep(10 * time.Millisecond)
	c.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnClosed) {
			t.Errorf("expected ErrConnClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not released by Close")
	}

	// Second close is a no-op.
	c.Close()

	// Sends after close fail fast.
	if err := c.Notify(NewRequest(2, "open", nil)); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Notify after Close = %v, want ErrConnClosed", err)
	}
}
