// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package protocol

import "encoding/json"

// Message type discriminators on the wire.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Backend event names consulted by the routing layer.
const (
	// EventProjectLoadingFinish signals that the semantic process finished
	// loading the project. Drives the Loading→Loaded router transition.
	EventProjectLoadingFinish = "projectLoadingFinish"

	// Diagnostics event families emitted during background checking.
	EventSyntaxDiag     = "syntaxDiag"
	EventSemanticDiag   = "semanticDiag"
	EventSuggestionDiag = "suggestionDiag"
	EventConfigFileDiag = "configFileDiag"
)

// Request is a client-originated command. Seq is allocated by the caller
// and must be unique within the session.
type Request struct {
	// Seq is the request sequence number.
	Seq int64 `json:"seq"`

	// Type is always TypeRequest.
	Type string `json:"type"`

	// Command is the backend command name (e.g. "navtree", "geterr").
	Command string `json:"command"`

	// Arguments carries the command parameters.
	Arguments interface{} `json:"arguments,omitempty"`
}

// NewRequest builds a request for the given command.
func NewRequest(seq int64, command string, args interface{}) *Request {
	return &Request{Seq: seq, Type: TypeRequest, Command: command, Arguments: args}
}

// Response is the backend's answer to one request.
type Response struct {
	// Seq is the backend's own message sequence number.
	Seq int64 `json:"seq"`

	// Type is always TypeResponse.
	Type string `json:"type"`

	// Command echoes the request command.
	Command string `json:"command"`

	// RequestSeq identifies the request this response answers.
	RequestSeq int64 `json:"request_seq"`

	// Success reports whether the command succeeded.
	Success bool `json:"success"`

	// Message carries the failure description when Success is false.
	Message string `json:"message,omitempty"`

	// Body is the command result, left raw for the caller to decode.
	Body json.RawMessage `json:"body,omitempty"`
}

// Event is a backend-originated notification not tied to a request.
type Event struct {
	// Seq is the backend's own message sequence number.
	Seq int64 `json:"seq"`

	// Type is always TypeEvent.
	Type string `json:"type"`

	// Event is the event name.
	Event string `json:"event"`

	// Body is the event payload, left raw.
	Body json.RawMessage `json:"body,omitempty"`
}

// envelope is used to sniff the message type before full decoding.
type envelope struct {
	Type string `json:"type"`
}
