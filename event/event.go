//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package event provides the events a workflow run emits while it executes.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type is the kind of a run event.
type Type string

// Event type constants.
const (
	TypeRunStart     Type = "run.start"
	TypeRunComplete  Type = "run.complete"
	TypeRunError     Type = "run.error"
	TypeNodeStart    Type = "node.start"
	TypeNodeProgress Type = "node.progress"
	TypeNodeComplete Type = "node.complete"
	TypeNodeError    Type = "node.error"
)

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}

// Terminal reports whether no event follows this one in the run.
func (t Type) Terminal() bool {
	return t == TypeRunComplete || t == TypeRunError
}

// Error carries a failure of a node or of the whole run.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Event is one observation of a run.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`
	// RunID is the run the event belongs to.
	RunID string `json:"runId"`
	// Author is the component that produced the event.
	Author string `json:"author"`
	// Type is the kind of the event.
	Type Type `json:"type"`
	// Timestamp is the creation time of the event.
	Timestamp time.Time `json:"timestamp"`
	// NodeID is set on node events.
	NodeID string `json:"nodeId,omitempty"`
	// NodeType is set on node events.
	NodeType string `json:"nodeType,omitempty"`
	// Status is the node status after the event.
	Status string `json:"status,omitempty"`
	// Message is the progress message of a node.progress event.
	Message string `json:"message,omitempty"`
	// Output is the output of a node.complete event.
	Output any `json:"output,omitempty"`
	// Error is set on node.error and run.error events.
	Error *Error `json:"error,omitempty"`
	// Order is the execution order, set on run.start.
	Order []string `json:"order,omitempty"`
}

// Option is a function that can be used to configure the Event.
type Option func(*Event)

// WithNode sets the node fields of the event.
func WithNode(id, nodeType, status string) Option {
	return func(e *Event) {
		e.NodeID = id
		e.NodeType = nodeType
		e.Status = status
	}
}

// WithMessage sets the progress message.
func WithMessage(msg string) Option {
	return func(e *Event) {
		e.Message = msg
	}
}

// WithOutput sets the node output.
func WithOutput(output any) Option {
	return func(e *Event) {
		e.Output = output
	}
}

// WithError sets the error details.
func WithError(errorType, message string) Option {
	return func(e *Event) {
		e.Error = &Error{Type: errorType, Message: message}
	}
}

// WithOrder sets the execution order.
func WithOrder(order []string) Option {
	return func(e *Event) {
		e.Order = append([]string(nil), order...)
	}
}

// New creates a new Event with generated ID and timestamp.
func New(runID, author string, t Type, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		RunID:     runID,
		Author:    author,
		Type:      t,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewErrorEvent creates a run.error event with the specified error details.
func NewErrorEvent(runID, author, errorType, errorMessage string) *Event {
	return New(runID, author, TypeRunError, WithError(errorType, errorMessage))
}

// Clone creates a copy of the event. Output is shared.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Error != nil {
		errCopy := *e.Error
		clone.Error = &errCopy
	}
	clone.Order = append([]string(nil), e.Order...)
	return &clone
}
