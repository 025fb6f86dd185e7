//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Errors.
var (
	ErrUnknownNodeType = errors.New("unknown node type")
	ErrNodeNotFound    = errors.New("node not found")
	ErrHandleNotOwned  = errors.New("handle is not owned by node")
	ErrSelfLoop        = errors.New("edge connects a node to itself")
	ErrRunInProgress   = errors.New("a run is already in progress")
	ErrNoStrategy      = errors.New("no strategy registered for node type")

	// ErrValidation marks a node whose required inputs were absent at dispatch time.
	ErrValidation = errors.New("validation error")
	// ErrServiceFailure marks a node whose external collaborator raised.
	ErrServiceFailure = errors.New("service failure")
	// ErrCycleDetected marks a run whose graph left nodes out of the execution order.
	ErrCycleDetected = errors.New("cycle detected")
)

// Error types used in events and metrics.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeService       = "service_failure"
	ErrorTypeCycle         = "cycle_detected"
	ErrorTypeCanceled      = "canceled"
	ErrorTypeNodeExecution = "node_execution_error"
)

// kindError attaches a taxonomy sentinel to a message without changing the
// message itself, so the text recorded on the node stays verbatim.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }

// Is matches the taxonomy sentinel.
func (e *kindError) Is(target error) bool { return target == e.kind }

// Unwrap returns the wrapped cause.
func (e *kindError) Unwrap() error { return e.err }

// Validationf returns a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return &kindError{kind: ErrValidation, err: fmt.Errorf(format, args...)}
}

// ServiceFailure marks err as raised by an external collaborator.
// A nil err stays nil.
func ServiceFailure(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrServiceFailure, err: err}
}

// NodeError is the failure of a single node, which aborts the run.
type NodeError struct {
	NodeID string
	Type   NodeType
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Type, e.Err)
}

// Unwrap returns the node's cause.
func (e *NodeError) Unwrap() error { return e.Err }

// CycleError lists the nodes the scheduler could not order.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %d node(s) never became ready: %s",
		ErrCycleDetected, len(e.Nodes), strings.Join(e.Nodes, ", "))
}

// Is matches ErrCycleDetected.
func (e *CycleError) Is(target error) bool { return target == ErrCycleDetected }

// ErrorType classifies err for events and metrics.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCycleDetected):
		return ErrorTypeCycle
	case errors.Is(err, ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, ErrServiceFailure):
		return ErrorTypeService
	case isContextErr(err):
		return ErrorTypeCanceled
	default:
		return ErrorTypeNodeExecution
	}
}
