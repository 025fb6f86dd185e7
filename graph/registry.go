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
	"context"
	"fmt"
)

// Reporter receives progress messages from a running strategy. The executor
// forwards them to the node's transient content without altering its status.
type Reporter interface {
	Report(msg string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(msg string)

// Report implements Reporter.
func (f ReporterFunc) Report(msg string) { f(msg) }

// Call is everything a strategy sees when its node is dispatched.
type Call struct {
	// Node is a snapshot of the node taken after the reset phase.
	Node *Node
	// Inputs maps input port ids to the value published by the connected
	// output port. A connected port whose source produced nothing maps to nil.
	Inputs map[string]any
	// Progress reports transient progress. Never nil.
	Progress Reporter
	// RunID identifies the run.
	RunID string
}

// Input returns the value wired into the node's port with the given suffix.
func (c *Call) Input(suffix string) any {
	return c.Inputs[PortID(c.Node.ID, suffix)]
}

// Strategy executes one node type.
type Strategy interface {
	Execute(ctx context.Context, call *Call) (any, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, call *Call) (any, error)

// Execute implements Strategy.
func (f StrategyFunc) Execute(ctx context.Context, call *Call) (any, error) {
	return f(ctx, call)
}

// Registry maps node types to strategies. It is immutable once built.
type Registry struct {
	strategies map[NodeType]Strategy
}

// NewRegistry copies strategies into an immutable registry. Unknown node
// types are rejected.
func NewRegistry(strategies map[NodeType]Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[NodeType]Strategy, len(strategies))}
	for nt, s := range strategies {
		if !nt.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, nt)
		}
		if s == nil {
			return nil, fmt.Errorf("nil strategy for node type %s", nt)
		}
		r.strategies[nt] = s
	}
	return r, nil
}

// Lookup returns the strategy for nt.
func (r *Registry) Lookup(nt NodeType) (Strategy, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.strategies[nt]
	return s, ok
}

// Types returns the registered node types in palette order.
func (r *Registry) Types() []NodeType {
	var out []NodeType
	for _, nt := range NodeTypes() {
		if _, ok := r.strategies[nt]; ok {
			out = append(out, nt)
		}
	}
	return out
}
