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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	itelemetry "trpc.group/trpc-go/trpc-workflow-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
)

const (
	// AuthorExecutor is the author of the events emitted by the executor.
	AuthorExecutor = "workflow-executor"

	// StartingMessage is the progress placeholder set when a node starts.
	StartingMessage = "Starting..."
	// CycleMessage is recorded on nodes that could not be scheduled.
	CycleMessage = "dependency cycle: node never became ready"

	defaultChannelBufferSize = 256
	progressBufferSize       = 16
)

// Run outcomes reported in metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// Executor runs the graph held by a store, one run at a time.
type Executor struct {
	store             *Store
	registry          *Registry
	parallelism       int
	skipCycles        bool
	channelBufferSize int
	newRunID          func() string

	running atomic.Bool
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// Parallelism bounds the number of nodes running at once. Values below 2
	// run nodes sequentially in schedule order.
	Parallelism int
	// SkipCycles runs the acyclic part of a graph and leaves starved nodes idle
	// instead of failing the run.
	SkipCycles bool
	// ChannelBufferSize is the buffer size for event channels (default: 256).
	ChannelBufferSize int
	// RunIDGenerator allocates run ids (uuid by default).
	RunIDGenerator func() string
}

// WithParallelism sets the maximum number of concurrently running nodes.
func WithParallelism(n int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Parallelism = n
	}
}

// WithSkipCycles keeps running when the graph contains a cycle.
func WithSkipCycles() ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.SkipCycles = true
	}
}

// WithChannelBufferSize sets the buffer size for event channels.
func WithChannelBufferSize(size int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.ChannelBufferSize = size
	}
}

// WithRunIDGenerator overrides the run id allocator.
func WithRunIDGenerator(gen func() string) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.RunIDGenerator = gen
	}
}

// NewExecutor creates an executor over store dispatching through registry.
func NewExecutor(store *Store, registry *Registry, opts ...ExecutorOption) (*Executor, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	options := ExecutorOptions{
		ChannelBufferSize: defaultChannelBufferSize,
		RunIDGenerator:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.ChannelBufferSize < 0 {
		options.ChannelBufferSize = 0
	}
	return &Executor{
		store:             store,
		registry:          registry,
		parallelism:       options.Parallelism,
		skipCycles:        options.SkipCycles,
		channelBufferSize: options.ChannelBufferSize,
		newRunID:          options.RunIDGenerator,
	}, nil
}

// Result summarises a finished run.
type Result struct {
	RunID string
	// Order is the execution order computed by the scheduler.
	Order []string
	// Starved lists the nodes the scheduler could not order.
	Starved []string
	// Outputs holds the output of every node that completed.
	Outputs map[string]any
}

// Running reports whether a run is in flight.
func (e *Executor) Running() bool {
	return e.running.Load()
}

// Run executes the graph synchronously and returns once the run is over.
// The returned error is a *NodeError for the first failing node, a
// *CycleError for an unschedulable graph, or the context error.
func (e *Executor) Run(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)
	return e.run(ctx, e.newRunID(), func(*event.Event) {})
}

// Execute starts a run in the background and streams its events. The
// channel is closed after the terminal run.complete or run.error event.
func (e *Executor) Execute(ctx context.Context) (<-chan *event.Event, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	runID := e.newRunID()
	eventChan := make(chan *event.Event, e.channelBufferSize)
	emit := func(evt *event.Event) {
		select {
		case eventChan <- evt:
			return
		default:
		}
		select {
		case eventChan <- evt:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(eventChan)
		defer e.running.Store(false)
		_, _ = e.run(ctx, runID, emit)
	}()
	return eventChan, nil
}

// runState is the per-run scratch space shared by node executions.
type runState struct {
	runID string
	emit  func(*event.Event)
	log   log.Logger

	mu      sync.Mutex
	cache   map[string]any
	outputs map[string]any
}

func (rs *runState) inputs(edges []Edge) map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	inputs := make(map[string]any, len(edges))
	for _, edge := range edges {
		inputs[edge.TargetHandleID] = rs.cache[edge.SourceHandleID]
	}
	return inputs
}

func (rs *runState) publish(node *Node, output any) {
	values := routeOutputs(node, output)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for portID, v := range values {
		rs.cache[portID] = v
	}
	rs.outputs[node.ID] = output
}

func (e *Executor) run(ctx context.Context, runID string, emit func(*event.Event)) (*Result, error) {
	start := time.Now()
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameRun)
	defer span.End()

	e.store.Reset()
	plan := Schedule(e.store.NodeIDs(), e.store.Edges())
	itelemetry.TraceRun(span, runID, len(plan.Order)+len(plan.Starved))

	rs := &runState{
		runID:   runID,
		emit:    emit,
		log:     log.With(log.KeyRun, runID),
		cache:   make(map[string]any),
		outputs: make(map[string]any),
	}
	result := &Result{
		RunID:   runID,
		Order:   plan.Order,
		Starved: plan.Starved,
		Outputs: rs.outputs,
	}

	err := e.runPlan(ctx, rs, plan)
	outcome := OutcomeCompleted
	switch {
	case err == nil:
		rs.log.Infof("workflow run completed: %d node(s) in %s", len(plan.Order), time.Since(start))
		emit(event.New(runID, AuthorExecutor, event.TypeRunComplete))
	default:
		outcome = OutcomeFailed
		if isContextErr(err) {
			outcome = OutcomeCanceled
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rs.log.Infof("workflow run %s: %v", outcome, err)
		emit(event.NewErrorEvent(runID, AuthorExecutor, ErrorType(err), err.Error()))
	}
	metric.RecordRun(ctx, time.Since(start), outcome)
	return result, err
}

func (e *Executor) runPlan(ctx context.Context, rs *runState, plan *Plan) error {
	if !plan.Acyclic() {
		if !e.skipCycles {
			for _, id := range plan.Starved {
				e.store.UpdateNodeData(id, SetStatus(StatusError).WithError(CycleMessage))
			}
			return &CycleError{Nodes: append([]string(nil), plan.Starved...)}
		}
		rs.log.Warnf("skipping %d node(s) caught in a dependency cycle: %v", len(plan.Starved), plan.Starved)
	}
	rs.log.Infof("workflow run started: order %v", plan.Order)
	rs.emit(event.New(rs.runID, AuthorExecutor, event.TypeRunStart, event.WithOrder(plan.Order)))

	if e.parallelism > 1 {
		return e.runParallel(ctx, rs, plan)
	}
	for _, id := range plan.Order {
		if err := e.executeNode(ctx, rs, id); err != nil {
			return err
		}
	}
	return nil
}

type nodeResult struct {
	id  string
	err error
}

// runParallel starts every node whose predecessors have all completed,
// bounded by the configured parallelism. The first failure cancels the
// nodes still running and stops new ones from starting.
func (e *Executor) runParallel(ctx context.Context, rs *runState, plan *Plan) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	remaining := make(map[string]int, len(plan.Order))
	var ready []string
	for _, id := range plan.Order {
		remaining[id] = plan.InDegree[id]
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	results := make(chan nodeResult, len(plan.Order))
	launched, finished := 0, 0
	failed := false
	for {
		for len(ready) > 0 && !failed && gctx.Err() == nil {
			id := ready[0]
			ready = ready[1:]
			launched++
			g.Go(func() error {
				err := e.executeNode(gctx, rs, id)
				results <- nodeResult{id: id, err: err}
				return err
			})
		}
		if finished == launched {
			break
		}
		r := <-results
		finished++
		if r.err != nil {
			failed = true
			continue
		}
		for _, next := range plan.Successors[r.id] {
			remaining[next]--
			if remaining[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// executeNode runs a single node through its strategy and records the outcome.
func (e *Executor) executeNode(ctx context.Context, rs *runState, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	node, ok := e.store.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	nodeType := string(node.Type)

	ctx, span := trace.Tracer.Start(ctx, itelemetry.NewNodeSpanName(nodeType))
	defer span.End()
	itelemetry.TraceNode(span, rs.runID, id, nodeType)
	logger := log.With(log.KeyRun, rs.runID, log.KeyNode, id, log.KeyNodeType, nodeType)

	e.store.UpdateNodeData(id, SetStatus(StatusProcessing).WithContent(Progress{Progress: StartingMessage}))
	rs.emit(event.New(rs.runID, AuthorExecutor, event.TypeNodeStart,
		event.WithNode(id, nodeType, StatusProcessing.String())))

	output, err := e.dispatch(ctx, rs, node)
	if err != nil {
		e.store.UpdateNodeData(id, SetStatus(StatusError).WithError(err.Error()))
		errType := ErrorType(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metric.RecordNode(ctx, nodeType, StatusError.String(), errType)
		logger.Errorf("node failed: %v", err)
		rs.emit(event.New(rs.runID, AuthorExecutor, event.TypeNodeError,
			event.WithNode(id, nodeType, StatusError.String()),
			event.WithError(errType, err.Error())))
		return &NodeError{NodeID: id, Type: node.Type, Err: err}
	}

	rs.publish(node, output)
	e.store.UpdateNodeData(id, SetStatus(StatusCompleted).WithContent(output))
	metric.RecordNode(ctx, nodeType, StatusCompleted.String(), "")
	logger.Debugf("node completed")
	rs.emit(event.New(rs.runID, AuthorExecutor, event.TypeNodeComplete,
		event.WithNode(id, nodeType, StatusCompleted.String()),
		event.WithOutput(output)))
	return nil
}

// dispatch calls the node's strategy with its gathered inputs. Progress
// reported by the strategy is written through before dispatch returns.
func (e *Executor) dispatch(ctx context.Context, rs *runState, node *Node) (any, error) {
	strategy, ok := e.registry.Lookup(node.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoStrategy, node.Type)
	}
	reporter := newProgressReporter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range reporter.ch {
			e.store.UpdateNodeData(node.ID, SetContent(Progress{Progress: msg}))
			rs.log.Debugf("node %s: %s", node.ID, msg)
			rs.emit(event.New(rs.runID, AuthorExecutor, event.TypeNodeProgress,
				event.WithNode(node.ID, string(node.Type), StatusProcessing.String()),
				event.WithMessage(msg)))
		}
	}()

	call := &Call{
		Node:     node,
		Inputs:   rs.inputs(e.store.EdgesInto(node.ID)),
		Progress: reporter,
		RunID:    rs.runID,
	}
	output, err := callStrategy(ctx, strategy, call)
	reporter.close()
	<-done
	return output, err
}

func callStrategy(ctx context.Context, s Strategy, call *Call) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Execute(ctx, call)
}

// progressReporter hands progress messages to the forwarding goroutine.
// Reports made after the strategy returned are dropped.
type progressReporter struct {
	mu     sync.Mutex
	ch     chan string
	closed bool
}

func newProgressReporter() *progressReporter {
	return &progressReporter{ch: make(chan string, progressBufferSize)}
}

// Report implements Reporter.
func (r *progressReporter) Report(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.ch <- msg
}

func (r *progressReporter) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
