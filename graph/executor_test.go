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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/event"
)

type captioned struct {
	image, text string
}

func (c captioned) PortValue(kind DataKind) (any, bool) {
	switch kind {
	case KindImage:
		return c.image, true
	case KindText:
		return c.text, true
	default:
		return nil, false
	}
}

func passContent(_ context.Context, call *Call) (any, error) {
	return call.Node.Data.Content, nil
}

func testRegistry(t *testing.T, overrides map[NodeType]Strategy) *Registry {
	t.Helper()
	strategies := map[NodeType]Strategy{
		NodeTypeTextInput:  StrategyFunc(passContent),
		NodeTypeImageInput: StrategyFunc(passContent),
		NodeTypeProduct:    StrategyFunc(passContent),
		NodeTypeTextGenerator: StrategyFunc(func(_ context.Context, call *Call) (any, error) {
			return fmt.Sprintf("gen(%v)", call.Input(SuffixInput)), nil
		}),
		NodeTypeImageEditor: StrategyFunc(func(_ context.Context, call *Call) (any, error) {
			return captioned{
				image: fmt.Sprintf("%v+edited", call.Input(SuffixInputImage)),
				text:  fmt.Sprint(call.Input(SuffixInputText)),
			}, nil
		}),
		NodeTypeOutputDisplay: StrategyFunc(func(_ context.Context, call *Call) (any, error) {
			return call.Input(SuffixInput), nil
		}),
		NodeTypeExporter: StrategyFunc(func(_ context.Context, call *Call) (any, error) {
			return call.Input(SuffixInput), nil
		}),
	}
	for nt, s := range overrides {
		strategies[nt] = s
	}
	r, err := NewRegistry(strategies)
	require.NoError(t, err)
	return r
}

func newTestExecutor(t *testing.T, s *Store, overrides map[NodeType]Strategy, opts ...ExecutorOption) *Executor {
	t.Helper()
	e, err := NewExecutor(s, testRegistry(t, overrides), opts...)
	require.NoError(t, err)
	return e
}

func nodeData(t *testing.T, s *Store, id string) NodeData {
	t.Helper()
	n, ok := s.Node(id)
	require.True(t, ok)
	return n.Data
}

func drain(ch <-chan *event.Event) []*event.Event {
	var out []*event.Event
	for evt := range ch {
		out = append(out, evt)
	}
	return out
}

func TestNewExecutor_Validation(t *testing.T) {
	_, err := NewExecutor(nil, &Registry{})
	assert.Error(t, err)
	_, err = NewExecutor(NewStore(), nil)
	assert.Error(t, err)
}

func TestNewRegistry_RejectsUnknownType(t *testing.T) {
	_, err := NewRegistry(map[NodeType]Strategy{"NOPE": StrategyFunc(passContent)})
	assert.ErrorIs(t, err, ErrUnknownNodeType)

	r, err := NewRegistry(map[NodeType]Strategy{
		NodeTypeExporter:  StrategyFunc(passContent),
		NodeTypeTextInput: StrategyFunc(passContent),
	})
	require.NoError(t, err)
	assert.Equal(t, []NodeType{NodeTypeTextInput, NodeTypeExporter}, r.Types())
}

func TestExecutor_LinearRun(t *testing.T) {
	s := newTestStore()
	in := mustNode(t, s, NodeTypeTextInput)
	gen := mustNode(t, s, NodeTypeTextGenerator)
	out := mustNode(t, s, NodeTypeOutputDisplay)
	s.UpdateNodeData(in.ID, SetContent("hello"))
	mustEdge(t, s, in.ID, SuffixOutput, gen.ID, SuffixInput)
	mustEdge(t, s, gen.ID, SuffixOutput, out.ID, SuffixInput)

	res, err := newTestExecutor(t, s, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{in.ID, gen.ID, out.ID}, res.Order)
	assert.Empty(t, res.Starved)
	assert.Equal(t, "gen(hello)", res.Outputs[out.ID])

	for _, id := range []string{in.ID, gen.ID, out.ID} {
		d := nodeData(t, s, id)
		assert.Equal(t, StatusCompleted, d.Status, id)
		assert.Empty(t, d.ErrorMessage, id)
	}
	assert.Equal(t, "hello", nodeData(t, s, in.ID).Content)
	assert.Equal(t, "gen(hello)", nodeData(t, s, gen.ID).Content)
	assert.Equal(t, "gen(hello)", nodeData(t, s, out.ID).Content)
}

func TestExecutor_EmptyGraph(t *testing.T) {
	res, err := newTestExecutor(t, NewStore(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Order)
}

func TestExecutor_FanInLastWriteWins(t *testing.T) {
	s := newTestStore()
	a := mustNode(t, s, NodeTypeTextInput)
	b := mustNode(t, s, NodeTypeTextInput)
	gen := mustNode(t, s, NodeTypeTextGenerator)
	s.UpdateNodeData(a.ID, SetContent("A"))
	s.UpdateNodeData(b.ID, SetContent("B"))
	mustEdge(t, s, a.ID, SuffixOutput, gen.ID, SuffixInput)
	mustEdge(t, s, b.ID, SuffixOutput, gen.ID, SuffixInput)

	_, err := newTestExecutor(t, s, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gen(B)", nodeData(t, s, gen.ID).Content)
}

func TestExecutor_UnconnectedInputIsNil(t *testing.T) {
	s := newTestStore()
	gen := mustNode(t, s, NodeTypeTextGenerator)
	var seen map[string]any
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(_ context.Context, call *Call) (any, error) {
			seen = call.Inputs
			return call.Input(SuffixInput), nil
		}),
	})
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, seen)
	assert.Nil(t, nodeData(t, s, gen.ID).Content)
	assert.Equal(t, StatusCompleted, nodeData(t, s, gen.ID).Status)
}

func TestExecutor_InputFromSourceWithoutOutputIsNil(t *testing.T) {
	s := newTestStore(WithUncheckedEdges())
	gen := mustNode(t, s, NodeTypeTextGenerator)
	out := mustNode(t, s, NodeTypeOutputDisplay)
	_, err := s.AddEdge(gen.ID, gen.ID+"-output-unknown", out.ID, PortID(out.ID, SuffixInput))
	require.NoError(t, err)

	var seen map[string]any
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeOutputDisplay: StrategyFunc(func(_ context.Context, call *Call) (any, error) {
			seen = call.Inputs
			return nil, nil
		}),
	})
	_, err = e.Run(context.Background())
	require.NoError(t, err)
	v, ok := seen[PortID(out.ID, SuffixInput)]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestExecutor_CompositeOutputRouting(t *testing.T) {
	s := newTestStore()
	img := mustNode(t, s, NodeTypeImageInput)
	prompt := mustNode(t, s, NodeTypeTextInput)
	editor := mustNode(t, s, NodeTypeImageEditor)
	showImage := mustNode(t, s, NodeTypeOutputDisplay)
	showText := mustNode(t, s, NodeTypeOutputDisplay)
	s.UpdateNodeData(img.ID, SetContent("IMG"))
	s.UpdateNodeData(prompt.ID, SetContent("make it blue"))
	mustEdge(t, s, img.ID, SuffixOutput, editor.ID, SuffixInputImage)
	mustEdge(t, s, prompt.ID, SuffixOutput, editor.ID, SuffixInputText)
	mustEdge(t, s, editor.ID, SuffixOutputImage, showImage.ID, SuffixInput)
	mustEdge(t, s, editor.ID, SuffixOutputText, showText.ID, SuffixInput)

	_, err := newTestExecutor(t, s, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, captioned{image: "IMG+edited", text: "make it blue"}, nodeData(t, s, editor.ID).Content)
	assert.Equal(t, "IMG+edited", nodeData(t, s, showImage.ID).Content)
	assert.Equal(t, "make it blue", nodeData(t, s, showText.ID).Content)
}

func TestExecutor_FanInIgnoresEdgeOrder(t *testing.T) {
	s := newTestStore()
	img := mustNode(t, s, NodeTypeImageInput)
	prompt := mustNode(t, s, NodeTypeTextInput)
	editor := mustNode(t, s, NodeTypeImageEditor)
	s.UpdateNodeData(img.ID, SetContent("IMG"))
	s.UpdateNodeData(prompt.ID, SetContent("make it blue"))
	mustEdge(t, s, prompt.ID, SuffixOutput, editor.ID, SuffixInputText)
	mustEdge(t, s, img.ID, SuffixOutput, editor.ID, SuffixInputImage)

	_, err := newTestExecutor(t, s, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, nodeData(t, s, editor.ID).Status)
	assert.Equal(t, captioned{image: "IMG+edited", text: "make it blue"}, nodeData(t, s, editor.ID).Content)
}

func TestRouteOutputs_SingleKindGetsWholeValue(t *testing.T) {
	n := &Node{ID: "x", Data: NodeData{Outputs: []Port{
		{ID: "x-a", Kind: KindText},
		{ID: "x-b", Kind: KindText},
	}}}
	v := captioned{image: "i", text: "t"}
	assert.Equal(t, map[string]any{"x-a": v, "x-b": v}, routeOutputs(n, v))

	mixed := &Node{ID: "y", Data: NodeData{Outputs: []Port{
		{ID: "y-img", Kind: KindImage},
		{ID: "y-vid", Kind: KindVideo},
	}}}
	assert.Equal(t, map[string]any{"y-img": "i", "y-vid": v}, routeOutputs(mixed, v))
	assert.Equal(t, map[string]any{"y-img": "plain", "y-vid": "plain"}, routeOutputs(mixed, "plain"))
}

func TestExecutor_FailFast(t *testing.T) {
	s := newTestStore()
	a := mustNode(t, s, NodeTypeTextInput)
	bad := mustNode(t, s, NodeTypeTextGenerator)
	c := mustNode(t, s, NodeTypeOutputDisplay)
	d := mustNode(t, s, NodeTypeTextInput)
	mustEdge(t, s, a.ID, SuffixOutput, bad.ID, SuffixInput)
	mustEdge(t, s, bad.ID, SuffixOutput, c.ID, SuffixInput)

	var calls atomic.Int32
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(context.Context, *Call) (any, error) {
			return nil, Validationf("Missing prompt.")
		}),
		NodeTypeOutputDisplay: StrategyFunc(func(context.Context, *Call) (any, error) {
			calls.Add(1)
			return nil, nil
		}),
	})
	res, err := e.Run(context.Background())
	require.Error(t, err)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, bad.ID, nodeErr.NodeID)
	assert.Equal(t, NodeTypeTextGenerator, nodeErr.Type)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, ErrorTypeValidation, ErrorType(err))

	// The order puts d between a and bad.
	assert.Equal(t, []string{a.ID, d.ID, bad.ID, c.ID}, res.Order)
	assert.Equal(t, StatusCompleted, nodeData(t, s, a.ID).Status)
	assert.Equal(t, StatusCompleted, nodeData(t, s, d.ID).Status)
	badData := nodeData(t, s, bad.ID)
	assert.Equal(t, StatusError, badData.Status)
	assert.Equal(t, "Missing prompt.", badData.ErrorMessage)
	assert.Equal(t, StatusIdle, nodeData(t, s, c.ID).Status)
	assert.Zero(t, calls.Load())
}

func TestExecutor_PanicBecomesNodeError(t *testing.T) {
	s := newTestStore()
	gen := mustNode(t, s, NodeTypeTextGenerator)
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(context.Context, *Call) (any, error) {
			panic("kaboom")
		}),
	})
	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, nodeData(t, s, gen.ID).Status)
	assert.Contains(t, nodeData(t, s, gen.ID).ErrorMessage, "kaboom")
}

func TestExecutor_NoStrategy(t *testing.T) {
	s := newTestStore()
	v := mustNode(t, s, NodeTypeVideoGenerator)
	_, err := newTestExecutor(t, s, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoStrategy)
	assert.Equal(t, StatusError, nodeData(t, s, v.ID).Status)
}

func TestExecutor_Idempotent(t *testing.T) {
	s := newTestStore()
	in := mustNode(t, s, NodeTypeTextInput)
	gen := mustNode(t, s, NodeTypeTextGenerator)
	s.UpdateNodeData(in.ID, SetContent("again"))
	mustEdge(t, s, in.ID, SuffixOutput, gen.ID, SuffixInput)
	e := newTestExecutor(t, s, nil)

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	first := s.Nodes()
	_, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, s.Nodes())
}

func TestExecutor_ResetClearsPreviousFailure(t *testing.T) {
	s := newTestStore()
	gen := mustNode(t, s, NodeTypeTextGenerator)
	var fail atomic.Bool
	fail.Store(true)
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(context.Context, *Call) (any, error) {
			if fail.Load() {
				return nil, ServiceFailure(errors.New("quota exceeded"))
			}
			return "ok", nil
		}),
	})
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrServiceFailure)
	assert.Equal(t, "quota exceeded", nodeData(t, s, gen.ID).ErrorMessage)

	fail.Store(false)
	_, err = e.Run(context.Background())
	require.NoError(t, err)
	d := nodeData(t, s, gen.ID)
	assert.Equal(t, StatusCompleted, d.Status)
	assert.Empty(t, d.ErrorMessage)
	assert.Equal(t, "ok", d.Content)
}

func cyclicStore(t *testing.T) (*Store, []*Node) {
	t.Helper()
	s := newTestStore(WithUncheckedEdges())
	free := mustNode(t, s, NodeTypeTextInput)
	a := mustNode(t, s, NodeTypeTextGenerator)
	b := mustNode(t, s, NodeTypeTextGenerator)
	down := mustNode(t, s, NodeTypeOutputDisplay)
	s.UpdateNodeData(free.ID, SetContent("free"))
	mustEdge(t, s, a.ID, SuffixOutput, b.ID, SuffixInput)
	mustEdge(t, s, b.ID, SuffixOutput, a.ID, SuffixInput)
	mustEdge(t, s, b.ID, SuffixOutput, down.ID, SuffixInput)
	return s, []*Node{free, a, b, down}
}

func TestExecutor_CycleFailsRun(t *testing.T) {
	s, nodes := cyclicStore(t)
	free, a, b, down := nodes[0], nodes[1], nodes[2], nodes[3]
	var calls atomic.Int32
	count := StrategyFunc(func(context.Context, *Call) (any, error) {
		calls.Add(1)
		return nil, nil
	})
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextInput:     count,
		NodeTypeTextGenerator: count,
		NodeTypeOutputDisplay: count,
	})

	res, err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleDetected)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{a.ID, b.ID, down.ID}, cycleErr.Nodes)
	assert.Equal(t, ErrorTypeCycle, ErrorType(err))
	assert.Equal(t, []string{free.ID}, res.Order)

	assert.Zero(t, calls.Load())
	assert.Equal(t, StatusIdle, nodeData(t, s, free.ID).Status)
	for _, n := range []*Node{a, b, down} {
		d := nodeData(t, s, n.ID)
		assert.Equal(t, StatusError, d.Status)
		assert.Equal(t, CycleMessage, d.ErrorMessage)
	}
}

func TestExecutor_SkipCycles(t *testing.T) {
	s, nodes := cyclicStore(t)
	free, a, b, down := nodes[0], nodes[1], nodes[2], nodes[3]

	res, err := newTestExecutor(t, s, nil, WithSkipCycles()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{free.ID}, res.Order)
	assert.Equal(t, []string{a.ID, b.ID, down.ID}, res.Starved)
	assert.Equal(t, StatusCompleted, nodeData(t, s, free.ID).Status)
	for _, n := range []*Node{a, b, down} {
		assert.Equal(t, StatusIdle, nodeData(t, s, n.ID).Status)
	}
}

func TestExecutor_ProgressIsForwarded(t *testing.T) {
	s := newTestStore()
	gen := mustNode(t, s, NodeTypeTextGenerator)
	var contents []any
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(_ context.Context, call *Call) (any, error) {
			n, _ := s.Node(call.Node.ID)
			contents = append(contents, n.Data.Content)
			call.Progress.Report("25%")
			call.Progress.Report("50%")
			return "done", nil
		}),
	})
	ch, err := e.Execute(context.Background())
	require.NoError(t, err)
	events := drain(ch)

	require.Len(t, contents, 1)
	assert.Equal(t, Progress{Progress: StartingMessage}, contents[0])

	var types []event.Type
	var progress []string
	for _, evt := range events {
		types = append(types, evt.Type)
		if evt.Type == event.TypeNodeProgress {
			progress = append(progress, evt.Message)
			assert.Equal(t, gen.ID, evt.NodeID)
			assert.Equal(t, StatusProcessing.String(), evt.Status)
		}
	}
	assert.Equal(t, []event.Type{
		event.TypeRunStart,
		event.TypeNodeStart,
		event.TypeNodeProgress,
		event.TypeNodeProgress,
		event.TypeNodeComplete,
		event.TypeRunComplete,
	}, types)
	assert.Equal(t, []string{"25%", "50%"}, progress)
	assert.Equal(t, []string{gen.ID}, events[0].Order)
	assert.Equal(t, "done", events[4].Output)
	assert.Equal(t, "done", nodeData(t, s, gen.ID).Content)
	assert.False(t, e.Running())
}

func TestExecutor_ExecuteReportsFailure(t *testing.T) {
	s := newTestStore()
	gen := mustNode(t, s, NodeTypeTextGenerator)
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(context.Context, *Call) (any, error) {
			return nil, ServiceFailure(errors.New("backend down"))
		}),
	})
	ch, err := e.Execute(context.Background())
	require.NoError(t, err)
	events := drain(ch)
	require.Len(t, events, 4)

	nodeErr := events[2]
	assert.Equal(t, event.TypeNodeError, nodeErr.Type)
	assert.Equal(t, gen.ID, nodeErr.NodeID)
	require.NotNil(t, nodeErr.Error)
	assert.Equal(t, ErrorTypeService, nodeErr.Error.Type)
	assert.Equal(t, "backend down", nodeErr.Error.Message)

	last := events[3]
	assert.Equal(t, event.TypeRunError, last.Type)
	assert.True(t, last.Type.Terminal())
	assert.Equal(t, ErrorTypeService, last.Error.Type)
}

func TestExecutor_RunInProgress(t *testing.T) {
	s := newTestStore()
	mustNode(t, s, NodeTypeTextGenerator)
	started := make(chan struct{})
	release := make(chan struct{})
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(context.Context, *Call) (any, error) {
			close(started)
			<-release
			return "ok", nil
		}),
	})
	ch, err := e.Execute(context.Background())
	require.NoError(t, err)
	<-started
	assert.True(t, e.Running())

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = e.Execute(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	drain(ch)
	assert.False(t, e.Running())
}

func TestExecutor_CanceledBeforeStart(t *testing.T) {
	s := newTestStore()
	in := mustNode(t, s, NodeTypeTextInput)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExecutor(t, s, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrorTypeCanceled, ErrorType(err))
	assert.Equal(t, StatusIdle, nodeData(t, s, in.ID).Status)
}

func TestExecutor_CanceledDuringNode(t *testing.T) {
	s := newTestStore()
	in := mustNode(t, s, NodeTypeTextInput)
	gen := mustNode(t, s, NodeTypeTextGenerator)
	out := mustNode(t, s, NodeTypeOutputDisplay)
	mustEdge(t, s, in.ID, SuffixOutput, gen.ID, SuffixInput)
	mustEdge(t, s, gen.ID, SuffixOutput, out.ID, SuffixInput)

	ctx, cancel := context.WithCancel(context.Background())
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(ctx context.Context, _ *Call) (any, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})
	_, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCompleted, nodeData(t, s, in.ID).Status)
	d := nodeData(t, s, gen.ID)
	assert.Equal(t, StatusError, d.Status)
	assert.Equal(t, context.Canceled.Error(), d.ErrorMessage)
	assert.Equal(t, StatusIdle, nodeData(t, s, out.ID).Status)
}

func TestExecutor_ParallelRunsIndependentNodesConcurrently(t *testing.T) {
	s := newTestStore()
	a := mustNode(t, s, NodeTypeTextGenerator)
	b := mustNode(t, s, NodeTypeTextGenerator)
	out := mustNode(t, s, NodeTypeOutputDisplay)
	mustEdge(t, s, a.ID, SuffixOutput, out.ID, SuffixInput)
	mustEdge(t, s, b.ID, SuffixOutput, out.ID, SuffixInput)

	var wg sync.WaitGroup
	wg.Add(2)
	both := make(chan struct{})
	go func() {
		wg.Wait()
		close(both)
	}()
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(ctx context.Context, call *Call) (any, error) {
			wg.Done()
			select {
			case <-both:
				return call.Node.ID, nil
			case <-time.After(5 * time.Second):
				return nil, errors.New("sibling never started")
			}
		}),
	}, WithParallelism(2))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Outputs, 3)
	// Fan-in still follows edge insertion order.
	assert.Equal(t, b.ID, nodeData(t, s, out.ID).Content)
}

func TestExecutor_ParallelFailureCancelsSiblings(t *testing.T) {
	s := newTestStore()
	bad := mustNode(t, s, NodeTypeTextGenerator)
	slow := mustNode(t, s, NodeTypeImageEditor)
	after := mustNode(t, s, NodeTypeOutputDisplay)
	mustEdge(t, s, slow.ID, SuffixOutputText, after.ID, SuffixInput)

	slowStarted := make(chan struct{})
	e := newTestExecutor(t, s, map[NodeType]Strategy{
		NodeTypeTextGenerator: StrategyFunc(func(context.Context, *Call) (any, error) {
			<-slowStarted
			return nil, errors.New("first failure")
		}),
		NodeTypeImageEditor: StrategyFunc(func(ctx context.Context, _ *Call) (any, error) {
			close(slowStarted)
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	}, WithParallelism(4))

	_, err := e.Run(context.Background())
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, bad.ID, nodeErr.NodeID)
	assert.Equal(t, ErrorTypeNodeExecution, ErrorType(err))

	assert.Equal(t, "first failure", nodeData(t, s, bad.ID).ErrorMessage)
	slowData := nodeData(t, s, slow.ID)
	assert.Equal(t, StatusError, slowData.Status)
	assert.Equal(t, context.Canceled.Error(), slowData.ErrorMessage)
	assert.Equal(t, StatusIdle, nodeData(t, s, after.ID).Status)
}

func TestExecutor_ParallelMatchesSequential(t *testing.T) {
	build := func() *Store {
		s := newTestStore()
		in := mustNode(t, s, NodeTypeTextInput)
		img := mustNode(t, s, NodeTypeImageInput)
		gen := mustNode(t, s, NodeTypeTextGenerator)
		editor := mustNode(t, s, NodeTypeImageEditor)
		out := mustNode(t, s, NodeTypeOutputDisplay)
		s.UpdateNodeData(in.ID, SetContent("p"))
		s.UpdateNodeData(img.ID, SetContent("i"))
		mustEdge(t, s, in.ID, SuffixOutput, gen.ID, SuffixInput)
		mustEdge(t, s, gen.ID, SuffixOutput, editor.ID, SuffixInputText)
		mustEdge(t, s, img.ID, SuffixOutput, editor.ID, SuffixInputImage)
		mustEdge(t, s, editor.ID, SuffixOutputImage, out.ID, SuffixInput)
		return s
	}
	seq, par := build(), build()
	_, err := newTestExecutor(t, seq, nil).Run(context.Background())
	require.NoError(t, err)
	_, err = newTestExecutor(t, par, nil, WithParallelism(3)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seq.Nodes(), par.Nodes())
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "", ErrorType(nil))
	assert.Equal(t, ErrorTypeValidation, ErrorType(Validationf("bad %s", "input")))
	assert.Equal(t, ErrorTypeService, ErrorType(ServiceFailure(errors.New("x"))))
	assert.Equal(t, ErrorTypeCycle, ErrorType(&CycleError{Nodes: []string{"a"}}))
	assert.Equal(t, ErrorTypeCanceled, ErrorType(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrorTypeNodeExecution, ErrorType(errors.New("other")))
	assert.Nil(t, ServiceFailure(nil))
	assert.Equal(t, "bad input", Validationf("bad %s", "input").Error())
}
