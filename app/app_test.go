//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/artifact/cos"
	"trpc.group/trpc-go/trpc-workflow-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/catalog/local"
	"trpc.group/trpc-go/trpc-workflow-go/catalog/remote"
	"trpc.group/trpc-go/trpc-workflow-go/config"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/model/gemini"
)

type prefixModel struct{}

func (prefixModel) GenerateText(_ context.Context, prompt string) string {
	return "generated: " + prompt
}

func (prefixModel) EditImage(context.Context, []byte, string, string) (*model.EditResult, error) {
	return nil, model.ErrNotSupported
}

func (prefixModel) GenerateVideo(context.Context, []byte, string, string, model.ProgressFunc) (*model.Video, error) {
	return nil, model.ErrNotSupported
}

func TestNew_RunsWorkflow(t *testing.T) {
	var logs bytes.Buffer
	cfg := config.Default()
	cfg.Log.Format = "json"
	a, err := New(context.Background(), cfg, WithModel(prefixModel{}), WithLogWriter(&logs))
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.Registry.Types(), len(graph.NodeTypes()))
	assert.IsType(t, &inmemory.Service{}, a.Artifacts)
	assert.IsType(t, &local.Service{}, a.Catalog)

	in, err := a.Store.CreateNode(graph.NodeTypeTextInput, graph.Position{})
	require.NoError(t, err)
	gen, err := a.Store.CreateNode(graph.NodeTypeTextGenerator, graph.Position{})
	require.NoError(t, err)
	a.Store.UpdateNodeData(in.ID, graph.SetContent("hola"))
	_, err = a.Store.AddEdge(in.ID, graph.PortID(in.ID, graph.SuffixOutput), gen.ID, graph.PortID(gen.ID, graph.SuffixInput))
	require.NoError(t, err)

	res, err := a.Executor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "generated: hola", res.Outputs[gen.ID])
	assert.Contains(t, logs.String(), `"lvl":"INFO"`)
}

func TestNew_SkipCycles(t *testing.T) {
	for _, skip := range []bool{false, true} {
		cfg := config.Default()
		cfg.Log.Level = "error"
		cfg.Executor.SkipCycles = skip
		a, err := New(context.Background(), cfg, WithModel(prefixModel{}), WithLogWriter(io.Discard))
		require.NoError(t, err)

		in, err := a.Store.CreateNode(graph.NodeTypeTextInput, graph.Position{})
		require.NoError(t, err)
		x, err := a.Store.CreateNode(graph.NodeTypeTextGenerator, graph.Position{})
		require.NoError(t, err)
		y, err := a.Store.CreateNode(graph.NodeTypeTextGenerator, graph.Position{})
		require.NoError(t, err)
		_, err = a.Store.AddEdge(x.ID, graph.PortID(x.ID, graph.SuffixOutput), y.ID, graph.PortID(y.ID, graph.SuffixInput))
		require.NoError(t, err)
		_, err = a.Store.AddEdge(y.ID, graph.PortID(y.ID, graph.SuffixOutput), x.ID, graph.PortID(x.ID, graph.SuffixInput))
		require.NoError(t, err)

		res, err := a.Executor.Run(context.Background())
		if skip {
			require.NoError(t, err)
			assert.Equal(t, []string{in.ID}, res.Order)
			assert.ElementsMatch(t, []string{x.ID, y.ID}, res.Starved)
		} else {
			assert.ErrorIs(t, err, graph.ErrCycleDetected)
		}
		require.NoError(t, a.Close())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Executor.Parallelism = 0
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "parallelism")
}

func TestNew_WithoutModelKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Gemini.APIKey = ""
	a, err := New(context.Background(), cfg, WithLogWriter(&bytes.Buffer{}))
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Model)

	in, _ := a.Store.CreateNode(graph.NodeTypeTextInput, graph.Position{})
	gen, _ := a.Store.CreateNode(graph.NodeTypeTextGenerator, graph.Position{})
	a.Store.UpdateNodeData(in.ID, graph.SetContent("hola"))
	_, err = a.Store.AddEdge(in.ID, graph.PortID(in.ID, graph.SuffixOutput), gen.ID, graph.PortID(gen.ID, graph.SuffixInput))
	require.NoError(t, err)
	res, err := a.Executor.Run(context.Background())
	require.NoError(t, err, "text generation reports failures as text")
	assert.Contains(t, res.Outputs[gen.ID], model.TextErrorMessagePrefix)
}

func TestRESTServer(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Format = "csv"
	a, err := New(context.Background(), cfg, WithModel(prefixModel{}), WithLogWriter(&bytes.Buffer{}))
	require.NoError(t, err)
	srv, err := a.RESTServer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, a.Close())
}

func TestClose_JoinsErrors(t *testing.T) {
	var order []int
	a := &App{cleanups: []func() error{
		func() error { order = append(order, 1); return errors.New("first") },
		func() error { order = append(order, 2); return nil },
		func() error { order = append(order, 3); return errors.New("third") },
	}}
	err := a.Close()
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.ErrorContains(t, err, "first")
	assert.ErrorContains(t, err, "third")
	assert.NoError(t, a.Close(), "cleanups run once")
}

func TestNewModel(t *testing.T) {
	ctx := context.Background()

	m, err := NewModel(ctx, config.Backend{Text: config.BackendGemini})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewModel(ctx, config.Backend{
		Text:   config.BackendGemini,
		Gemini: config.Gemini{APIKey: "test-key"},
	})
	require.NoError(t, err)
	assert.IsType(t, &gemini.Model{}, m)

	m, err = NewModel(ctx, config.Backend{
		Text:   config.BackendOpenAI,
		OpenAI: config.OpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"},
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	_, err = m.EditImage(ctx, nil, "image/png", "x")
	assert.ErrorIs(t, err, model.ErrNotSupported)
}

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog(config.Catalog{URL: "https://shop.example/data"})
	require.NoError(t, err)
	assert.IsType(t, &remote.Service{}, c)

	c, err = NewCatalog(config.Catalog{Dir: t.TempDir(), ImageRoot: "/srv"})
	require.NoError(t, err)
	assert.IsType(t, &local.Service{}, c)
}

func TestNewArtifacts(t *testing.T) {
	svc, err := NewArtifacts(config.Artifact{Backend: config.ArtifactInMemory})
	require.NoError(t, err)
	assert.IsType(t, &inmemory.Service{}, svc)

	svc, err = NewArtifacts(config.Artifact{Backend: config.ArtifactCOS, COS: config.COS{
		BucketURL: "https://bucket-123.cos.ap-guangzhou.myqcloud.com",
		SecretID:  "id",
		SecretKey: "key",
	}})
	require.NoError(t, err)
	assert.IsType(t, &cos.Service{}, svc)

	_, err = NewArtifacts(config.Artifact{Backend: config.ArtifactCOS, COS: config.COS{BucketURL: "::"}})
	assert.Error(t, err)
}
