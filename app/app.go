//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package app assembles the workflow engine from a Config: logging,
// telemetry, generation backends, catalog, artifact store and the node
// registry over one graph store.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/artifact/cos"
	"trpc.group/trpc-go/trpc-workflow-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/catalog"
	"trpc.group/trpc-go/trpc-workflow-go/catalog/local"
	"trpc.group/trpc-go/trpc-workflow-go/catalog/remote"
	"trpc.group/trpc-go/trpc-workflow-go/config"
	"trpc.group/trpc-go/trpc-workflow-go/export"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/model/gemini"
	"trpc.group/trpc-go/trpc-workflow-go/model/openai"
	"trpc.group/trpc-go/trpc-workflow-go/node"
	"trpc.group/trpc-go/trpc-workflow-go/server/rest"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
)

// ServiceName identifies the engine in telemetry.
const ServiceName = "trpc-workflow-go"

// App holds the assembled components. Close releases them.
type App struct {
	Config    *config.Config
	Store     *graph.Store
	Registry  *graph.Registry
	Model     model.Service
	Catalog   catalog.Service
	Artifacts artifact.Service
	// Executor is shared by every surface so one run at a time holds
	// across them.
	Executor *graph.Executor

	cleanups []func() error
}

// Option configures New.
type Option func(*options)

type options struct {
	logWriter io.Writer
	model     model.Service
	store     *graph.Store
}

// WithLogWriter sends logs to w instead of stdout.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// WithModel uses m instead of the configured backends.
func WithModel(m model.Service) Option {
	return func(o *options) { o.model = m }
}

// WithStore runs the registry over an existing store.
func WithStore(s *graph.Store) Option {
	return func(o *options) { o.store = s }
}

// New builds an App from cfg. On error every component started so far is
// released.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	o := &options{logWriter: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.SetFormat(cfg.Log.Format, o.logWriter)
	log.SetLevel(cfg.Log.Level)

	a = &App{Config: cfg, Store: o.store}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()
	if err := a.startTelemetry(ctx); err != nil {
		return nil, err
	}
	if a.Model = o.model; a.Model == nil {
		if a.Model, err = NewModel(ctx, cfg.Backend); err != nil {
			return nil, err
		}
	}
	if a.Catalog, err = NewCatalog(cfg.Catalog); err != nil {
		return nil, err
	}
	if a.Artifacts, err = NewArtifacts(cfg.Artifact); err != nil {
		return nil, err
	}
	if a.Store == nil {
		a.Store = graph.NewStore()
	}
	a.Registry, err = node.NewRegistry(node.Deps{
		Model:     a.Model,
		Catalog:   a.Catalog,
		Artifacts: a.Artifacts,
		Workspace: cfg.Artifact.Workspace,
	})
	if err != nil {
		return nil, fmt.Errorf("build node registry: %w", err)
	}
	if a.Executor, err = graph.NewExecutor(a.Store, a.Registry, a.executorOptions()...); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) startTelemetry(ctx context.Context) error {
	t := a.Config.Telemetry
	if t.Traces {
		opts := []trace.Option{trace.WithProtocol(t.Protocol), trace.WithServiceName(ServiceName)}
		if t.Endpoint != "" {
			opts = append(opts, trace.WithEndpoint(t.Endpoint))
		}
		clean, err := trace.Start(ctx, opts...)
		if err != nil {
			return fmt.Errorf("start trace telemetry: %w", err)
		}
		a.cleanups = append(a.cleanups, clean)
	}
	if t.Metrics {
		opts := []metric.Option{metric.WithProtocol(t.Protocol), metric.WithServiceName(ServiceName)}
		if t.Endpoint != "" {
			opts = append(opts, metric.WithEndpoint(t.Endpoint))
		}
		clean, err := metric.Start(ctx, opts...)
		if err != nil {
			return fmt.Errorf("start metric telemetry: %w", err)
		}
		a.cleanups = append(a.cleanups, clean)
	}
	return nil
}

func (a *App) executorOptions() []graph.ExecutorOption {
	opts := []graph.ExecutorOption{graph.WithParallelism(a.Config.Executor.Parallelism)}
	if a.Config.Executor.SkipCycles {
		opts = append(opts, graph.WithSkipCycles())
	}
	return opts
}

// RESTServer creates the HTTP server over the app's components.
func (a *App) RESTServer() (*rest.Server, error) {
	cfg := a.Config
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return nil, err
	}
	srv, err := rest.New(a.Store, a.Registry,
		rest.WithCatalog(a.Catalog),
		rest.WithArtifacts(a.Artifacts),
		rest.WithWorkspace(cfg.Artifact.Workspace),
		rest.WithExportPrefix(cfg.Export.Prefix),
		rest.WithExportFormat(format),
		rest.WithWorkers(cfg.Server.Workers),
		rest.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
		rest.WithExecutor(a.Executor),
	)
	if err != nil {
		return nil, err
	}
	a.cleanups = append(a.cleanups, func() error {
		srv.Close()
		return nil
	})
	return srv, nil
}

// Close releases the components in reverse start order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}

// NewModel builds the generation backends. Image editing and video always
// go through Gemini; text goes through the configured backend. Without a
// Google API key only an OpenAI text backend is available.
func NewModel(ctx context.Context, cfg config.Backend) (model.Service, error) {
	var g *gemini.Model
	if cfg.Gemini.APIKey != "" {
		var err error
		g, err = gemini.New(ctx,
			gemini.WithAPIKey(cfg.Gemini.APIKey),
			gemini.WithTextModel(cfg.Gemini.TextModel),
			gemini.WithImageModel(cfg.Gemini.ImageModel),
			gemini.WithVideoModel(cfg.Gemini.VideoModel),
			gemini.WithPollInterval(cfg.Gemini.PollInterval),
		)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
	}
	switch cfg.Text {
	case config.BackendOpenAI:
		opts := []openai.Option{}
		if cfg.OpenAI.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(cfg.OpenAI.APIKey))
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		text := openai.New(cfg.OpenAI.Model, opts...)
		if g == nil {
			log.Warnf("%s is not set: image editing and video generation are unavailable", gemini.GoogleAPIKeyEnv)
			return model.Compose(text, nil, nil), nil
		}
		return model.Compose(text, g, g), nil
	default:
		if g == nil {
			log.Warnf("%s is not set: generation nodes will report errors", gemini.GoogleAPIKeyEnv)
			return nil, nil
		}
		return g, nil
	}
}

// NewCatalog opens the product catalog from a URL or a directory,
// defaulting to config.DefaultCatalogDir.
func NewCatalog(cfg config.Catalog) (catalog.Service, error) {
	if cfg.URL != "" {
		svc, err := remote.New(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open remote catalog: %w", err)
		}
		return svc, nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = config.DefaultCatalogDir
	}
	var opts []local.Option
	if cfg.ImageRoot != "" {
		opts = append(opts, local.WithImageRoot(cfg.ImageRoot))
	}
	return local.New(dir, opts...), nil
}

// NewArtifacts opens the artifact store.
func NewArtifacts(cfg config.Artifact) (artifact.Service, error) {
	switch cfg.Backend {
	case config.ArtifactCOS:
		var opts []cos.Option
		if cfg.COS.SecretID != "" {
			opts = append(opts, cos.WithSecretID(cfg.COS.SecretID))
		}
		if cfg.COS.SecretKey != "" {
			opts = append(opts, cos.WithSecretKey(cfg.COS.SecretKey))
		}
		if cfg.COS.Timeout > 0 {
			opts = append(opts, cos.WithTimeout(cfg.COS.Timeout))
		}
		svc, err := cos.NewService(cfg.COS.BucketURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("open cos artifacts: %w", err)
		}
		return svc, nil
	default:
		return inmemory.NewService(), nil
	}
}
