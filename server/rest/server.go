//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package rest exposes the workflow canvas over HTTP: graph editing, runs
// with their event stream, previews, exports and catalog search.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/catalog"
	"trpc.group/trpc-go/trpc-workflow-go/export"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

const (
	defaultWorkers   = 4
	defaultWorkspace = "default"
	// maxRuns bounds the finished runs kept for status and replay.
	maxRuns = 32
)

var errNoCatalog = errors.New("no catalog configured")

// Server serves one graph store.
type Server struct {
	store     *graph.Store
	registry  *graph.Registry
	executor  *graph.Executor
	catalog   catalog.Service
	artifacts artifact.Service
	router    *mux.Router
	pool      *ants.Pool

	workspace    string
	exportPrefix string
	exportFormat export.Format
	origins      []string
	workers      int
	execOpts     []graph.ExecutorOption
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	runs     map[string]*runRecord
	runOrder []string
}

// Option configures the Server.
type Option func(*Server)

// WithCatalog serves catalog search from c.
func WithCatalog(c catalog.Service) Option {
	return func(s *Server) { s.catalog = c }
}

// WithArtifacts stores exports in svc. An in-memory store is used otherwise.
func WithArtifacts(svc artifact.Service) Option {
	return func(s *Server) { s.artifacts = svc }
}

// WithWorkspace sets the artifact workspace.
func WithWorkspace(ws string) Option {
	return func(s *Server) { s.workspace = ws }
}

// WithExportPrefix sets the file name prefix of exports.
func WithExportPrefix(prefix string) Option {
	return func(s *Server) { s.exportPrefix = prefix }
}

// WithExportFormat sets the format used when a request names none.
func WithExportFormat(f export.Format) Option {
	return func(s *Server) { s.exportFormat = f }
}

// WithWorkers sizes the pool that drains run event streams.
func WithWorkers(n int) Option {
	return func(s *Server) { s.workers = n }
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithExecutorOptions appends options of the run executor.
func WithExecutorOptions(opts ...graph.ExecutorOption) Option {
	return func(s *Server) { s.execOpts = append(s.execOpts, opts...) }
}

// WithExecutor runs workflows through exec instead of an executor of the
// server's own. Executor options are ignored then.
func WithExecutor(exec *graph.Executor) Option {
	return func(s *Server) { s.executor = exec }
}

// WithClock overrides the time source of export file names.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server over store, executing nodes through registry.
func New(store *graph.Store, registry *graph.Registry, opts ...Option) (*Server, error) {
	s := &Server{
		store:        store,
		registry:     registry,
		router:       mux.NewRouter(),
		workspace:    defaultWorkspace,
		exportPrefix: export.DefaultPrefix,
		exportFormat: export.FormatJSON,
		origins:      []string{"*"},
		workers:      defaultWorkers,
		now:          time.Now,
		runs:         make(map[string]*runRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.artifacts == nil {
		s.artifacts = inmemory.NewService()
	}
	if s.executor == nil {
		exec, err := graph.NewExecutor(store, registry, s.execOpts...)
		if err != nil {
			return nil, err
		}
		s.executor = exec
	}
	var err error
	if s.pool, err = ants.NewPool(s.workers); err != nil {
		return nil, fmt.Errorf("failed to create run worker pool: %w", err)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type", "Content-Disposition", headerVersion},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s, nil
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

// Close cancels running workflows and releases the worker pool.
func (s *Server) Close() {
	s.cancel()
	s.pool.Release()
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/node-types", s.handleNodeTypes).Methods(http.MethodGet)
	api.HandleFunc("/graph", s.handleGetGraph).Methods(http.MethodGet)
	api.HandleFunc("/graph/dot", s.handleDOT).Methods(http.MethodGet)
	api.HandleFunc("/graph/import", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/nodes", s.handleCreateNode).Methods(http.MethodPost)
	api.HandleFunc("/nodes/{id}", s.handleGetNode).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{id}", s.handlePatchNode).Methods(http.MethodPatch)
	api.HandleFunc("/nodes/{id}/preview", s.handlePreview).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{id}/export", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{id}/export", s.handleStoreExport).Methods(http.MethodPost)
	api.HandleFunc("/edges", s.handleAddEdge).Methods(http.MethodPost)

	api.HandleFunc("/runs", s.handleStartRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleCancelRun).Methods(http.MethodDelete)
	api.HandleFunc("/runs/{id}/events", s.handleRunEvents).Methods(http.MethodGet)

	api.HandleFunc("/artifacts", s.handleListArtifacts).Methods(http.MethodGet)
	api.HandleFunc("/artifacts/{name:.+}", s.handleGetArtifact).Methods(http.MethodGet)
	api.HandleFunc("/catalog/products", s.handleSearchProducts).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": s.executor.Running()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps err onto a status code and writes it as JSON.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
}

func statusOf(err error) int {
	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, artifact.ErrNotFound),
		errors.Is(err, errRunNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, errNoCatalog):
		return http.StatusServiceUnavailable
	case errors.Is(err, graph.ErrUnknownNodeType), errors.Is(err, graph.ErrHandleNotOwned),
		errors.Is(err, graph.ErrSelfLoop), errors.Is(err, errBadRequest), errors.As(err, &syntaxErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}
