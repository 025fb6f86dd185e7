//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package mcp exposes the workflow engine as MCP tools so agents can
// inspect the canvas, run it and export its posts.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/catalog"
	"trpc.group/trpc-go/trpc-workflow-go/definition"
	"trpc.group/trpc-go/trpc-workflow-go/export"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// Tool names.
const (
	ToolListNodeTypes = "list_node_types"
	ToolGetGraph      = "get_graph"
	ToolGetGraphDOT   = "get_graph_dot"
	ToolImport        = "import_definition"
	ToolSetContent    = "set_node_content"
	ToolRun           = "run_workflow"
	ToolNodeStatus    = "get_node"
	ToolExport        = "export_posts"
	ToolSearchCatalog = "search_catalog"
)

const (
	serverName    = "trpc-workflow-go"
	serverVersion = "1.0.0"

	defaultRunTimeout = 10 * time.Minute
)

// Server registers the workflow tools on an MCP server.
type Server struct {
	server    *mcp.Server
	store     *graph.Store
	executor  *graph.Executor
	catalog   catalog.Service
	artifacts artifact.Service
	workspace string
	prefix    string
	now       func() time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithCatalog enables catalog search and product references in imports.
func WithCatalog(c catalog.Service) Option {
	return func(s *Server) { s.catalog = c }
}

// WithArtifacts stores binary exports in svc.
func WithArtifacts(svc artifact.Service, workspace string) Option {
	return func(s *Server) {
		s.artifacts = svc
		s.workspace = workspace
	}
}

// WithExportPrefix sets the file name prefix of exports.
func WithExportPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = prefix }
}

// WithClock overrides the time source of export file names.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates the MCP server listening on addr.
func New(addr string, store *graph.Store, executor *graph.Executor, opts ...Option) *Server {
	s := &Server{
		store:    store,
		executor: executor,
		prefix:   export.DefaultPrefix,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = mcp.NewServer(serverName, serverVersion, mcp.WithServerAddress(addr))
	s.register()
	return s
}

// Start serves until the listener fails.
func (s *Server) Start() error {
	log.Infof("MCP server exposing workflow tools")
	return s.server.Start()
}

func (s *Server) register() {
	s.server.RegisterTool(mcp.NewTool(ToolListNodeTypes,
		mcp.WithDescription("List the node types of the workflow palette with their ports"),
	), s.handleListNodeTypes)

	s.server.RegisterTool(mcp.NewTool(ToolGetGraph,
		mcp.WithDescription("Get every node and edge of the workflow canvas as JSON"),
	), s.handleGetGraph)

	s.server.RegisterTool(mcp.NewTool(ToolGetGraphDOT,
		mcp.WithDescription("Render the workflow canvas as a Graphviz DOT document"),
		mcp.WithString("rankdir", mcp.Description("Layout direction: LR, TB, RL or BT"), mcp.Default("LR")),
	), s.handleGetGraphDOT)

	s.server.RegisterTool(mcp.NewTool(ToolImport,
		mcp.WithDescription("Add the nodes and edges of a workflow definition to the canvas"),
		mcp.WithString("definition", mcp.Required(), mcp.Description("The definition document")),
		mcp.WithString("format", mcp.Description("yaml or hcl"), mcp.Default("yaml")),
	), s.handleImport)

	s.server.RegisterTool(mcp.NewTool(ToolSetContent,
		mcp.WithDescription("Set the content of an input node"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text, image data URL or product JSON")),
	), s.handleSetContent)

	s.server.RegisterTool(mcp.NewTool(ToolRun,
		mcp.WithDescription("Run the workflow and wait for it to finish"),
		mcp.WithNumber("timeout_seconds", mcp.Description("Abort the run after this many seconds; defaults to 600")),
	), s.handleRun)

	s.server.RegisterTool(mcp.NewTool(ToolNodeStatus,
		mcp.WithDescription("Get a node with its status and content"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
	), s.handleNodeStatus)

	s.server.RegisterTool(mcp.NewTool(ToolExport,
		mcp.WithDescription("Export the posts collected by an exporter node"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Exporter node id")),
		mcp.WithString("format", mcp.Description("json, csv, md, html, pdf or docx"), mcp.Default("json")),
	), s.handleExport)

	s.server.RegisterTool(mcp.NewTool(ToolSearchCatalog,
		mcp.WithDescription("Search catalog products by name, category or tag"),
		mcp.WithString("query", mcp.Description("Search text; empty lists the first products")),
	), s.handleSearchCatalog)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func stringArg(req *mcp.CallToolRequest, name string) string {
	v, _ := req.Params.Arguments[name].(string)
	return strings.TrimSpace(v)
}

func (s *Server) handleListNodeTypes(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		Type    graph.NodeType `json:"type"`
		Label   string         `json:"label"`
		Inputs  []graph.Port   `json:"inputs"`
		Outputs []graph.Port   `json:"outputs"`
	}
	var out []entry
	for _, nt := range graph.NodeTypes() {
		n, err := graph.NewNode("", nt, graph.Position{})
		if err != nil {
			return nil, err
		}
		out = append(out, entry{Type: nt, Label: n.Data.Label, Inputs: n.Data.Inputs, Outputs: n.Data.Outputs})
	}
	return jsonResult(out)
}

func (s *Server) handleGetGraph(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"nodes":   s.store.Nodes(),
		"edges":   s.store.Edges(),
		"running": s.executor.Running(),
	})
}

func (s *Server) handleGetGraphDOT(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var opts []graph.VizOption
	if dir := stringArg(req, "rankdir"); dir != "" {
		opts = append(opts, graph.WithRankDir(dir))
	}
	return textResult(s.store.DOT(opts...)), nil
}

func (s *Server) handleImport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc := stringArg(req, "definition")
	if doc == "" {
		return mcp.NewErrorResult("definition is required"), nil
	}
	format := definition.FormatYAML
	if f := stringArg(req, "format"); f != "" {
		format = definition.Format(strings.ToLower(f))
	}
	def, err := definition.Parse([]byte(doc), "tool."+string(format), format)
	if err != nil {
		return mcp.NewErrorResult(err.Error()), nil
	}
	var opts []definition.BuildOption
	if s.catalog != nil {
		opts = append(opts, definition.WithCatalog(s.catalog))
	}
	refs, err := def.Build(ctx, s.store, opts...)
	if err != nil {
		return mcp.NewErrorResult(err.Error()), nil
	}
	return jsonResult(refs)
}

func (s *Server) handleSetContent(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(req, "node_id")
	n, ok := s.store.Node(id)
	if !ok {
		return mcp.NewErrorResult(fmt.Sprintf("node %q not found", id)), nil
	}
	if !n.Type.IsInputCapture() {
		return mcp.NewErrorResult(fmt.Sprintf("node %q is a %s; only input nodes take content", id, n.Type)), nil
	}
	raw, _ := req.Params.Arguments["content"].(string)
	var content any = raw
	if n.Type == graph.NodeTypeProduct {
		var product any
		if err := json.Unmarshal([]byte(raw), &product); err != nil {
			return mcp.NewErrorResult(fmt.Sprintf("product content must be JSON: %v", err)), nil
		}
		content = product
	}
	s.store.UpdateNodeData(id, graph.SetContent(content))
	return textResult(fmt.Sprintf("content of %s updated", id)), nil
}

// runSummary is the outcome of a run as reported to the caller.
type runSummary struct {
	RunID   string            `json:"runId,omitempty"`
	Status  string            `json:"status"`
	Order   []string          `json:"order,omitempty"`
	Failed  string            `json:"failedNode,omitempty"`
	Error   string            `json:"error,omitempty"`
	Type    string            `json:"errorType,omitempty"`
	Results map[string]string `json:"results"`
}

func (s *Server) handleRun(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	timeout := defaultRunTimeout
	if secs, ok := req.Params.Arguments["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := s.executor.Run(ctx)
	if errors.Is(err, graph.ErrRunInProgress) {
		return mcp.NewErrorResult("a workflow run is already in progress"), nil
	}
	sum := runSummary{Status: "completed", Results: make(map[string]string)}
	if res != nil {
		sum.RunID = res.RunID
		sum.Order = res.Order
	}
	if err != nil {
		sum.Status = "failed"
		sum.Error = err.Error()
		sum.Type = graph.ErrorType(err)
		var nodeErr *graph.NodeError
		if errors.As(err, &nodeErr) {
			sum.Failed = nodeErr.NodeID
		}
	}
	for _, n := range s.store.Nodes() {
		sum.Results[n.ID] = string(n.Data.Status)
	}
	return jsonResult(sum)
}

func (s *Server) handleNodeStatus(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(req, "node_id")
	n, ok := s.store.Node(id)
	if !ok {
		return mcp.NewErrorResult(fmt.Sprintf("node %q not found", id)), nil
	}
	return jsonResult(n)
}

// textFormats are returned inline; the others are stored as artifacts.
var textFormats = map[export.Format]bool{
	export.FormatJSON:     true,
	export.FormatCSV:      true,
	export.FormatMarkdown: true,
	export.FormatHTML:     true,
}

func (s *Server) handleExport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(req, "node_id")
	n, ok := s.store.Node(id)
	if !ok {
		return mcp.NewErrorResult(fmt.Sprintf("node %q not found", id)), nil
	}
	if n.Type != graph.NodeTypeExporter {
		return mcp.NewErrorResult(fmt.Sprintf("node %q is a %s, not an %s", id, n.Type, graph.NodeTypeExporter)), nil
	}
	f := export.FormatJSON
	if q := stringArg(req, "format"); q != "" {
		var err error
		if f, err = export.ParseFormat(q); err != nil {
			return mcp.NewErrorResult(err.Error()), nil
		}
	}
	items := export.Items(n.Data.Content)
	if textFormats[f] {
		data, err := export.Encode(f, items)
		if err != nil {
			return nil, err
		}
		return textResult(string(data)), nil
	}
	if s.artifacts == nil {
		return mcp.NewErrorResult(fmt.Sprintf("format %s needs an artifact store", f)), nil
	}
	name := artifact.SharedPrefix + "exports/" + export.Filename(s.prefix, s.now(), f)
	stored, err := export.Save(ctx, s.artifacts, artifact.Scope{Workspace: s.workspace}, name, f, items)
	if err != nil {
		return nil, err
	}
	return jsonResult(stored)
}

func (s *Server) handleSearchCatalog(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.catalog == nil {
		return mcp.NewErrorResult("no catalog configured"), nil
	}
	c, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return jsonResult(catalog.Search(c.Products, stringArg(req, "query")))
}
