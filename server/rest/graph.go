//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"trpc.group/trpc-go/trpc-workflow-go/definition"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/render"
)

// maxImportSize bounds definition uploads.
const maxImportSize = 8 << 20

// NodeType describes one entry of the node palette. Port ids are the
// suffixes appended to a node id.
type NodeType struct {
	Type    graph.NodeType `json:"type"`
	Label   string         `json:"label"`
	Inputs  []graph.Port   `json:"inputs"`
	Outputs []graph.Port   `json:"outputs"`
}

// Graph is the full canvas.
type Graph struct {
	Nodes   []*graph.Node `json:"nodes"`
	Edges   []graph.Edge  `json:"edges"`
	Running bool          `json:"running"`
}

type createNodeRequest struct {
	Type     graph.NodeType `json:"type"`
	Position graph.Position `json:"position"`
}

// patchNodeRequest updates the present fields only. A null content clears it.
type patchNodeRequest struct {
	Label    *string         `json:"label"`
	Content  json.RawMessage `json:"content"`
	Scale    *float64        `json:"scale"`
	Position *graph.Position `json:"position"`
}

type addEdgeRequest struct {
	SourceNodeID   string `json:"sourceNodeId"`
	SourceHandleID string `json:"sourceHandleId"`
	TargetNodeID   string `json:"targetNodeId"`
	TargetHandleID string `json:"targetHandleId"`
}

func (s *Server) handleNodeTypes(w http.ResponseWriter, _ *http.Request) {
	types := make([]NodeType, 0, len(s.registry.Types()))
	for _, nt := range s.registry.Types() {
		n, err := graph.NewNode("", nt, graph.Position{})
		if err != nil {
			s.writeError(w, err)
			return
		}
		types = append(types, NodeType{Type: nt, Label: n.Data.Label, Inputs: n.Data.Inputs, Outputs: n.Data.Outputs})
	}
	s.writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, Graph{
		Nodes:   s.store.Nodes(),
		Edges:   s.store.Edges(),
		Running: s.executor.Running(),
	})
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	var opts []graph.VizOption
	if dir := r.URL.Query().Get("rankdir"); dir != "" {
		opts = append(opts, graph.WithRankDir(dir))
	}
	if r.URL.Query().Get("ports") == "true" {
		opts = append(opts, graph.WithShowPorts(true))
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	if err := s.store.WriteDOT(w, opts...); err != nil {
		log.Errorf("write dot: %v", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		s.writeError(w, badRequest("read body: %v", err))
		return
	}
	format := definition.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = definition.FormatYAML
	}
	def, err := definition.Parse(data, "request."+string(format), format)
	if err != nil {
		s.writeError(w, badRequest("%v", err))
		return
	}
	var opts []definition.BuildOption
	if s.catalog != nil {
		opts = append(opts, definition.WithCatalog(s.catalog))
	}
	refs, err := def.Build(r.Context(), s.store, opts...)
	if err != nil {
		s.writeError(w, badRequest("%v", err))
		return
	}
	log.Infof("imported definition %q: %d node(s), %d edge(s)", def.Name, len(def.Nodes), len(def.Edges))
	s.writeJSON(w, http.StatusCreated, refs)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequest("%v", err))
		return
	}
	n, err := s.store.CreateNode(req.Type, req.Position)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.node(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req patchNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequest("%v", err))
		return
	}
	patch := graph.DataPatch{Label: req.Label, Scale: req.Scale}
	if len(req.Content) > 0 {
		var content any
		if err := json.Unmarshal(req.Content, &content); err != nil {
			s.writeError(w, badRequest("content: %v", err))
			return
		}
		patch = patch.WithContent(content)
	}
	if !s.store.UpdateNodeData(id, patch) {
		s.writeError(w, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id))
		return
	}
	if req.Position != nil {
		s.store.SetPosition(id, *req.Position)
	}
	n, _ := s.store.Node(id)
	s.writeJSON(w, http.StatusOK, n)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	n, err := s.node(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	html, err := render.Preview(n.Data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var req addEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequest("%v", err))
		return
	}
	edge, err := s.store.AddEdge(req.SourceNodeID, req.SourceHandleID, req.TargetNodeID, req.TargetHandleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, edge)
}

func (s *Server) node(r *http.Request) (*graph.Node, error) {
	id := mux.Vars(r)["id"]
	n, ok := s.store.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	return n, nil
}
