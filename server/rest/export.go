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
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/gorilla/mux"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/catalog"
	"trpc.group/trpc-go/trpc-workflow-go/export"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// headerVersion carries the version of a served or stored artifact.
const headerVersion = "X-Artifact-Version"

// exportDir groups stored exports at workspace level.
const exportDir = artifact.SharedPrefix + "exports/"

// exportRequest resolves the node and format of an export call.
func (s *Server) exportRequest(r *http.Request) ([]any, export.Format, error) {
	n, err := s.node(r)
	if err != nil {
		return nil, "", err
	}
	if n.Type != graph.NodeTypeExporter {
		return nil, "", badRequest("node %s is a %s, not an %s", n.ID, n.Type, graph.NodeTypeExporter)
	}
	f := s.exportFormat
	if q := r.URL.Query().Get("format"); q != "" {
		if f, err = export.ParseFormat(q); err != nil {
			return nil, "", badRequest("%v", err)
		}
	}
	return export.Items(n.Data.Content), f, nil
}

// handleDownload answers with the export document as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	items, f, err := s.exportRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := export.Encode(f, items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := export.Filename(s.exportPrefix, s.now(), f)
	w.Header().Set("Content-Type", f.MIMEType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		log.Errorf("write export %s: %v", name, err)
	}
}

// handleStoreExport saves the export document as a shared artifact.
func (s *Server) handleStoreExport(w http.ResponseWriter, r *http.Request) {
	items, f, err := s.exportRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := exportDir + export.Filename(s.exportPrefix, s.now(), f)
	stored, err := export.Save(r.Context(), s.artifacts, artifact.Scope{Workspace: s.workspace}, name, f, items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	log.Infof("stored export %s version %d: %d item(s)", stored.Name, stored.Version, stored.Items)
	w.Header().Set(headerVersion, strconv.Itoa(stored.Version))
	s.writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	scope := artifact.Scope{Workspace: s.workspace, Run: r.URL.Query().Get("run")}
	keys, err := s.artifacts.Keys(r.Context(), scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	scope := artifact.Scope{Workspace: s.workspace, Run: r.URL.Query().Get("run")}
	var version *int
	if q := r.URL.Query().Get("version"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil {
			s.writeError(w, badRequest("version: %v", err))
			return
		}
		version = &v
	}
	art, err := s.artifacts.Load(r.Context(), scope, name, version)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if art.MimeType != "" {
		w.Header().Set("Content-Type", art.MimeType)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": path.Base(name)}))
	if version != nil {
		w.Header().Set(headerVersion, strconv.Itoa(*version))
	}
	if _, err := w.Write(art.Data); err != nil {
		log.Errorf("write artifact %s: %v", name, err)
	}
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.writeError(w, errNoCatalog)
		return
	}
	c, err := s.catalog.Catalog(r.Context())
	if err != nil {
		s.writeError(w, fmt.Errorf("load catalog: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, catalog.Search(c.Products, r.URL.Query().Get("q")))
}
