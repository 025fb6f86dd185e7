//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package definition loads workflow definitions from YAML or HCL files and
// builds them into a graph store.
//
// A node is addressed by its ref, a port by "ref.port" where port is the
// port suffix without its leading dash, e.g. "gen.input" or
// "editor.output-image".
package definition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/catalog"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/internal/dataurl"
)

// Errors.
var (
	ErrDuplicateRef = errors.New("duplicate node ref")
	ErrUnknownRef   = errors.New("unknown node ref")
	ErrBadEndpoint  = errors.New("edge endpoint must be ref.port")
	ErrNoCatalog    = errors.New("product reference needs a catalog")
)

// Definition is a workflow graph as written in a definition file.
type Definition struct {
	Name  string    `yaml:"name" json:"name"`
	Nodes []NodeDef `yaml:"nodes" json:"nodes"`
	Edges []EdgeDef `yaml:"edges" json:"edges"`
}

// NodeDef declares one node.
type NodeDef struct {
	Ref   string         `yaml:"ref" json:"ref"`
	Type  graph.NodeType `yaml:"type" json:"type"`
	Label string         `yaml:"label,omitempty" json:"label,omitempty"`
	// Content is the captured input of TEXT_INPUT, IMAGE_INPUT and PRODUCT nodes.
	Content any `yaml:"content,omitempty" json:"content,omitempty"`
	// ContentFile reads the content from a file relative to the definition:
	// text for TEXT_INPUT, a data URL for IMAGE_INPUT, JSON for PRODUCT.
	ContentFile string `yaml:"content_file,omitempty" json:"content_file,omitempty"`
	// Product names a catalog product id for PRODUCT nodes.
	Product  string         `yaml:"product,omitempty" json:"product,omitempty"`
	Position graph.Position `yaml:"position" json:"position"`

	dir string
}

// EdgeDef connects From, an output "ref.port", to To, an input "ref.port".
type EdgeDef struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Refs maps node refs to the ids the store assigned.
type Refs map[string]string

// Validate checks refs, types and edge endpoints without touching files.
func (d *Definition) Validate() error {
	var errs []error
	refs := make(map[string]graph.NodeType, len(d.Nodes))
	for i, n := range d.Nodes {
		switch {
		case n.Ref == "":
			errs = append(errs, fmt.Errorf("node #%d: empty ref", i))
			continue
		case strings.Contains(n.Ref, "."):
			errs = append(errs, fmt.Errorf("node %s: ref must not contain '.'", n.Ref))
		}
		if _, dup := refs[n.Ref]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateRef, n.Ref))
		}
		refs[n.Ref] = n.Type
		if !n.Type.Valid() {
			errs = append(errs, fmt.Errorf("node %s: %w: %q", n.Ref, graph.ErrUnknownNodeType, n.Type))
			continue
		}
		sources := 0
		for _, set := range []bool{n.Content != nil, n.ContentFile != "", n.Product != ""} {
			if set {
				sources++
			}
		}
		if sources > 1 {
			errs = append(errs, fmt.Errorf("node %s: content, content_file and product are exclusive", n.Ref))
		}
		if sources > 0 && !n.Type.IsInputCapture() {
			errs = append(errs, fmt.Errorf("node %s: %s does not take content", n.Ref, n.Type))
		}
		if n.Product != "" && n.Type != graph.NodeTypeProduct {
			errs = append(errs, fmt.Errorf("node %s: product is only valid on %s", n.Ref, graph.NodeTypeProduct))
		}
	}
	for i, e := range d.Edges {
		for _, end := range []string{e.From, e.To} {
			ref, _, err := parseEndpoint(end)
			if err != nil {
				errs = append(errs, fmt.Errorf("edge #%d: %w", i, err))
				continue
			}
			if _, ok := refs[ref]; !ok {
				errs = append(errs, fmt.Errorf("edge #%d: %w: %s", i, ErrUnknownRef, ref))
			}
		}
	}
	return errors.Join(errs...)
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	catalog catalog.Service
}

// WithCatalog resolves product refs of PRODUCT nodes against c.
func WithCatalog(c catalog.Service) BuildOption {
	return func(o *buildOptions) {
		o.catalog = c
	}
}

// Build validates d and adds its nodes and edges to store. Nothing is
// added when validation fails; a failure while adding leaves what was
// added so far.
func (d *Definition) Build(ctx context.Context, store *graph.Store, opts ...BuildOption) (Refs, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	contents := make([]any, len(d.Nodes))
	for i := range d.Nodes {
		c, err := d.Nodes[i].content(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", d.Nodes[i].Ref, err)
		}
		contents[i] = c
	}

	refs := make(Refs, len(d.Nodes))
	for i, n := range d.Nodes {
		created, err := store.CreateNode(n.Type, n.Position)
		if err != nil {
			return refs, fmt.Errorf("node %s: %w", n.Ref, err)
		}
		refs[n.Ref] = created.ID
		patch := graph.DataPatch{}
		if n.Label != "" {
			label := n.Label
			patch.Label = &label
		}
		if contents[i] != nil {
			patch = patch.WithContent(contents[i])
		}
		store.UpdateNodeData(created.ID, patch)
	}
	for _, e := range d.Edges {
		srcRef, srcPort, _ := parseEndpoint(e.From)
		dstRef, dstPort, _ := parseEndpoint(e.To)
		src, dst := refs[srcRef], refs[dstRef]
		if _, err := store.AddEdge(src, graph.PortID(src, srcPort), dst, graph.PortID(dst, dstPort)); err != nil {
			return refs, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	return refs, nil
}

func (n *NodeDef) content(ctx context.Context, o *buildOptions) (any, error) {
	switch {
	case n.ContentFile != "":
		return n.readContentFile()
	case n.Product != "":
		if o.catalog == nil {
			return nil, ErrNoCatalog
		}
		c, err := o.catalog.Catalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		p, ok := c.Find(n.Product)
		if !ok {
			return nil, fmt.Errorf("product %s: %w", n.Product, catalog.ErrNotFound)
		}
		return p, nil
	default:
		return n.Content, nil
	}
}

func (n *NodeDef) readContentFile() (any, error) {
	p := n.ContentFile
	if !filepath.IsAbs(p) {
		p = filepath.Join(n.dir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	switch n.Type {
	case graph.NodeTypeImageInput:
		mimeType := mime.TypeByExtension(filepath.Ext(p))
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = http.DetectContentType(data)
		}
		return dataurl.Encode(mimeType, data), nil
	case graph.NodeTypeProduct:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", n.ContentFile, err)
		}
		return v, nil
	default:
		return string(data), nil
	}
}

// parseEndpoint splits "ref.port" into the ref and the port suffix.
func parseEndpoint(s string) (ref, suffix string, err error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrBadEndpoint, s)
	}
	return s[:i], "-" + s[i+1:], nil
}
