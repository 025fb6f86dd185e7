//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// ErrNoFiles is returned by LoadGlob when the pattern matches nothing.
var ErrNoFiles = errors.New("no definition files matched")

// Format is the syntax of a definition file.
type Format string

// Formats.
const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatOf picks the format from a file extension; anything that is not
// .hcl is read as YAML, which also covers JSON.
func FormatOf(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".hcl") {
		return FormatHCL
	}
	return FormatYAML
}

// Parse decodes a definition. filename is used in diagnostics and as the
// base of relative content files.
func Parse(data []byte, filename string, format Format) (*Definition, error) {
	var (
		d   *Definition
		err error
	)
	switch format {
	case FormatHCL:
		d, err = parseHCL(data, filename)
	case FormatYAML:
		d, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unknown definition format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	dir := filepath.Dir(filename)
	for i := range d.Nodes {
		d.Nodes[i].dir = dir
	}
	return d, nil
}

// LoadFile reads and parses the definition at path.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path, FormatOf(path))
}

// LoadGlob loads every file matching pattern, which may use "**", and
// merges them into one definition. Edges may cross files; refs must be
// unique across all of them.
func LoadGlob(pattern string) (*Definition, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, pattern)
	}
	sort.Strings(matches)
	defs := make([]*Definition, 0, len(matches))
	for _, m := range matches {
		d, err := LoadFile(m)
		if err != nil {
			return nil, err
		}
		log.Debugf("loaded definition %s: %d node(s), %d edge(s)", m, len(d.Nodes), len(d.Edges))
		defs = append(defs, d)
	}
	return Merge(defs...), nil
}

// Merge concatenates definitions in order. The name of the first named
// definition wins.
func Merge(defs ...*Definition) *Definition {
	out := &Definition{}
	for _, d := range defs {
		if out.Name == "" {
			out.Name = d.Name
		}
		out.Nodes = append(out.Nodes, d.Nodes...)
		out.Edges = append(out.Edges, d.Edges...)
	}
	return out
}

func parseYAML(data []byte) (*Definition, error) {
	var d Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

type hclFile struct {
	Name  string     `hcl:"name,optional"`
	Nodes []*hclNode `hcl:"node,block"`
	Edges []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	Ref         string       `hcl:"ref,label"`
	Type        string       `hcl:"type"`
	Label       string       `hcl:"label,optional"`
	Content     cty.Value    `hcl:"content,optional"`
	ContentFile string       `hcl:"content_file,optional"`
	Product     string       `hcl:"product,optional"`
	Position    *hclPosition `hcl:"position,block"`
}

type hclPosition struct {
	X float64 `hcl:"x,optional"`
	Y float64 `hcl:"y,optional"`
}

type hclEdge struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

func parseHCL(data []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	var f hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return nil, diags
	}

	d := &Definition{Name: f.Name}
	for _, n := range f.Nodes {
		content, err := ctyToGo(n.Content)
		if err != nil {
			return nil, fmt.Errorf("node %s: content: %w", n.Ref, err)
		}
		def := NodeDef{
			Ref:         n.Ref,
			Type:        graph.NodeType(n.Type),
			Label:       n.Label,
			Content:     content,
			ContentFile: n.ContentFile,
			Product:     n.Product,
		}
		if n.Position != nil {
			def.Position = graph.Position{X: n.Position.X, Y: n.Position.Y}
		}
		d.Nodes = append(d.Nodes, def)
	}
	for _, e := range f.Edges {
		d.Edges = append(d.Edges, EdgeDef{From: e.From, To: e.To})
	}
	return d, nil
}

// ctyToGo converts an HCL literal into the JSON-shaped value the rest of
// the engine carries: strings, float64, bool, []any and map[string]any.
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("value is not known without evaluation context")
	}
	raw, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
