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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/catalog"
	"trpc.group/trpc-go/trpc-workflow-go/catalog/local"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

const yamlDef = `
name: demo
nodes:
  - ref: prompt
    type: TEXT_INPUT
    content: Hola
    position: {x: 10, y: 20}
  - ref: gen
    type: TEXT_GENERATOR
    label: Writer
  - ref: shop
    type: PRODUCT
    content: {id: p1, name: Pulsera}
edges:
  - from: prompt.output
    to: gen.input
`

const hclDef = `
name = "demo"

node "prompt" {
  type    = "TEXT_INPUT"
  content = "Hola"
  position {
    x = 10
    y = 20
  }
}

node "gen" {
  type  = "TEXT_GENERATOR"
  label = "Writer"
}

node "shop" {
  type    = "PRODUCT"
  content = { id = "p1", name = "Pulsera" }
}

edge {
  from = "prompt.output"
  to   = "gen.input"
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParse_YAMLAndHCLAgree(t *testing.T) {
	fromYAML, err := Parse([]byte(yamlDef), "demo.yaml", FormatYAML)
	require.NoError(t, err)
	fromHCL, err := Parse([]byte(hclDef), "demo.hcl", FormatHCL)
	require.NoError(t, err)

	want := &Definition{
		Name: "demo",
		Nodes: []NodeDef{
			{Ref: "prompt", Type: graph.NodeTypeTextInput, Content: "Hola", Position: graph.Position{X: 10, Y: 20}},
			{Ref: "gen", Type: graph.NodeTypeTextGenerator, Label: "Writer"},
			{Ref: "shop", Type: graph.NodeTypeProduct, Content: map[string]any{"id": "p1", "name": "Pulsera"}},
		},
		Edges: []EdgeDef{{From: "prompt.output", To: "gen.input"}},
	}
	ignore := cmpopts.IgnoreUnexported(NodeDef{})
	if diff := cmp.Diff(want, fromYAML, ignore); diff != "" {
		t.Errorf("yaml mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, fromHCL, ignore); diff != "" {
		t.Errorf("hcl mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("nodes:\n  - ref: a\n    colour: red\n"), "bad.yaml", FormatYAML)
	assert.Error(t, err, "unknown yaml fields are rejected")

	_, err = Parse([]byte(`node "a" {}`), "bad.hcl", FormatHCL)
	assert.ErrorContains(t, err, "bad.hcl")

	_, err = Parse([]byte(`{`), "x", Format("toml"))
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatHCL, FormatOf("a/b.HCL"))
	assert.Equal(t, FormatYAML, FormatOf("a/b.yml"))
	assert.Equal(t, FormatYAML, FormatOf("a/b.json"))
}

func TestValidate(t *testing.T) {
	d := &Definition{
		Nodes: []NodeDef{
			{Ref: "a", Type: graph.NodeTypeTextInput},
			{Ref: "a", Type: graph.NodeTypeTextInput},
			{Ref: "b.c", Type: graph.NodeTypeOutputDisplay},
			{Ref: "x", Type: "NOPE"},
			{Ref: "g", Type: graph.NodeTypeTextGenerator, Content: "ignored"},
			{Ref: "t", Type: graph.NodeTypeTextInput, Product: "p1"},
			{Ref: "", Type: graph.NodeTypeTextInput},
		},
		Edges: []EdgeDef{
			{From: "a.output", To: "missing.input"},
			{From: "noport", To: "a."},
		},
	}
	err := d.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRef)
	assert.ErrorIs(t, err, ErrUnknownRef)
	assert.ErrorIs(t, err, ErrBadEndpoint)
	assert.ErrorIs(t, err, graph.ErrUnknownNodeType)
	for _, msg := range []string{"must not contain", "does not take content", "only valid on", "empty ref"} {
		assert.ErrorContains(t, err, msg)
	}
}

func TestBuild(t *testing.T) {
	d, err := Parse([]byte(yamlDef), "demo.yaml", FormatYAML)
	require.NoError(t, err)
	store := graph.NewStore()
	refs, err := d.Build(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, 3, store.Len())

	prompt, ok := store.Node(refs["prompt"])
	require.True(t, ok)
	assert.Equal(t, "Hola", prompt.Data.Content)
	assert.Equal(t, graph.Position{X: 10, Y: 20}, prompt.Position)

	gen, ok := store.Node(refs["gen"])
	require.True(t, ok)
	assert.Equal(t, "Writer", gen.Data.Label)
	assert.Nil(t, gen.Data.Content)

	edges := store.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, graph.PortID(refs["prompt"], graph.SuffixOutput), edges[0].SourceHandleID)
	assert.Equal(t, graph.PortID(refs["gen"], graph.SuffixInput), edges[0].TargetHandleID)
}

func TestBuild_ValidationLeavesStoreUntouched(t *testing.T) {
	d := &Definition{
		Nodes: []NodeDef{{Ref: "a", Type: graph.NodeTypeTextInput}},
		Edges: []EdgeDef{{From: "a.output", To: "b.input"}},
	}
	store := graph.NewStore()
	_, err := d.Build(context.Background(), store)
	assert.ErrorIs(t, err, ErrUnknownRef)
	assert.Zero(t, store.Len())
}

func TestBuild_UnknownPort(t *testing.T) {
	d := &Definition{
		Nodes: []NodeDef{
			{Ref: "a", Type: graph.NodeTypeTextInput},
			{Ref: "b", Type: graph.NodeTypeTextGenerator},
		},
		Edges: []EdgeDef{{From: "a.output", To: "b.input-image"}},
	}
	_, err := d.Build(context.Background(), graph.NewStore())
	assert.ErrorIs(t, err, graph.ErrHandleNotOwned)
}

func TestBuild_ContentFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "prompt.txt"), "Describe el producto")
	writeFile(t, filepath.Join(dir, "assets", "photo.png"), "\x89PNG\r\n\x1a\nrest")
	writeFile(t, filepath.Join(dir, "product.json"), `{"id":"p2","name":"Llavero"}`)
	writeFile(t, filepath.Join(dir, "flow.yaml"), `
nodes:
  - {ref: text, type: TEXT_INPUT, content_file: prompt.txt}
  - {ref: image, type: IMAGE_INPUT, content_file: assets/photo.png}
  - {ref: product, type: PRODUCT, content_file: product.json}
`)
	d, err := LoadFile(filepath.Join(dir, "flow.yaml"))
	require.NoError(t, err)
	store := graph.NewStore()
	refs, err := d.Build(context.Background(), store)
	require.NoError(t, err)

	content := func(ref string) any {
		n, ok := store.Node(refs[ref])
		require.True(t, ok)
		return n.Data.Content
	}
	assert.Equal(t, "Describe el producto", content("text"))
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgpyZXN0", content("image"))
	assert.Equal(t, map[string]any{"id": "p2", "name": "Llavero"}, content("product"))
}

func TestBuild_CatalogProduct(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, catalog.CatalogFile), `{"products":[{"id":"p1","name":"Pulsera","url":"https://x/p1"}]}`)
	d := &Definition{Nodes: []NodeDef{{Ref: "p", Type: graph.NodeTypeProduct, Product: "p1"}}}

	_, err := d.Build(context.Background(), graph.NewStore())
	assert.ErrorIs(t, err, ErrNoCatalog)

	store := graph.NewStore()
	refs, err := d.Build(context.Background(), store, WithCatalog(local.New(dir)))
	require.NoError(t, err)
	n, _ := store.Node(refs["p"])
	assert.Equal(t, &catalog.Product{ID: "p1", Name: "Pulsera", URL: "https://x/p1"}, n.Data.Content)

	d.Nodes[0].Product = "p404"
	_, err = d.Build(context.Background(), graph.NewStore(), WithCatalog(local.New(dir)))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "inputs.yaml"), `
name: split
nodes:
  - {ref: prompt, type: TEXT_INPUT, content: Hola}
`)
	writeFile(t, filepath.Join(dir, "b", "nested", "gen.hcl"), `
node "gen" {
  type = "TEXT_GENERATOR"
}
edge {
  from = "prompt.output"
  to   = "gen.input"
}
`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	d, err := LoadGlob(filepath.Join(dir, "**", "*.{yaml,hcl}"))
	require.NoError(t, err)
	assert.Equal(t, "split", d.Name)
	require.Len(t, d.Nodes, 2)
	assert.Equal(t, "prompt", d.Nodes[0].Ref)
	assert.Equal(t, "gen", d.Nodes[1].Ref)
	require.NoError(t, d.Validate())

	_, err = LoadGlob(filepath.Join(dir, "**", "*.json"))
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestParseEndpoint(t *testing.T) {
	ref, suffix, err := parseEndpoint("editor.output-image")
	require.NoError(t, err)
	assert.Equal(t, "editor", ref)
	assert.Equal(t, graph.SuffixOutputImage, suffix)

	for _, bad := range []string{"", "x", ".output", "x."} {
		_, _, err := parseEndpoint(bad)
		assert.ErrorIs(t, err, ErrBadEndpoint, bad)
	}
}
