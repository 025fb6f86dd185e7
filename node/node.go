//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package node implements the strategy of every workflow node type and
// assembles them into the executor registry.
package node

import (
	"context"
	"errors"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/catalog"
	"trpc.group/trpc-go/trpc-workflow-go/export"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// DefaultWorkspace scopes artifacts when Deps.Workspace is empty.
const DefaultWorkspace = "default"

var errNoTextBackend = errors.New("no text generation backend configured")

// Deps are the collaborators the strategies call.
type Deps struct {
	// Model serves text, image and video generation. When nil every text
	// generation answers with an error string and the other calls fail.
	Model model.Service
	// Catalog serves the product image manifest and image files.
	Catalog catalog.Service
	// Artifacts stores generated videos. Optional.
	Artifacts artifact.Service
	// Workspace scopes stored artifacts; runs are keyed by run id inside it.
	Workspace string
}

// NewRegistry builds the immutable registry of every node type.
func NewRegistry(deps Deps) (*graph.Registry, error) {
	if deps.Model == nil {
		deps.Model = model.Compose(noText{}, nil, nil)
	}
	if deps.Workspace == "" {
		deps.Workspace = DefaultWorkspace
	}
	return graph.NewRegistry(map[graph.NodeType]graph.Strategy{
		graph.NodeTypeTextInput:          graph.StrategyFunc(capture),
		graph.NodeTypeImageInput:         graph.StrategyFunc(capture),
		graph.NodeTypeProduct:            graph.StrategyFunc(capture),
		graph.NodeTypeTextGenerator:      &textGenerator{text: deps.Model},
		graph.NodeTypeImageEditor:        &imageEditor{editor: deps.Model},
		graph.NodeTypeVideoGenerator:     &videoGenerator{video: deps.Model, artifacts: deps.Artifacts, workspace: deps.Workspace},
		graph.NodeTypeSocialPost:         &socialPost{text: deps.Model},
		graph.NodeTypeProductImageLoader: &imageLoader{catalog: deps.Catalog},
		graph.NodeTypeExporter:           graph.StrategyFunc(exporter),
		graph.NodeTypeOutputDisplay:      graph.StrategyFunc(output),
	})
}

type noText struct{}

func (noText) GenerateText(context.Context, string) string {
	return model.TextError(errNoTextBackend)
}

// ImageResult is an image together with its caption. On a node with an
// image and a text output port each port receives its own part.
type ImageResult struct {
	Image string `json:"image"`
	Text  string `json:"text"`
}

// PortValue implements graph.PortRouter.
func (r ImageResult) PortValue(kind graph.DataKind) (any, bool) {
	switch kind {
	case graph.KindImage:
		return r.Image, true
	case graph.KindText:
		return r.Text, true
	default:
		return nil, false
	}
}

// VideoRef points at a generated video.
type VideoRef struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	// Artifact and Version locate the stored copy; Artifact is empty when
	// no artifact service is configured.
	Artifact string         `json:"artifact,omitempty"`
	Version  int            `json:"version"`
	Scope    artifact.Scope `json:"scope"`
	Size     int            `json:"size"`
}

// textOf returns the text carried by v: a string, or the text part of a
// composite value. Anything else is empty.
func textOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case graph.PortRouter:
		if t, ok := x.PortValue(graph.KindText); ok {
			s, _ := t.(string)
			return s
		}
	}
	return ""
}

// imageOf returns the image data URL carried by v.
func imageOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case graph.PortRouter:
		if img, ok := x.PortValue(graph.KindImage); ok {
			s, _ := img.(string)
			return s
		}
	}
	return ""
}

// serviceError marks err as a collaborator failure, leaving cancellation as is.
func serviceError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return graph.ServiceFailure(err)
}

func capture(_ context.Context, call *graph.Call) (any, error) {
	return call.Node.Data.Content, nil
}

func output(_ context.Context, call *graph.Call) (any, error) {
	return call.Input(graph.SuffixInput), nil
}

// exporter never fails: inputs that cannot be parsed export no items.
func exporter(_ context.Context, call *graph.Call) (any, error) {
	return export.Batch{Items: export.Normalize(call.Input(graph.SuffixInput))}, nil
}
