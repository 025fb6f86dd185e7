//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Graphviz layout directions and output formats.
const (
	RankDirLR = "LR"
	RankDirTB = "TB"

	ImageFormatPNG = "png"
	ImageFormatSVG = "svg"
)

const (
	shapeBox      = "box"
	shapeNote     = "note"
	shapeCylinder = "cylinder"

	colorIdleFill         = "#eeeeee"
	colorIdleBorder       = "#757575"
	colorProcessingFill   = "#e3f2fd"
	colorProcessingBorder = "#2196f3"
	colorCompletedFill    = "#e8f5e9"
	colorCompletedBorder  = "#4caf50"
	colorErrorFill        = "#ffe1e1"
	colorErrorBorder      = "#f44336"
)

// VizOptions configures DOT export and rendering.
type VizOptions struct {
	// RankDir sets DOT graph direction: "LR" or "TB".
	RankDir string
	// ShowPorts labels every edge with its source and target port suffixes.
	ShowPorts bool
	// GraphLabel optionally labels the whole graph.
	GraphLabel string
}

// VizOption mutates VizOptions.
type VizOption func(*VizOptions)

// WithRankDir sets DOT graph direction. Valid values: "LR", "TB".
func WithRankDir(dir string) VizOption {
	return func(o *VizOptions) {
		if dir == RankDirLR || dir == RankDirTB {
			o.RankDir = dir
		}
	}
}

// WithShowPorts toggles port labels on edges.
func WithShowPorts(show bool) VizOption {
	return func(o *VizOptions) { o.ShowPorts = show }
}

// WithGraphLabel sets an optional label for the graph.
func WithGraphLabel(label string) VizOption {
	return func(o *VizOptions) { o.GraphLabel = label }
}

// DOT returns a Graphviz DOT representation of the store. Nodes are coloured
// by their current status and listed in creation order; edges follow
// insertion order.
func (s *Store) DOT(opts ...VizOption) string {
	o := &VizOptions{RankDir: RankDirLR}
	for _, fn := range opts {
		fn(o)
	}
	nodes := s.Nodes()
	edges := s.Edges()

	var b strings.Builder
	b.WriteString("digraph G {\n")
	fmt.Fprintf(&b, "  rankdir=%s;\n", o.RankDir)
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\"];\n")
	if o.GraphLabel != "" {
		fmt.Fprintf(&b, "  label=\"%s\";\n  labelloc=t;\n", escapeLabel(o.GraphLabel))
	}
	for _, n := range nodes {
		label := n.Data.Label
		if label == "" {
			label = string(n.Type)
		}
		label += "\\n" + string(n.Data.Status)
		fill, color := styleForStatus(n.Data.Status)
		fmt.Fprintf(&b, "  \"%s\" [label=\"%s\", shape=%s, style=filled, fillcolor=\"%s\", color=\"%s\"];\n",
			escapeLabel(n.ID), escapeLabelKeepBreaks(label), shapeForNodeType(n.Type), fill, color)
	}
	for _, e := range edges {
		if o.ShowPorts {
			fmt.Fprintf(&b, "  \"%s\" -> \"%s\" [label=\"%s\"];\n",
				escapeLabel(e.SourceNodeID), escapeLabel(e.TargetNodeID),
				escapeLabel(portSuffix(e.SourceNodeID, e.SourceHandleID)+" > "+portSuffix(e.TargetNodeID, e.TargetHandleID)))
			continue
		}
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\";\n", escapeLabel(e.SourceNodeID), escapeLabel(e.TargetNodeID))
	}
	b.WriteString("}\n")
	return b.String()
}

// WriteDOT writes the DOT representation to w.
func (s *Store) WriteDOT(w io.Writer, opts ...VizOption) error {
	_, err := io.WriteString(w, s.DOT(opts...))
	return err
}

// RenderImage renders the store to an image by invoking Graphviz's `dot` binary.
func (s *Store) RenderImage(ctx context.Context, format, outputPath string, opts ...VizOption) error {
	if format == "" {
		format = ImageFormatPNG
	}
	dotPath, err := exec.LookPath("dot")
	if err != nil {
		return fmt.Errorf("graphviz 'dot' binary not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, dotPath, "-T"+format, "-o", outputPath)
	cmd.Stdin = bytes.NewBufferString(s.DOT(opts...))
	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return fmt.Errorf("dot render failed: %w, output: %s", runErr, string(out))
	}
	return nil
}

func styleForStatus(st Status) (fill, color string) {
	switch st {
	case StatusProcessing:
		return colorProcessingFill, colorProcessingBorder
	case StatusCompleted:
		return colorCompletedFill, colorCompletedBorder
	case StatusError:
		return colorErrorFill, colorErrorBorder
	default:
		return colorIdleFill, colorIdleBorder
	}
}

func shapeForNodeType(nt NodeType) string {
	if nt.IsInputCapture() {
		return shapeNote
	}
	if nt == NodeTypeExporter || nt == NodeTypeOutputDisplay {
		return shapeCylinder
	}
	return shapeBox
}

func portSuffix(nodeID, portID string) string {
	return strings.TrimPrefix(portID, nodeID)
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// escapeLabelKeepBreaks escapes s while keeping "\n" line breaks already
// written in DOT form.
func escapeLabelKeepBreaks(s string) string {
	parts := strings.Split(s, "\\n")
	for i, p := range parts {
		parts[i] = escapeLabel(p)
	}
	return strings.Join(parts, "\\n")
}
