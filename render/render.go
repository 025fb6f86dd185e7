//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package render turns node content into HTML previews.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

// Placeholder texts of a preview.
const (
	ProcessingText = "Processing..."
	EmptyText      = "Output will appear here."
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown converts markdown source to HTML. Raw HTML in src is omitted.
func Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// imageSource is implemented by composite outputs carrying an image.
type imageSource interface {
	PortValue(kind graph.DataKind) (any, bool)
}

// Preview renders the display of a node: a spinner text while processing,
// the error message on failure, and the content once completed. Images are
// shown inline, text is rendered as markdown and any other value as JSON.
func Preview(data graph.NodeData) (string, error) {
	switch data.Status {
	case graph.StatusProcessing:
		msg := ProcessingText
		if p, ok := data.Content.(graph.Progress); ok && p.Progress != "" {
			msg = p.Progress
		}
		return `<div class="processing">` + html.EscapeString(msg) + "</div>\n", nil
	case graph.StatusError:
		return `<div class="error"><h4>Error</h4><p>` + html.EscapeString(data.ErrorMessage) + "</p></div>\n", nil
	case graph.StatusCompleted:
		if out, ok, err := content(data.Content); ok || err != nil {
			return out, err
		}
	}
	return `<div class="empty">` + EmptyText + "</div>\n", nil
}

func content(v any) (string, bool, error) {
	switch c := v.(type) {
	case nil:
		return "", false, nil
	case string:
		if c == "" {
			return "", false, nil
		}
		if strings.HasPrefix(c, "data:image") {
			return image(c), true, nil
		}
		out, err := Markdown(c)
		return out, err == nil, err
	case imageSource:
		if img, ok := c.PortValue(graph.KindImage); ok {
			if s, ok := img.(string); ok && strings.HasPrefix(s, "data:image") {
				return image(s), true, nil
			}
		}
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("render content: %w", err)
	}
	return "<pre><code>" + html.EscapeString(string(raw)) + "</code></pre>\n", true, nil
}

func image(src string) string {
	return `<img src="` + html.EscapeString(src) + `" alt="Generated output">` + "\n"
}
