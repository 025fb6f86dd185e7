//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package export formats social post records as JSON, CSV and documents,
// and stores the result as an artifact.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// DefaultPrefix is the file name prefix of exports.
const DefaultPrefix = "hispania_posts"

const timestampLayout = "2006-01-02-15-04-05"

// Columns is the fixed field order of a post record.
var Columns = []string{
	"product_id",
	"product_name",
	"product_url",
	"title_suggestion",
	"instagram_caption",
	"facebook_post",
	"tiktok_script",
	"linkedin_post",
	"suggested_hashtags",
	"short_copy",
}

var mimeTypes = map[Format]string{
	FormatJSON:     "application/json;charset=utf-8",
	FormatCSV:      "text/csv;charset=utf-8",
	FormatMarkdown: "text/markdown;charset=utf-8",
	FormatHTML:     "text/html;charset=utf-8",
	FormatPDF:      "application/pdf",
	FormatDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ParseFormat returns the format named s, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := mimeTypes[f]; !ok {
		return "", fmt.Errorf("unsupported export format %q", s)
	}
	return f, nil
}

// MIMEType returns the media type of documents in format f.
func (f Format) MIMEType() string {
	return mimeTypes[f]
}

// Batch is the output of an exporter node.
type Batch struct {
	Items []any `json:"items"`
}

// Normalize turns an exporter input into records. A JSON string is parsed,
// keeping arrays and wrapping anything else; array elements that are
// strings are parsed as JSON; a single object is wrapped. Parse failures and
// scalar values yield no records.
func Normalize(v any) []any {
	items, err := normalize(v)
	if err != nil || items == nil {
		return []any{}
	}
	return items
}

func normalize(v any) ([]any, error) {
	switch in := v.(type) {
	case nil:
		return nil, nil
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(in), &parsed); err != nil {
			return nil, err
		}
		if arr, ok := parsed.([]any); ok {
			return arr, nil
		}
		return []any{parsed}, nil
	case []any:
		out := make([]any, 0, len(in))
		for _, el := range in {
			s, ok := el.(string)
			if !ok {
				out = append(out, el)
				continue
			}
			var parsed any
			if err := json.Unmarshal([]byte(s), &parsed); err != nil {
				return nil, err
			}
			out = append(out, parsed)
		}
		return out, nil
	case map[string]any:
		return []any{in}, nil
	case bool, float64, int, int64, json.Number:
		return nil, nil
	}
	// Structs and typed slices go through their JSON form.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	if _, isString := generic.(string); isString {
		return nil, nil
	}
	return normalize(generic)
}

// Items extracts the records to export from a node value: a Batch, an
// object with an "items" array, or anything Normalize accepts.
func Items(v any) []any {
	switch in := v.(type) {
	case Batch:
		return nonNil(in.Items)
	case *Batch:
		if in == nil {
			return []any{}
		}
		return nonNil(in.Items)
	case map[string]any:
		if arr, ok := in["items"].([]any); ok {
			return arr
		}
	}
	return Normalize(v)
}

func nonNil(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}

// Filename builds prefix_YYYY-MM-DD-HH-MM-SS.ext from the UTC time t.
func Filename(prefix string, t time.Time, format Format) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s_%s.%s", prefix, t.UTC().Format(timestampLayout), format)
}

// JSON returns items as pretty printed JSON with a two space indent.
func JSON(items []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nonNil(items)); err != nil {
		return nil, fmt.Errorf("export json: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Encode renders items in format f.
func Encode(f Format, items []any) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(items)
	case FormatCSV:
		return CSV(items), nil
	case FormatMarkdown:
		return []byte(Markdown(items)), nil
	case FormatHTML:
		return HTML(items)
	case FormatPDF:
		return PDF(items)
	case FormatDOCX:
		return DOCX(items)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// Stored describes an export saved by Save.
type Stored struct {
	Name     string `json:"name"`
	Version  int    `json:"version"`
	MIMEType string `json:"mimeType"`
	Size     int    `json:"size"`
	Items    int    `json:"items"`
}

// Save encodes items and stores them in svc under name. An empty name is
// replaced by Filename(DefaultPrefix, now, f).
func Save(ctx context.Context, svc artifact.Service, scope artifact.Scope, name string,
	f Format, items []any) (*Stored, error) {
	data, err := Encode(f, items)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = Filename(DefaultPrefix, time.Now(), f)
	}
	version, err := svc.Save(ctx, scope, name, &artifact.Artifact{
		Data:     data,
		MimeType: f.MIMEType(),
		Name:     name,
	})
	if err != nil {
		return nil, fmt.Errorf("store export %s: %w", name, err)
	}
	return &Stored{Name: name, Version: version, MIMEType: f.MIMEType(), Size: len(data), Items: len(items)}, nil
}
