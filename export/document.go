//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/gomutex/godocx"

	"trpc.group/trpc-go/trpc-workflow-go/render"
)

// DocumentTitle heads the document formats.
const DocumentTitle = "Social posts"

var columnLabels = map[string]string{
	"product_id":         "Product ID",
	"product_name":       "Product",
	"product_url":        "URL",
	"title_suggestion":   "Title",
	"instagram_caption":  "Instagram",
	"facebook_post":      "Facebook",
	"tiktok_script":      "TikTok",
	"linkedin_post":      "LinkedIn",
	"suggested_hashtags": "Hashtags",
	"short_copy":         "Short copy",
}

// section is one record laid out for a document.
type section struct {
	title  string
	fields [][2]string
}

func sections(items []any) []section {
	out := make([]section, 0, len(items))
	for i, it := range items {
		rec := record(it)
		s := section{title: Field(rec, "title_suggestion")}
		if s.title == "" {
			s.title = Field(rec, "product_name")
		}
		if s.title == "" {
			s.title = fmt.Sprintf("Post %d", i+1)
		}
		for _, col := range Columns {
			if v := Field(rec, col); v != "" {
				s.fields = append(s.fields, [2]string{columnLabels[col], v})
			}
		}
		out = append(out, s)
	}
	return out
}

// Markdown renders items as a markdown document, one section per record.
func Markdown(items []any) string {
	var b strings.Builder
	b.WriteString("# " + DocumentTitle + "\n")
	for _, s := range sections(items) {
		b.WriteString("\n## " + s.title + "\n\n")
		for _, f := range s.fields {
			fmt.Fprintf(&b, "**%s**: %s\n\n", f[0], strings.TrimSpace(f[1]))
		}
	}
	return b.String()
}

// HTML renders the markdown document of items as HTML.
func HTML(items []any) ([]byte, error) {
	out, err := render.Markdown(Markdown(items))
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// PDF renders items as an A4 document. Text is converted to the cp1252
// encoding of the core fonts.
func PDF(items []any) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(DocumentTitle, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(DocumentTitle))
	pdf.Ln(12)
	for _, s := range sections(items) {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 7, tr(s.title), "", "L", false)
		pdf.Ln(2)
		for _, f := range s.fields {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(0, 5, tr(f[0]), "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(f[1]), "", "L", false)
			pdf.Ln(1)
		}
		pdf.Ln(4)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// DOCX renders items as a Word document with one paragraph per line.
func DOCX(items []any) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("export docx: %w", err)
	}
	doc.AddParagraph(DocumentTitle)
	for _, s := range sections(items) {
		doc.AddParagraph(s.title)
		for _, f := range s.fields {
			doc.AddParagraph(f[0] + ": " + f[1])
		}
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("export docx: %w", err)
	}
	return buf.Bytes(), nil
}
