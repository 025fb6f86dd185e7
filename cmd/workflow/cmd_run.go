//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-workflow-go/definition"
	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/export"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

var errRunFailed = errors.New("workflow run failed")

func newRunCmd() *cobra.Command {
	var (
		exportFormat string
		outDir       string
		events       bool
	)
	cmd := &cobra.Command{
		Use:   "run <definition|glob>",
		Short: "Build and execute a workflow definition",
		Long: "Loads every YAML or HCL definition matched by the argument, merges them\n" +
			"into one graph and executes it. Exporter nodes can be written to files.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if exportFormat == "" {
				exportFormat = cfg.Export.Format
			}
			format, err := export.ParseFormat(exportFormat)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			def, refs, err := loadDefinition(cmd, a, args[0])
			if err != nil {
				return err
			}
			stream, err := a.Executor.Execute(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var last *event.Event
			for e := range stream {
				if events {
					if err := writeEvent(out, e); err != nil {
						return err
					}
				}
				last = e
			}
			if !events {
				printSummary(out, def, refs, a.Store)
			}
			if outDir != "" {
				if err := writeExports(out, a.Store, outDir, cfg.Export.Prefix, format); err != nil {
					return err
				}
			}
			if last != nil && last.Type == event.TypeRunError {
				return fmt.Errorf("%w: %s", errRunFailed, last.Error.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exportFormat, "export", "", "format of exporter files: json, csv, md, html, pdf or docx")
	cmd.Flags().StringVar(&outDir, "out", "", "write every exporter node's posts to this directory")
	cmd.Flags().BoolVar(&events, "events", false, "print the run events as JSON lines instead of a summary")
	return cmd
}

func writeEvent(w io.Writer, e *event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printSummary lists every defined node with its final status.
func printSummary(w io.Writer, def *definition.Definition, refs definition.Refs, store *graph.Store) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REF\tNODE\tTYPE\tSTATUS\tDETAIL")
	names := make([]string, 0, len(refs))
	for ref := range refs {
		names = append(names, ref)
	}
	sort.Strings(names)
	for _, ref := range names {
		n, ok := store.Node(refs[ref])
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ref, n.ID, n.Type, n.Data.Status, detail(n))
	}
	tw.Flush()
	if def.Name != "" {
		fmt.Fprintf(w, "workflow %q: %d node(s)\n", def.Name, len(names))
	}
}

const maxDetail = 60

func detail(n *graph.Node) string {
	var s string
	switch {
	case n.Data.Status == graph.StatusError:
		s = n.Data.ErrorMessage
	case n.Data.Content == nil:
		return ""
	default:
		if text, ok := n.Data.Content.(string); ok {
			s = text
		} else if raw, err := json.Marshal(n.Data.Content); err == nil {
			s = string(raw)
		}
	}
	runes := []rune(s)
	if len(runes) > maxDetail {
		return string(runes[:maxDetail]) + "..."
	}
	return s
}

// writeExports encodes the items of every exporter node into dir.
func writeExports(w io.Writer, store *graph.Store, dir, prefix string, f export.Format) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	now := time.Now()
	for _, n := range store.Nodes() {
		if n.Type != graph.NodeTypeExporter || n.Data.Status != graph.StatusCompleted {
			continue
		}
		data, err := export.Encode(f, export.Items(n.Data.Content))
		if err != nil {
			return fmt.Errorf("export %s: %w", n.ID, err)
		}
		name := export.Filename(prefix+"_"+n.ID, now, f)
		if prefix == "" {
			name = export.Filename(export.DefaultPrefix+"_"+n.ID, now, f)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(w, "exported %s to %s\n", n.ID, path)
	}
	return nil
}
