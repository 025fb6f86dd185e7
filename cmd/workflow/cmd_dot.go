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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

func newDOTCmd() *cobra.Command {
	var (
		rankDir string
		ports   bool
		image   string
	)
	cmd := &cobra.Command{
		Use:   "dot <definition|glob>",
		Short: "Print a workflow definition as Graphviz DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			def, _, err := loadDefinition(cmd, a, args[0])
			if err != nil {
				return err
			}
			opts := []graph.VizOption{graph.WithRankDir(rankDir), graph.WithShowPorts(ports)}
			if def.Name != "" {
				opts = append(opts, graph.WithGraphLabel(def.Name))
			}
			if image != "" {
				format := strings.TrimPrefix(filepath.Ext(image), ".")
				if err := a.Store.RenderImage(cmd.Context(), format, image, opts...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rendered %s\n", image)
				return nil
			}
			return a.Store.WriteDOT(cmd.OutOrStdout(), opts...)
		},
	}
	cmd.Flags().StringVar(&rankDir, "rankdir", graph.RankDirLR, "layout direction: LR, TB, RL or BT")
	cmd.Flags().BoolVar(&ports, "ports", false, "label edges with their port names")
	cmd.Flags().StringVar(&image, "image", "", "render to this file with the graphviz dot binary; the extension picks the format")
	return cmd
}
