//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Command workflow runs content workflows defined as node graphs.
//
// Usage:
//
//	workflow run 'flows/**/*.yaml' [--export csv] [--out dir] [--events]
//	workflow serve [--addr :8080] [--mcp-addr :3000]
//	workflow dot flows/posts.hcl [--png graph.png]
//	workflow catalog search pulsera
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-workflow-go/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "workflow",
		Short: "Run content generation workflows built from typed nodes",
		Long: "workflow executes node graphs that turn product data and prompts into\n" +
			"generated text, images, videos and social media posts.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}
	root.PersistentFlags().String("config", os.Getenv(config.ConfigEnv),
		"path to the YAML configuration file (env "+config.ConfigEnv+")")
	root.PersistentFlags().String("log-level", "", "override the configured log level")

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDOTCmd())
	root.AddCommand(newCatalogCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
