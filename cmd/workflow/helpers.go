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

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-workflow-go/app"
	"trpc.group/trpc-go/trpc-workflow-go/config"
	"trpc.group/trpc-go/trpc-workflow-go/definition"
)

// loadConfig reads the --config file and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// openApp assembles the engine with logs on the command's stderr.
func openApp(cmd *cobra.Command, cfg *config.Config) (*app.App, error) {
	return app.New(cmd.Context(), cfg, app.WithLogWriter(cmd.ErrOrStderr()))
}

// loadDefinition builds the definitions matched by pattern into the app's
// store and returns the node ids by ref.
func loadDefinition(cmd *cobra.Command, a *app.App, pattern string) (*definition.Definition, definition.Refs, error) {
	def, err := definition.LoadGlob(pattern)
	if err != nil {
		return nil, nil, err
	}
	refs, err := def.Build(cmd.Context(), a.Store, definition.WithCatalog(a.Catalog))
	if err != nil {
		return nil, nil, fmt.Errorf("build %s: %w", pattern, err)
	}
	return def, refs, nil
}
