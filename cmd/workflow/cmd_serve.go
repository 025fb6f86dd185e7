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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-workflow-go/log"
	mcpserver "trpc.group/trpc-go/trpc-workflow-go/server/mcp"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		addr    string
		mcpAddr string
		load    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow canvas over HTTP and, optionally, MCP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if mcpAddr != "" {
				cfg.MCP.Addr = mcpAddr
			}
			a, err := openApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if load != "" {
				if _, _, err := loadDefinition(cmd, a, load); err != nil {
					return err
				}
			}

			rest, err := a.RESTServer()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 2)
			httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: rest.Handler()}
			go func() {
				log.Infof("workflow API listening on %s", cfg.Server.Addr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()
			if cfg.MCP.Addr != "" {
				tools := mcpserver.New(cfg.MCP.Addr, a.Store, a.Executor,
					mcpserver.WithCatalog(a.Catalog),
					mcpserver.WithArtifacts(a.Artifacts, cfg.Artifact.Workspace),
					mcpserver.WithExportPrefix(cfg.Export.Prefix),
				)
				go func() {
					log.Infof("workflow MCP tools listening on %s", cfg.MCP.Addr)
					if err := tools.Start(); err != nil {
						errCh <- fmt.Errorf("mcp server: %w", err)
					}
				}()
			}

			select {
			case <-ctx.Done():
				log.Infof("shutting down")
			case err = <-errCh:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
				log.Warnf("http shutdown: %v", serr)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&mcpAddr, "mcp-addr", "", "also serve MCP tools on this address")
	cmd.Flags().StringVar(&load, "load", "", "definition file or glob to place on the canvas at start")
	return cmd
}
