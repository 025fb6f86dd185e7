//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FileOverDefaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv(LogLevelEnv, "")
	path := writeConfig(t, `
log:
  level: debug
  format: json
backend:
  text: openai
  gemini:
    poll_interval: 2s
  openai:
    model: gpt-4.1
catalog:
  url: https://shop.example/data/hispania
artifact:
  backend: cos
  cos:
    bucket_url: https://bucket-123.cos.ap-guangzhou.myqcloud.com
executor:
  parallelism: 4
  skip_cycles: true
mcp:
  addr: ":3000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, BackendOpenAI, cfg.Backend.Text)
	assert.Equal(t, 2*time.Second, cfg.Backend.Gemini.PollInterval)
	assert.Equal(t, "gemini-2.5-flash", cfg.Backend.Gemini.TextModel, "unset keys keep defaults")
	assert.Equal(t, "gpt-4.1", cfg.Backend.OpenAI.Model)
	assert.Equal(t, "https://shop.example/data/hispania", cfg.Catalog.URL)
	assert.Equal(t, ArtifactCOS, cfg.Artifact.Backend)
	assert.Equal(t, "default", cfg.Artifact.Workspace)
	assert.Equal(t, 4, cfg.Executor.Parallelism)
	assert.True(t, cfg.Executor.SkipCycles)
	assert.Equal(t, ":3000", cfg.MCP.Addr)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EmptyFileAndPath(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)

	_, err = Load("")
	require.NoError(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 80\n"))
	assert.ErrorContains(t, err, "port")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "env-key")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv(LogLevelEnv, "warn")
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\nbackend:\n  gemini:\n    api_key: file-key\n"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Backend.Gemini.APIKey)
	assert.Equal(t, "sk-env", cfg.Backend.OpenAI.APIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := Default()
	cfg.Backend.Gemini.APIKey = "file-key"
	cfg.applyEnv(func(string) (string, bool) { return "", true })
	assert.Equal(t, "file-key", cfg.Backend.Gemini.APIKey)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"backend", func(c *Config) { c.Backend.Text = "claude" }, "backend.text"},
		{"catalog", func(c *Config) { c.Catalog.Dir, c.Catalog.URL = "d", "u" }, "exclusive"},
		{"cos bucket", func(c *Config) { c.Artifact.Backend = ArtifactCOS }, "bucket_url"},
		{"artifact backend", func(c *Config) { c.Artifact.Backend = "s3" }, "artifact.backend"},
		{"parallelism", func(c *Config) { c.Executor.Parallelism = 0 }, "parallelism"},
		{"workers", func(c *Config) { c.Server.Workers = 0 }, "workers"},
		{"export format", func(c *Config) { c.Export.Format = "xls" }, "export.format"},
		{"protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }, "telemetry.protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
