//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package config holds the settings of the workflow server and CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-workflow-go/export"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model/gemini"
	"trpc.group/trpc-go/trpc-workflow-go/model/openai"
)

// Environment variables read by Load.
const (
	LogLevelEnv = "WORKFLOW_LOG_LEVEL"
	ConfigEnv   = "WORKFLOW_CONFIG"
)

// Text backends.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

// Artifact backends.
const (
	ArtifactInMemory = "inmemory"
	ArtifactCOS      = "cos"
)

// Config is the root of the configuration file.
type Config struct {
	Log       Log       `yaml:"log"`
	Backend   Backend   `yaml:"backend"`
	Catalog   Catalog   `yaml:"catalog"`
	Artifact  Artifact  `yaml:"artifact"`
	Executor  Executor  `yaml:"executor"`
	Server    Server    `yaml:"server"`
	MCP       MCP       `yaml:"mcp"`
	Export    Export    `yaml:"export"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Log configures the package level logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backend selects and configures the generation backends. Image editing
// and video generation are always served by Gemini when it has a key.
type Backend struct {
	Text   string `yaml:"text"`
	Gemini Gemini `yaml:"gemini"`
	OpenAI OpenAI `yaml:"openai"`
}

// Gemini configures the Gemini backend.
type Gemini struct {
	APIKey       string        `yaml:"api_key"`
	TextModel    string        `yaml:"text_model"`
	ImageModel   string        `yaml:"image_model"`
	VideoModel   string        `yaml:"video_model"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// OpenAI configures the OpenAI compatible text backend.
type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// DefaultCatalogDir is read when neither a catalog dir nor url is set.
const DefaultCatalogDir = "data/hispania"

// Catalog locates the product catalog: a local directory or a base URL.
type Catalog struct {
	Dir       string `yaml:"dir"`
	URL       string `yaml:"url"`
	ImageRoot string `yaml:"image_root"`
}

// Artifact configures where exports and videos are stored.
type Artifact struct {
	Backend   string `yaml:"backend"`
	Workspace string `yaml:"workspace"`
	COS       COS    `yaml:"cos"`
}

// COS configures the Tencent Cloud object storage backend.
type COS struct {
	BucketURL string        `yaml:"bucket_url"`
	SecretID  string        `yaml:"secret_id"`
	SecretKey string        `yaml:"secret_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Executor configures runs.
type Executor struct {
	Parallelism int  `yaml:"parallelism"`
	SkipCycles  bool `yaml:"skip_cycles"`
}

// Server configures the HTTP API.
type Server struct {
	Addr           string   `yaml:"addr"`
	Workers        int      `yaml:"workers"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MCP configures the MCP tool server. An empty address disables it.
type MCP struct {
	Addr string `yaml:"addr"`
}

// Export configures export documents.
type Export struct {
	Prefix string `yaml:"prefix"`
	Format string `yaml:"format"`
}

// Telemetry configures OpenTelemetry exporters.
type Telemetry struct {
	Traces   bool   `yaml:"traces"`
	Metrics  bool   `yaml:"metrics"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: Log{Level: log.LevelInfo, Format: log.FormatConsole},
		Backend: Backend{
			Text: BackendGemini,
			Gemini: Gemini{
				TextModel:    gemini.DefaultTextModel,
				ImageModel:   gemini.DefaultImageModel,
				VideoModel:   gemini.DefaultVideoModel,
				PollInterval: gemini.DefaultPollInterval,
			},
			OpenAI: OpenAI{Model: openai.DefaultModel},
		},
		Artifact:  Artifact{Backend: ArtifactInMemory, Workspace: "default"},
		Executor:  Executor{Parallelism: 1},
		Server:    Server{Addr: ":8080", Workers: 4, AllowedOrigins: []string{"*"}},
		Export:    Export{Prefix: export.DefaultPrefix, Format: string(export.FormatJSON)},
		Telemetry: Telemetry{Protocol: "grpc"},
	}
}

// Load reads the file at path over the defaults and applies environment
// overrides. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(c)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// applyEnv lets set environment variables win over the file.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(gemini.GoogleAPIKeyEnv); ok && v != "" {
		c.Backend.Gemini.APIKey = v
	}
	if v, ok := lookup(openai.APIKeyEnv); ok && v != "" {
		c.Backend.OpenAI.APIKey = v
	}
	if v, ok := lookup(openai.BaseURLEnv); ok && v != "" {
		c.Backend.OpenAI.BaseURL = v
	}
	if v, ok := lookup(LogLevelEnv); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError, log.LevelFatal:
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Log.Format != log.FormatConsole && c.Log.Format != log.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Backend.Text != BackendGemini && c.Backend.Text != BackendOpenAI {
		errs = append(errs, fmt.Errorf("backend.text: unknown backend %q", c.Backend.Text))
	}
	if c.Catalog.Dir != "" && c.Catalog.URL != "" {
		errs = append(errs, errors.New("catalog: dir and url are exclusive"))
	}
	switch c.Artifact.Backend {
	case ArtifactInMemory:
	case ArtifactCOS:
		if c.Artifact.COS.BucketURL == "" {
			errs = append(errs, errors.New("artifact.cos.bucket_url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifact.backend: unknown backend %q", c.Artifact.Backend))
	}
	if c.Executor.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("executor.parallelism must be at least 1, got %d", c.Executor.Parallelism))
	}
	if c.Server.Workers < 1 {
		errs = append(errs, fmt.Errorf("server.workers must be at least 1, got %d", c.Server.Workers))
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		errs = append(errs, fmt.Errorf("export.format: %w", err))
	}
	if p := c.Telemetry.Protocol; p != "grpc" && p != "http" {
		errs = append(errs, fmt.Errorf("telemetry.protocol: unknown protocol %q", p))
	}
	return errors.Join(errs...)
}
