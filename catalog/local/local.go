//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package local reads the catalog from a directory on disk.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"trpc.group/trpc-go/trpc-workflow-go/catalog"
)

var _ catalog.Service = (*Service)(nil)

// Service loads catalog.json and images_manifest.json from a directory.
// Files are read on every call so edits show up without a restart.
type Service struct {
	dir  string
	root string
}

// Option configures a Service.
type Option func(*Service)

// WithImageRoot sets the directory manifest image paths are resolved
// against. It defaults to the catalog directory.
func WithImageRoot(root string) Option {
	return func(s *Service) {
		s.root = root
	}
}

// New creates a service over dir.
func New(dir string, opts ...Option) *Service {
	s := &Service{dir: dir, root: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog implements catalog.Service.
func (s *Service) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	var c catalog.Catalog
	if err := s.readJSON(ctx, catalog.CatalogFile, &c); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return &c, nil
}

// Manifest implements catalog.Service. A missing manifest is empty.
func (s *Service) Manifest(ctx context.Context) (catalog.Manifest, error) {
	m := catalog.Manifest{}
	err := s.readJSON(ctx, catalog.ManifestFile, &m)
	if errors.Is(err, catalog.ErrNotFound) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image manifest: %w", err)
	}
	return m, nil
}

// ReadImage implements catalog.Service. The path is confined to the image root.
func (s *Service) ReadImage(ctx context.Context, p string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+p)))
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("image %s: %w", p, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %s: %w", p, err)
	}
	return data, mimeType(p, data), nil
}

func (s *Service) readJSON(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, catalog.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}

func mimeType(p string, data []byte) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
