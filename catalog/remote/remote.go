//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package remote fetches the catalog over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/catalog"
)

var _ catalog.Service = (*Service)(nil)

// Service reads catalog.json and images_manifest.json below a base URL.
// Absolute image paths resolve against the base URL's host.
type Service struct {
	base   *url.URL
	client *http.Client
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// New creates a service for the catalog published at baseURL.
func New(baseURL string, opts ...Option) (*Service, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog url %q: %w", baseURL, err)
	}
	s := &Service{base: base, client: http.DefaultClient}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Catalog implements catalog.Service.
func (s *Service) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	var c catalog.Catalog
	if err := s.getJSON(ctx, catalog.CatalogFile, &c); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return &c, nil
}

// Manifest implements catalog.Service. A missing manifest is empty.
func (s *Service) Manifest(ctx context.Context) (catalog.Manifest, error) {
	m := catalog.Manifest{}
	data, _, err := s.get(ctx, catalog.ManifestFile)
	if err == errNotFound {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", catalog.ManifestFile, err)
	}
	return m, nil
}

// ReadImage implements catalog.Service.
func (s *Service) ReadImage(ctx context.Context, p string) ([]byte, string, error) {
	data, contentType, err := s.get(ctx, p)
	if err == errNotFound {
		return nil, "", fmt.Errorf("image %s: %w", p, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image %s: %w", p, err)
	}
	if mediaType, _, perr := mime.ParseMediaType(contentType); perr == nil && strings.HasPrefix(mediaType, "image/") {
		return data, mediaType, nil
	}
	return data, http.DetectContentType(data), nil
}

var errNotFound = fmt.Errorf("remote: %w", catalog.ErrNotFound)

func (s *Service) getJSON(ctx context.Context, ref string, v any) error {
	data, _, err := s.get(ctx, ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid %s: %w", ref, err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, ref string) ([]byte, string, error) {
	rel, err := url.Parse(ref)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base.ResolveReference(rel).String(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, "", errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}
