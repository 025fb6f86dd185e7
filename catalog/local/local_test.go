//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/catalog"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestService(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, catalog.CatalogFile), `{
		"updatedAt": "2025-01-01",
		"brand": {"name": "Hispania Colors", "site": "https://hispaniacolors.example"},
		"products": [{"id": "p1", "name": "Pulsera", "url": "https://x/p1", "price": 19.9}]
	}`)
	writeFile(t, filepath.Join(dir, catalog.ManifestFile), `{"p1": ["/images/p1/img1-w1200.webp"]}`)
	writeFile(t, filepath.Join(dir, "images", "p1", "img1-w1200.webp"), "RIFFxxxxWEBP")

	s := New(dir)
	ctx := context.Background()

	c, err := s.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hispania Colors", c.Brand.Name)
	require.Len(t, c.Products, 1)
	assert.Equal(t, 19.9, c.Products[0].Price)

	m, err := s.Manifest(ctx)
	require.NoError(t, err)
	paths := m.Lookup(&c.Products[0])
	require.Equal(t, []string{"/images/p1/img1-w1200.webp"}, paths)

	data, mimeType, err := s.ReadImage(ctx, paths[0])
	require.NoError(t, err)
	assert.Equal(t, "RIFFxxxxWEBP", string(data))
	assert.Equal(t, "image/webp", mimeType)

	_, _, err = s.ReadImage(ctx, "/images/missing.png")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_ImageRootAndTraversal(t *testing.T) {
	dir := t.TempDir()
	public := t.TempDir()
	writeFile(t, filepath.Join(public, "data", "img.png"), "\x89PNG\r\n\x1a\n")
	writeFile(t, filepath.Join(dir, "secret.png"), "nope")

	s := New(dir, WithImageRoot(public))
	_, mimeType, err := s.ReadImage(context.Background(), "/data/img.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)

	_, _, err = s.ReadImage(context.Background(), "../../"+filepath.Base(dir)+"/secret.png")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_MissingFiles(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Catalog(context.Background())
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	m, err := s.Manifest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestService_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, catalog.CatalogFile), "{")
	_, err := New(dir).Catalog(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(t.TempDir()).Catalog(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
