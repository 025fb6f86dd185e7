//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package catalog provides the product catalog the product nodes read from.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// CatalogFile is the file name of the catalog document.
	CatalogFile = "catalog.json"
	// ManifestFile is the file name of the image manifest.
	ManifestFile = "images_manifest.json"
	// MaxSearchResults bounds the number of products Search returns.
	MaxSearchResults = 50

	maxSlugLength = 80
)

// ErrNotFound is returned when a product, manifest entry or image is missing.
var ErrNotFound = errors.New("not found")

// Product is one catalog entry.
type Product struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	URL              string   `json:"url"`
	Categories       []string `json:"categories,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Materials        []string `json:"materials,omitempty"`
	Colors           []string `json:"colors,omitempty"`
	Images           []string `json:"images,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	LongDescription  string   `json:"long_description,omitempty"`
	// Price is a number, a string or absent.
	Price any `json:"price,omitempty"`
}

// Key returns the identifier images are filed under: the id, or a slug of
// the name or url when the id is empty.
func (p *Product) Key() string {
	if p.ID != "" {
		return p.ID
	}
	if s := Slugify(p.Name); s != "" {
		return s
	}
	return Slugify(p.URL)
}

// Brand describes the catalog owner.
type Brand struct {
	Name string `json:"name"`
	Site string `json:"site"`
}

// Catalog is the product catalog document.
type Catalog struct {
	UpdatedAt string    `json:"updatedAt"`
	Brand     Brand     `json:"brand"`
	Products  []Product `json:"products"`
}

// Find returns the product with the given id.
func (c *Catalog) Find(id string) (*Product, bool) {
	for i := range c.Products {
		if c.Products[i].ID == id {
			p := c.Products[i]
			return &p, true
		}
	}
	return nil, false
}

// Manifest maps a product key or url to the paths of its local images.
type Manifest map[string][]string

// Lookup returns the image paths of p, trying its id, then its url, then
// the slug fallback used when the id is empty.
func (m Manifest) Lookup(p *Product) []string {
	for _, key := range []string{p.ID, p.URL, p.Key()} {
		if key == "" {
			continue
		}
		if paths := m[key]; len(paths) > 0 {
			return paths
		}
	}
	return nil
}

// Service is a source of catalog data.
type Service interface {
	// Catalog loads the catalog document.
	Catalog(ctx context.Context) (*Catalog, error)
	// Manifest loads the image manifest.
	Manifest(ctx context.Context) (Manifest, error)
	// ReadImage reads an image listed in the manifest and reports its MIME type.
	ReadImage(ctx context.Context, path string) ([]byte, string, error)
}

// Search filters products whose name, categories or tags contain query,
// case-insensitively. An empty query matches everything. At most
// MaxSearchResults products are returned, in catalog order.
func Search(products []Product, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Product, 0, min(len(products), MaxSearchResults))
	for _, p := range products {
		if len(out) == MaxSearchResults {
			break
		}
		if q == "" || matches(p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p Product, q string) bool {
	if strings.Contains(strings.ToLower(p.Name), q) {
		return true
	}
	for _, list := range [][]string{p.Categories, p.Tags} {
		for _, s := range list {
			if strings.Contains(strings.ToLower(s), q) {
				return true
			}
		}
	}
	return false
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, folds accents and joins the remaining alphanumeric
// runs with dashes. The result is at most 80 bytes long.
func Slugify(s string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(folded), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}

// FromValue extracts a product from a node value: a Product, a *Product, a
// decoded JSON object or a JSON string.
func FromValue(v any) (*Product, error) {
	switch p := v.(type) {
	case nil:
		return nil, ErrNotFound
	case Product:
		return &p, nil
	case *Product:
		if p == nil {
			return nil, ErrNotFound
		}
		c := *p
		return &c, nil
	case string:
		if strings.TrimSpace(p) == "" {
			return nil, ErrNotFound
		}
		var out Product
		if err := json.Unmarshal([]byte(p), &out); err != nil {
			return nil, fmt.Errorf("invalid product: %w", err)
		}
		return &out, nil
	case map[string]any:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("invalid product: %w", err)
		}
		var out Product
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("invalid product: %w", err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("invalid product: unsupported value of type %T", v)
	}
}
