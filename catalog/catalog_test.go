//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	products := []Product{
		{ID: "p1", Name: "Pulsera Náutica", Categories: []string{"Joyería"}},
		{ID: "p2", Name: "Llavero", Tags: []string{"regalo", "marinero"}},
		{ID: "p3", Name: "Cinturón", Categories: []string{"Accesorios"}, Tags: []string{"cuero"}},
	}
	ids := func(ps []Product) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(Search(products, "  ")))
	assert.Equal(t, []string{"p1"}, ids(Search(products, "PULSERA")))
	assert.Equal(t, []string{"p1"}, ids(Search(products, "joy")))
	assert.Equal(t, []string{"p2"}, ids(Search(products, "Marin")))
	assert.Empty(t, Search(products, "zapato"))

	var many []Product
	for i := 0; i < 120; i++ {
		many = append(many, Product{ID: fmt.Sprint(i), Name: "Pulsera"})
	}
	got := Search(many, "pulsera")
	require.Len(t, got, MaxSearchResults)
	assert.Equal(t, "0", got[0].ID)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Pulsera Náutica Azul":       "pulsera-nautica-azul",
		"  --Hello,   World!--  ":    "hello-world",
		"https://shop.example/p/123": "https-shop-example-p-123",
		"":                           "",
		"Ñandú & Cía.":               "nandu-cia",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
	long := Slugify(fmt.Sprintf("%0100d", 7))
	assert.Len(t, long, 80)
}

func TestManifestLookup(t *testing.T) {
	m := Manifest{
		"p1":                   {"/images/p1/img1.webp"},
		"https://shop/llavero": {"/images/llavero/img1.webp"},
		"cinturon-de-cuero":    {"/images/cinturon/img1.webp"},
		"empty":                {},
	}
	assert.Equal(t, []string{"/images/p1/img1.webp"}, m.Lookup(&Product{ID: "p1", URL: "https://shop/llavero"}))
	assert.Equal(t, []string{"/images/llavero/img1.webp"}, m.Lookup(&Product{ID: "p2", URL: "https://shop/llavero"}))
	assert.Equal(t, []string{"/images/cinturon/img1.webp"}, m.Lookup(&Product{Name: "Cinturón de cuero"}))
	assert.Nil(t, m.Lookup(&Product{ID: "empty"}))
}

func TestFromValue(t *testing.T) {
	want := &Product{ID: "p1", Name: "Pulsera", URL: "https://x/p1", Tags: []string{"a"}}

	for name, v := range map[string]any{
		"value":   *want,
		"pointer": want,
		"map": map[string]any{
			"id": "p1", "name": "Pulsera", "url": "https://x/p1", "tags": []any{"a"},
		},
		"json": `{"id":"p1","name":"Pulsera","url":"https://x/p1","tags":["a"]}`,
	} {
		got, err := FromValue(v)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := FromValue(nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = FromValue((*Product)(nil))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = FromValue("")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = FromValue(42)
	assert.Error(t, err)
	_, err = FromValue("not json")
	assert.Error(t, err)
}

func TestCatalogFind(t *testing.T) {
	c := &Catalog{Products: []Product{{ID: "a"}, {ID: "b", Name: "B"}}}
	p, ok := c.Find("b")
	require.True(t, ok)
	assert.Equal(t, "B", p.Name)
	_, ok = c.Find("z")
	assert.False(t, ok)
}
