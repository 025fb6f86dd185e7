//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package node

import (
	"context"
	"encoding/json"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// NoProductMessage is the failure of product nodes with nothing wired in.
const NoProductMessage = "No product connected"

// postBrief is the copywriter brief preceding the product data.
var postBrief = []string{
	"Eres un copywriter senior de marca. Genera contenido para redes sociales de Hispania Colors (artesanía española, estilo náutico/elegante, tonos cálidos, cuidado por el detalle).",
	"Devuelve EXCLUSIVAMENTE un JSON válido con este esquema:",
	`{"product_id":"string","product_name":"string","product_url":"string","title_suggestion":"string","instagram_caption":"string","facebook_post":"string","tiktok_script":"string","linkedin_post":"string","suggested_hashtags":["string"],"short_copy":"string"}`,
	"Requisitos:",
	"- Español nativo, tono elegante, cercano y honesto. Nada de claims vacíos.",
	"- Instagram: 2-6 frases + 5-10 hashtags relacionados con el producto y la marca. Incluye CTA sutil (Descubre más en el enlace).",
	"- Facebook: 3-6 líneas, incluye beneficio clave y enlace (usa el campo url del producto).",
	"- TikTok: guion en bullets para 15-30s (hook, 2-3 puntos, CTA).",
	"- LinkedIn: enfoque artesanal y de valor, 5-8 líneas, más sobrio, sin exceso de emojis.",
	"- short_copy: 1-2 frases para banners o stories.",
	"- Mantén el naming exacto del producto. No inventes datos técnicos que no estén en la ficha.",
}

type socialPost struct {
	text model.TextGenerator
}

func (s *socialPost) Execute(ctx context.Context, call *graph.Call) (any, error) {
	product := call.Input(graph.SuffixInputProduct)
	if isEmpty(product) {
		return nil, graph.Validationf(NoProductMessage)
	}
	prompt, err := PostPrompt(product, textOf(call.Input(graph.SuffixInputStyle)))
	if err != nil {
		return nil, graph.Validationf("invalid product: %v", err)
	}
	raw := s.text.GenerateText(ctx, prompt)
	if parsed, ok := SalvageJSON(raw); ok {
		return parsed, nil
	}
	return raw, nil
}

// PostPrompt builds the generation prompt for product. The style line is
// left blank when style is empty.
func PostPrompt(product any, style string) (string, error) {
	data, err := json.Marshal(product)
	if err != nil {
		return "", err
	}
	styleLine := ""
	if style != "" {
		styleLine = "Preferencias de estilo: " + style
	}
	lines := append(append([]string(nil), postBrief...),
		"Datos del producto: "+string(data),
		styleLine,
	)
	return strings.Join(lines, "\n"), nil
}

// SalvageJSON parses s as JSON, falling back to the text between the first
// '{' and the last '}' for answers wrapped in prose or code fences. A JSON
// null counts as no result.
func SalvageJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil && v != nil {
		return v, true
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	v = nil
	if err := json.Unmarshal([]byte(s[start:end+1]), &v); err == nil && v != nil {
		return v, true
	}
	return nil, false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case map[string]any:
		return x == nil
	}
	return false
}
