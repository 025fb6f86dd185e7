//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package export

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

const hashtagsColumn = "suggested_hashtags"

var lineBreak = regexp.MustCompile(`\r?\n`)

// CSV renders items with the fixed Columns. The header row is bare; every
// data cell is double quoted with inner quotes doubled and line breaks
// collapsed to a space. Rows are joined by "\n" without a trailing newline.
func CSV(items []any) []byte {
	rows := make([]string, 0, len(items)+1)
	rows = append(rows, strings.Join(Columns, ","))
	cells := make([]string, len(Columns))
	for _, it := range items {
		rec := record(it)
		for i, col := range Columns {
			cells[i] = quote(Field(rec, col))
		}
		rows = append(rows, strings.Join(cells, ","))
	}
	return []byte(strings.Join(rows, "\n"))
}

func quote(s string) string {
	s = lineBreak.ReplaceAllString(s, " ")
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// record returns item as a field map; items that are not objects have no fields.
func record(item any) map[string]any {
	if m, ok := item.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// Field returns the text of column col in rec. Hashtag arrays are joined by
// spaces; absent, null, false and zero values are empty.
func Field(rec map[string]any, col string) string {
	v := rec[col]
	if arr, ok := v.([]any); ok && col == hashtagsColumn {
		parts := make([]string, len(arr))
		for i, el := range arr {
			parts[i] = scalar(el)
		}
		return strings.Join(parts, " ")
	}
	return scalar(v)
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if !x {
			return ""
		}
		return "true"
	case float64:
		if x == 0 {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = scalar(el)
		}
		return strings.Join(parts, ",")
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
