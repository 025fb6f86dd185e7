//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package dataurl encodes and decodes base64 data URLs of images.
package dataurl

import (
	"encoding/base64"
	"errors"
	"strings"
)

const (
	scheme       = "data:"
	imagePrefix  = "data:image"
	base64Marker = ";base64"
)

// ErrInvalid is returned for strings that are not base64 image data URLs.
var ErrInvalid = errors.New("not a base64 image data url")

// Encode returns data as a data URL of the given media type.
func Encode(mimeType string, data []byte) string {
	return scheme + mimeType + base64Marker + "," + base64.StdEncoding.EncodeToString(data)
}

// IsImage reports whether s looks like an image data URL.
func IsImage(s string) bool {
	return strings.HasPrefix(s, imagePrefix)
}

// Decode splits an image data URL into its bytes and media type.
func Decode(s string) ([]byte, string, error) {
	if !IsImage(s) {
		return nil, "", ErrInvalid
	}
	meta, payload, ok := strings.Cut(s, ",")
	if !ok {
		return nil, "", ErrInvalid
	}
	mimeType, params, _ := strings.Cut(strings.TrimPrefix(meta, scheme), ";")
	if mimeType == "" || !strings.Contains(";"+params, base64Marker) {
		return nil, "", ErrInvalid
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrInvalid
	}
	return data, mimeType, nil
}
