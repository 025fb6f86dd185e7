//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the generation services the workflow nodes call.
package model

import (
	"context"
	"errors"
	"fmt"
)

// Messages returned by text generation in place of an error.
const (
	EmptyPromptMessage      = "Error: Prompt is empty."
	TextErrorMessagePrefix  = "Error generating text: "
	VideoURINotFoundMessage = "Video URI not found in response."
	DefaultVideoMIMEType    = "video/mp4"
	DefaultImageMIMEType    = "image/png"
)

// ErrNotSupported is returned by backends that lack a capability.
var ErrNotSupported = errors.New("operation not supported by this backend")

// ErrEmptyPrompt is returned by image and video generation for an empty prompt.
var ErrEmptyPrompt = errors.New(EmptyPromptMessage)

// TextError folds err into the string a text generator returns instead of failing.
func TextError(err error) string {
	return TextErrorMessagePrefix + err.Error()
}

// TextGenerator produces text from a prompt. It never fails: problems are
// reported as a human readable string in place of the generated text.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) string
}

// EditResult is the outcome of an image edit.
type EditResult struct {
	// Image holds the edited image bytes; empty when the backend produced none.
	Image []byte
	// MIMEType is the type of Image as reported by the backend.
	MIMEType string
	// Text is the accompanying text, if any.
	Text string
}

// ImageEditor edits an image following a prompt.
type ImageEditor interface {
	EditImage(ctx context.Context, image []byte, mimeType, prompt string) (*EditResult, error)
}

// ProgressFunc receives progress messages of a long running generation.
type ProgressFunc func(msg string)

// Video is a generated video.
type Video struct {
	// URI is the location the backend published the video at.
	URI string
	// Data holds the downloaded video bytes.
	Data []byte
	// MIMEType is the type of Data.
	MIMEType string
}

// VideoGenerator produces a video from a prompt and an optional image.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, image []byte, mimeType, prompt string, progress ProgressFunc) (*Video, error)
}

// Service bundles every generation capability.
type Service interface {
	TextGenerator
	ImageEditor
	VideoGenerator
}

type composite struct {
	TextGenerator
	ImageEditor
	VideoGenerator
}

// Compose builds a Service from separate backends. A nil image editor or
// video generator answers with ErrNotSupported.
func Compose(text TextGenerator, image ImageEditor, video VideoGenerator) Service {
	if image == nil {
		image = unsupported{}
	}
	if video == nil {
		video = unsupported{}
	}
	return composite{TextGenerator: text, ImageEditor: image, VideoGenerator: video}
}

type unsupported struct{}

func (unsupported) EditImage(context.Context, []byte, string, string) (*EditResult, error) {
	return nil, fmt.Errorf("image editing: %w", ErrNotSupported)
}

func (unsupported) GenerateVideo(context.Context, []byte, string, string, ProgressFunc) (*Video, error) {
	return nil, fmt.Errorf("video generation: %w", ErrNotSupported)
}
