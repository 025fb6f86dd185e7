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
	"errors"
	"fmt"
	"mime"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/internal/dataurl"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// Image editor failure messages.
const (
	MissingImageOrPromptMessage = "Missing image or prompt for Image Editor."
	NoEditedImageMessage        = "Image editing failed to produce an image."
)

// videoDir groups stored videos inside a run scope.
const videoDir = "videos/"

type textGenerator struct {
	text model.TextGenerator
}

// Execute sends the wired prompt as is; a missing prompt is left for the
// backend to answer.
func (g *textGenerator) Execute(ctx context.Context, call *graph.Call) (any, error) {
	return g.text.GenerateText(ctx, textOf(call.Input(graph.SuffixInput))), nil
}

type imageEditor struct {
	editor model.ImageEditor
}

func (e *imageEditor) Execute(ctx context.Context, call *graph.Call) (any, error) {
	prompt := textOf(call.Input(graph.SuffixInputText))
	image, mimeType, err := dataurl.Decode(imageOf(call.Input(graph.SuffixInputImage)))
	if err != nil || prompt == "" {
		return nil, graph.Validationf(MissingImageOrPromptMessage)
	}
	res, err := e.editor.EditImage(ctx, image, mimeType, prompt)
	if err != nil {
		return nil, serviceError(err)
	}
	if res == nil || len(res.Image) == 0 {
		msg := NoEditedImageMessage
		if res != nil && res.Text != "" {
			msg = res.Text
		}
		return nil, graph.ServiceFailure(errors.New(msg))
	}
	// The edited image keeps the media type of the source.
	return ImageResult{Image: dataurl.Encode(mimeType, res.Image), Text: res.Text}, nil
}

type videoGenerator struct {
	video     model.VideoGenerator
	artifacts artifact.Service
	workspace string
}

func (g *videoGenerator) Execute(ctx context.Context, call *graph.Call) (any, error) {
	prompt := textOf(call.Input(graph.SuffixInputText))
	// The image is optional: anything that is not an image data URL is dropped.
	image, mimeType, err := dataurl.Decode(imageOf(call.Input(graph.SuffixInputImage)))
	if err != nil {
		image, mimeType = nil, ""
	}
	video, err := g.video.GenerateVideo(ctx, image, mimeType, prompt, call.Progress.Report)
	if err != nil {
		return nil, serviceError(err)
	}
	if video == nil || video.URI == "" {
		return nil, graph.ServiceFailure(errors.New(model.VideoURINotFoundMessage))
	}
	ref := VideoRef{URI: video.URI, MIMEType: video.MIMEType, Size: len(video.Data)}
	if g.artifacts == nil || len(video.Data) == 0 {
		return ref, nil
	}
	ref.Scope = artifact.Scope{Workspace: g.workspace, Run: call.RunID}
	ref.Artifact = videoDir + call.Node.ID + videoExt(video.MIMEType)
	ref.Version, err = g.artifacts.Save(ctx, ref.Scope, ref.Artifact, &artifact.Artifact{
		Data:     video.Data,
		MimeType: video.MIMEType,
		URL:      video.URI,
		Name:     ref.Artifact,
	})
	if err != nil {
		return nil, serviceError(fmt.Errorf("store video: %w", err))
	}
	log.Debugf("node %s stored video %s version %d", call.Node.ID, ref.Artifact, ref.Version)
	return ref, nil
}

func videoExt(mimeType string) string {
	if mimeType == model.DefaultVideoMIMEType {
		return ".mp4"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".mp4"
}
