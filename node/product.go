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

	"trpc.group/trpc-go/trpc-workflow-go/catalog"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/internal/dataurl"
)

// NoLocalImagesMessage is the failure of a product without manifest entry.
const NoLocalImagesMessage = "No local images found for this product."

var errNoCatalog = errors.New("no catalog configured")

type imageLoader struct {
	catalog catalog.Service
}

// Execute loads the first manifest image of the wired product as a data URL.
func (l *imageLoader) Execute(ctx context.Context, call *graph.Call) (any, error) {
	p, err := catalog.FromValue(call.Input(graph.SuffixInputProduct))
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, graph.Validationf(NoProductMessage)
	}
	if err != nil {
		return nil, graph.Validationf("%v", err)
	}
	if l.catalog == nil {
		return nil, graph.ServiceFailure(errNoCatalog)
	}
	manifest, err := l.catalog.Manifest(ctx)
	if err != nil {
		return nil, serviceError(fmt.Errorf("load image manifest: %w", err))
	}
	paths := manifest.Lookup(p)
	if len(paths) == 0 {
		return nil, graph.Validationf(NoLocalImagesMessage)
	}
	data, mimeType, err := l.catalog.ReadImage(ctx, paths[0])
	if err != nil {
		return nil, serviceError(fmt.Errorf("read image %s: %w", paths[0], err))
	}
	info := paths[0]
	if p.Name != "" {
		info = p.Name + " (" + paths[0] + ")"
	}
	return ImageResult{Image: dataurl.Encode(mimeType, data), Text: info}, nil
}
