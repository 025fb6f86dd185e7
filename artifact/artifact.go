//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact stores the binary products of workflow runs, such as
// exported post documents and generated videos.
package artifact

import (
	"context"
	"errors"
	"strings"
)

// SharedPrefix marks a name stored at workspace level instead of under the
// run. Shared artifacts are visible from every run of the workspace.
const SharedPrefix = "shared:"

// ErrNotFound is returned when a name or version has no stored artifact.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a named blob with its media type.
type Artifact struct {
	// Data contains the raw bytes.
	Data []byte `json:"data,omitempty"`
	// MimeType is the IANA media type of Data.
	MimeType string `json:"mime_type,omitempty"`
	// URL is where the artifact can be fetched, when the backend exposes one.
	URL string `json:"url,omitempty"`
	// Name is a display name, usually the file name of a download.
	Name string `json:"name,omitempty"`
}

// Scope locates artifacts: a workspace groups runs, a run groups the
// artifacts its nodes produced.
type Scope struct {
	Workspace string `json:"workspace"`
	Run       string `json:"run"`
}

// IsShared reports whether name lives at workspace level.
func IsShared(name string) bool {
	return strings.HasPrefix(name, SharedPrefix)
}

// Service is a versioned artifact store. Every Save of an existing name
// adds a version; versions start at 0.
type Service interface {
	// Save stores art under name and returns the new version.
	Save(ctx context.Context, scope Scope, name string, art *Artifact) (int, error)
	// Load returns the given version of name, or the latest when version is nil.
	// A missing artifact yields ErrNotFound.
	Load(ctx context.Context, scope Scope, name string, version *int) (*Artifact, error)
	// Keys lists the names visible from scope, sorted.
	Keys(ctx context.Context, scope Scope) ([]string, error)
	// Delete removes every version of name. Deleting a missing name is not an error.
	Delete(ctx context.Context, scope Scope, name string) error
	// Versions lists the stored versions of name in ascending order.
	Versions(ctx context.Context, scope Scope, name string) ([]int, error)
}
