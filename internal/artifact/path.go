//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact holds the key layout shared by artifact backends.
//
// Run artifacts live at {workspace}/runs/{run}/{name} and shared artifacts at
// {workspace}/shared/{name}, the "shared:" prefix removed. Versioned object
// stores append /{version}.
package artifact

import (
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
)

const (
	runsDir   = "runs"
	sharedDir = "shared"
)

// Path returns the unversioned key of name within scope.
func Path(scope artifact.Scope, name string) string {
	if artifact.IsShared(name) {
		return SharedPrefix(scope) + strings.TrimPrefix(name, artifact.SharedPrefix)
	}
	return RunPrefix(scope) + name
}

// ObjectName returns the key of one version of name.
func ObjectName(scope artifact.Scope, name string, version int) string {
	return fmt.Sprintf("%s/%d", Path(scope, name), version)
}

// VersionPrefix returns the prefix under which every version of name is stored.
func VersionPrefix(scope artifact.Scope, name string) string {
	return Path(scope, name) + "/"
}

// RunPrefix returns the prefix of the run's own artifacts.
func RunPrefix(scope artifact.Scope) string {
	return fmt.Sprintf("%s/%s/%s/", scope.Workspace, runsDir, scope.Run)
}

// SharedPrefix returns the prefix of the workspace level artifacts.
func SharedPrefix(scope artifact.Scope) string {
	return fmt.Sprintf("%s/%s/", scope.Workspace, sharedDir)
}

// NameFromPath maps a key back to the artifact name seen from scope. The
// second result is false when the key belongs to neither prefix.
func NameFromPath(scope artifact.Scope, key string) (string, bool) {
	if rest, ok := strings.CutPrefix(key, RunPrefix(scope)); ok {
		return rest, rest != ""
	}
	if rest, ok := strings.CutPrefix(key, SharedPrefix(scope)); ok {
		return artifact.SharedPrefix + rest, rest != ""
	}
	return "", false
}
