//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory implementation of the artifact service.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	iartifact "trpc.group/trpc-go/trpc-workflow-go/internal/artifact"
)

var _ artifact.Service = (*Service)(nil)

// Service keeps every version of every artifact in memory. It is the default
// store of the CLI and the server.
type Service struct {
	mu sync.RWMutex
	// versions maps an unversioned path to its versions, oldest first.
	versions map[string][]*artifact.Artifact
}

// NewService creates an empty in-memory artifact service.
func NewService() *Service {
	return &Service{versions: make(map[string][]*artifact.Artifact)}
}

// Save implements artifact.Service.
func (s *Service) Save(ctx context.Context, scope artifact.Scope, name string, art *artifact.Artifact) (int, error) {
	if art == nil {
		return 0, fmt.Errorf("save %s: nil artifact", name)
	}
	stored := *art
	stored.Data = append([]byte(nil), art.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	path := iartifact.Path(scope, name)
	s.versions[path] = append(s.versions[path], &stored)
	return len(s.versions[path]) - 1, nil
}

// Load implements artifact.Service.
func (s *Service) Load(ctx context.Context, scope artifact.Scope, name string, version *int) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.versions[iartifact.Path(scope, name)]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	idx := len(versions) - 1
	if version != nil {
		idx = *version
		if idx < 0 || idx >= len(versions) {
			return nil, fmt.Errorf("%w: %s version %d", artifact.ErrNotFound, name, *version)
		}
	}
	out := *versions[idx]
	return &out, nil
}

// Keys implements artifact.Service.
func (s *Service) Keys(ctx context.Context, scope artifact.Scope) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0)
	for path := range s.versions {
		if name, ok := iartifact.NameFromPath(scope, path); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements artifact.Service.
func (s *Service) Delete(ctx context.Context, scope artifact.Scope, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, iartifact.Path(scope, name))
	return nil
}

// Versions implements artifact.Service.
func (s *Service) Versions(ctx context.Context, scope artifact.Scope, name string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.versions[iartifact.Path(scope, name)])
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out, nil
}
