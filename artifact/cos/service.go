//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package cos provides a Tencent Cloud Object Storage implementation of the
// artifact service.
//
// Every version is a separate object:
//   - run artifacts:    {workspace}/runs/{run}/{name}/{version}
//   - shared artifacts: {workspace}/shared/{name}/{version}
//
// Credentials come from COS_SECRETID and COS_SECRETKEY unless WithSecretID,
// WithSecretKey or WithClient is given.
//
//	svc, err := cos.NewService("https://bucket-1250000000.cos.ap-guangzhou.myqcloud.com")
package cos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	iartifact "trpc.group/trpc-go/trpc-workflow-go/internal/artifact"
)

const defaultMimeType = "application/octet-stream"

var _ artifact.Service = (*Service)(nil)

// Service stores artifacts in a COS bucket.
type Service struct {
	store objectStore
}

// NewService creates a COS artifact service for the bucket at bucketURL.
func NewService(bucketURL string, opts ...Option) (*Service, error) {
	o := newOptions(opts)
	if o.client != nil {
		return &Service{store: &cosStore{client: o.client}}, nil
	}
	u, err := url.Parse(bucketURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid bucket url %q", bucketURL)
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, o.buildHTTPClient())
	return &Service{store: &cosStore{client: client}}, nil
}

// Save implements artifact.Service.
func (s *Service) Save(ctx context.Context, scope artifact.Scope, name string, art *artifact.Artifact) (int, error) {
	if art == nil {
		return 0, fmt.Errorf("save %s: nil artifact", name)
	}
	versions, err := s.Versions(ctx, scope, name)
	if err != nil {
		return 0, err
	}
	version := 0
	if len(versions) > 0 {
		version = versions[len(versions)-1] + 1
	}
	mimeType := art.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	key := iartifact.ObjectName(scope, name, version)
	if err := s.store.put(ctx, key, bytes.NewReader(art.Data), mimeType); err != nil {
		return 0, fmt.Errorf("failed to upload artifact %s: %w", name, err)
	}
	return version, nil
}

// Load implements artifact.Service.
func (s *Service) Load(ctx context.Context, scope artifact.Scope, name string, version *int) (*artifact.Artifact, error) {
	var target int
	if version == nil {
		versions, err := s.Versions(ctx, scope, name)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
		}
		target = versions[len(versions)-1]
	} else {
		target = *version
	}

	body, header, err := s.store.get(ctx, iartifact.ObjectName(scope, name, target))
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s version %d", artifact.ErrNotFound, name, target)
		}
		return nil, fmt.Errorf("failed to download artifact %s: %w", name, err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	mimeType := header.Get("Content-Type")
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	return &artifact.Artifact{Data: data, MimeType: mimeType, Name: name}, nil
}

// Keys implements artifact.Service.
func (s *Service) Keys(ctx context.Context, scope artifact.Scope) ([]string, error) {
	seen := make(map[string]struct{})
	for _, prefix := range []string{iartifact.RunPrefix(scope), iartifact.SharedPrefix(scope)} {
		keys, err := s.store.listKeys(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts under %s: %w", prefix, err)
		}
		for _, key := range keys {
			i := strings.LastIndex(key, "/")
			if i < 0 {
				continue
			}
			if name, ok := iartifact.NameFromPath(scope, key[:i]); ok {
				seen[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements artifact.Service.
func (s *Service) Delete(ctx context.Context, scope artifact.Scope, name string) error {
	versions, err := s.Versions(ctx, scope, name)
	if err != nil {
		return err
	}
	for _, v := range versions {
		err := s.store.remove(ctx, iartifact.ObjectName(scope, name, v))
		if err != nil && !cos.IsNotFoundError(err) {
			return fmt.Errorf("failed to delete artifact %s version %d: %w", name, v, err)
		}
	}
	return nil
}

// Versions implements artifact.Service.
func (s *Service) Versions(ctx context.Context, scope artifact.Scope, name string) ([]int, error) {
	prefix := iartifact.VersionPrefix(scope, name)
	keys, err := s.store.listKeys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", name, err)
	}
	versions := make([]int, 0, len(keys))
	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		if v, err := strconv.Atoi(rest); err == nil {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)
	return versions, nil
}
