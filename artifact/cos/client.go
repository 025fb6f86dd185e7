//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package cos

import (
	"context"
	"io"
	"net/http"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// objectStore is the subset of the COS API the service uses.
type objectStore interface {
	listKeys(ctx context.Context, prefix string) ([]string, error)
	put(ctx context.Context, key string, body io.Reader, mimeType string) error
	get(ctx context.Context, key string) (io.ReadCloser, http.Header, error)
	remove(ctx context.Context, key string) error
}

type cosStore struct {
	client *cos.Client
}

// listKeys pages through the bucket listing until every key under prefix is seen.
func (c *cosStore) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	marker := ""
	for {
		result, _, err := c.client.Bucket.Get(ctx, &cos.BucketGetOptions{Prefix: prefix, Marker: marker})
		if err != nil {
			if cos.IsNotFoundError(err) {
				return keys, nil
			}
			return nil, err
		}
		for _, obj := range result.Contents {
			keys = append(keys, obj.Key)
		}
		if !result.IsTruncated || result.NextMarker == "" {
			return keys, nil
		}
		marker = result.NextMarker
	}
}

func (c *cosStore) put(ctx context.Context, key string, body io.Reader, mimeType string) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: mimeType},
	}
	_, err := c.client.Object.Put(ctx, key, body, opt)
	return err
}

func (c *cosStore) get(ctx context.Context, key string) (io.ReadCloser, http.Header, error) {
	resp, err := c.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, nil, err
	}
	return resp.Body, resp.Header, nil
}

func (c *cosStore) remove(ctx context.Context, key string) error {
	_, err := c.client.Object.Delete(ctx, key)
	return err
}
