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
	"net/http"
	"os"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// Environment variables read for credentials when no option sets them.
const (
	SecretIDEnv  = "COS_SECRETID"
	SecretKeyEnv = "COS_SECRETKEY"
)

const defaultTimeout = 60 * time.Second

// Option configures the COS artifact service.
type Option func(*options)

type options struct {
	client     *cos.Client
	httpClient *http.Client
	timeout    time.Duration
	secretID   string
	secretKey  string
}

// WithClient uses a pre-configured COS client. It takes precedence over
// every other option.
func WithClient(c *cos.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithHTTPClient sets the HTTP client used for COS requests. The client is
// expected to sign requests itself.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the timeout of HTTP requests.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSecretID sets the secret ID, overriding COS_SECRETID.
func WithSecretID(id string) Option {
	return func(o *options) {
		o.secretID = id
	}
}

// WithSecretKey sets the secret key, overriding COS_SECRETKEY.
func WithSecretKey(key string) Option {
	return func(o *options) {
		o.secretKey = key
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv(SecretIDEnv),
		secretKey: os.Getenv(SecretKeyEnv),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// buildHTTPClient returns the configured client or one signing with the credentials.
func (o *options) buildHTTPClient() *http.Client {
	if o.httpClient != nil {
		if o.timeout > 0 {
			o.httpClient.Timeout = o.timeout
		}
		return o.httpClient
	}
	return &http.Client{
		Timeout: o.timeout,
		Transport: &cos.AuthorizationTransport{
			SecretID:  o.secretID,
			SecretKey: o.secretKey,
		},
	}
}
