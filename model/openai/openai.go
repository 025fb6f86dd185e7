//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides a text generator backed by OpenAI compatible chat
// completion APIs.
package openai

import (
	"context"
	"errors"
	"os"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

var _ model.TextGenerator = (*Model)(nil)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4o-mini"
	// APIKeyEnv is the environment variable name for the OpenAI API key.
	APIKeyEnv = "OPENAI_API_KEY"
	// BaseURLEnv is the environment variable name for the API base URL.
	BaseURLEnv = "OPENAI_BASE_URL"
)

// Model generates text through the chat completions endpoint.
type Model struct {
	client openai.Client
	name   string
}

// Option is a function that configures a Model.
type Option func(*options)

type options struct {
	APIKey        string
	BaseURL       string
	OpenAIOptions []openaiopt.RequestOption
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.APIKey = key
	}
}

// WithBaseURL sets the base URL of an OpenAI compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.BaseURL = url
	}
}

// WithOpenAIOptions appends raw client options.
func WithOpenAIOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) {
		o.OpenAIOptions = append(o.OpenAIOptions, opts...)
	}
}

// New creates a text generator for the named chat model.
func New(name string, opts ...Option) *Model {
	o := &options{
		APIKey:  os.Getenv(APIKeyEnv),
		BaseURL: os.Getenv(BaseURLEnv),
	}
	for _, opt := range opts {
		opt(o)
	}
	if name == "" {
		name = DefaultModel
	}
	var clientOpts []openaiopt.RequestOption
	if o.APIKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.BaseURL))
	}
	clientOpts = append(clientOpts, o.OpenAIOptions...)
	return &Model{
		client: openai.NewClient(clientOpts...),
		name:   name,
	}
}

// Name returns the chat model name.
func (m *Model) Name() string {
	return m.name
}

// GenerateText implements model.TextGenerator.
func (m *Model) GenerateText(ctx context.Context, prompt string) string {
	if prompt == "" {
		return model.EmptyPromptMessage
	}
	chatCompletion, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(m.name),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		log.Errorf("openai text generation failed: %v", err)
		return model.TextError(err)
	}
	if len(chatCompletion.Choices) == 0 {
		return model.TextError(errors.New("response contains no choices"))
	}
	return chatCompletion.Choices[0].Message.Content
}
