//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini implements the generation services on the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

var _ model.Service = (*Model)(nil)

const (
	// DefaultTextModel is the model used for text generation.
	DefaultTextModel = "gemini-2.5-flash"
	// DefaultImageModel is the model used for image editing.
	DefaultImageModel = "gemini-2.5-flash-image-preview"
	// DefaultVideoModel is the model used for video generation.
	DefaultVideoModel = "veo-3"
	// DefaultPollInterval is the wait between two checks of a video operation.
	DefaultPollInterval = 10 * time.Second

	// GoogleAPIKeyEnv is the environment variable name for the Google API key.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"

	modalityImage = "IMAGE"
	modalityText  = "TEXT"
)

// Progress messages of video generation.
const (
	ProgressVideoStarting   = "Starting video generation..."
	ProgressVideoProcessing = "Video processing has started. This may take a few minutes..."
	ProgressVideoChecking   = "Checking video status..."
	ProgressVideoFetching   = "Video processing complete. Fetching video..."
	ProgressVideoFetched    = "Video fetched successfully."
)

// ErrImageOrPromptMissing is returned by EditImage when an input is empty.
var ErrImageOrPromptMissing = errors.New("image or prompt is missing")

// api is the subset of the Gemini client the model calls.
type api interface {
	generateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	generateVideos(ctx context.Context, model, prompt string, image *genai.Image,
		config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	getVideosOperation(ctx context.Context,
		op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
}

type clientAPI struct {
	client *genai.Client
}

func (c clientAPI) generateContent(ctx context.Context, model string, contents []*genai.Content,
	config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, config)
}

func (c clientAPI) generateVideos(ctx context.Context, model, prompt string, image *genai.Image,
	config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return c.client.Models.GenerateVideos(ctx, model, prompt, image, config)
}

func (c clientAPI) getVideosOperation(ctx context.Context,
	op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return c.client.Operations.GetVideosOperation(ctx, op, nil)
}

// Model implements model.Service with Gemini text, image and video models.
type Model struct {
	api          api
	apiKey       string
	httpClient   *http.Client
	textModel    string
	imageModel   string
	videoModel   string
	pollInterval time.Duration
}

// Option represents a functional option for configuring the Model.
type Option func(*options)

type options struct {
	apiKey        string
	textModel     string
	imageModel    string
	videoModel    string
	pollInterval  time.Duration
	httpClient    *http.Client
	clientOptions *genai.ClientConfig
}

// WithAPIKey sets the Google API key.
// APIKey priority: WithClientOptions > WithAPIKey > GOOGLE_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.apiKey = apiKey
	}
}

// WithTextModel sets the text generation model.
func WithTextModel(name string) Option {
	return func(o *options) {
		o.textModel = name
	}
}

// WithImageModel sets the image editing model.
func WithImageModel(name string) Option {
	return func(o *options) {
		o.imageModel = name
	}
}

// WithVideoModel sets the video generation model.
func WithVideoModel(name string) Option {
	return func(o *options) {
		o.videoModel = name
	}
}

// WithPollInterval sets how often a running video operation is checked.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithHTTPClient sets the client used to download generated videos.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithClientOptions sets additional options for the Gemini client config.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(o *options) {
		c := *clientOptions
		o.clientOptions = &c
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		apiKey:        os.Getenv(GoogleAPIKeyEnv),
		textModel:     DefaultTextModel,
		imageModel:    DefaultImageModel,
		videoModel:    DefaultVideoModel,
		pollInterval:  DefaultPollInterval,
		httpClient:    http.DefaultClient,
		clientOptions: &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New creates a Gemini backed model with the given options.
func New(ctx context.Context, opts ...Option) (*Model, error) {
	o := newOptions(opts)
	if o.clientOptions.APIKey == "" {
		o.clientOptions.APIKey = o.apiKey
	}
	if o.clientOptions.APIKey == "" {
		return nil, fmt.Errorf("%s is not provided", GoogleAPIKeyEnv)
	}
	if o.clientOptions.Backend == genai.BackendUnspecified {
		o.clientOptions.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, o.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newModel(clientAPI{client: client}, o.clientOptions.APIKey, o), nil
}

func newModel(a api, apiKey string, o *options) *Model {
	return &Model{
		api:          a,
		apiKey:       apiKey,
		httpClient:   o.httpClient,
		textModel:    o.textModel,
		imageModel:   o.imageModel,
		videoModel:   o.videoModel,
		pollInterval: o.pollInterval,
	}
}

// GenerateText implements model.TextGenerator.
func (m *Model) GenerateText(ctx context.Context, prompt string) string {
	if prompt == "" {
		return model.EmptyPromptMessage
	}
	resp, err := m.api.generateContent(ctx, m.textModel, genai.Text(prompt), nil)
	if err != nil {
		log.Errorf("gemini text generation failed: %v", err)
		return model.TextError(err)
	}
	if text := resp.Text(); text != "" {
		return text
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return model.TextError(err)
	}
	return string(raw)
}

// EditImage implements model.ImageEditor.
func (m *Model) EditImage(ctx context.Context, image []byte, mimeType, prompt string) (*model.EditResult, error) {
	if len(image) == 0 || prompt == "" {
		return nil, ErrImageOrPromptMissing
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{modalityImage, modalityText},
	}
	resp, err := m.api.generateContent(ctx, m.imageModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("error editing image: %w", err)
	}
	result := &model.EditResult{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part == nil:
		case part.Text != "":
			result.Text = part.Text
		case part.InlineData != nil:
			result.Image = part.InlineData.Data
			result.MIMEType = part.InlineData.MIMEType
		}
	}
	if result.MIMEType == "" && len(result.Image) > 0 {
		result.MIMEType = mimeType
	}
	return result, nil
}

// GenerateVideo implements model.VideoGenerator. The operation is polled
// until done; the context aborts both the wait and the download.
func (m *Model) GenerateVideo(ctx context.Context, image []byte, mimeType, prompt string,
	progress model.ProgressFunc) (*model.Video, error) {
	if prompt == "" {
		return nil, model.ErrEmptyPrompt
	}
	if progress == nil {
		progress = func(string) {}
	}
	progress(ProgressVideoStarting)

	var img *genai.Image
	if len(image) > 0 && mimeType != "" {
		img = &genai.Image{ImageBytes: image, MIMEType: mimeType}
	}
	op, err := m.api.generateVideos(ctx, m.videoModel, prompt, img, &genai.GenerateVideosConfig{NumberOfVideos: 1})
	if err != nil {
		return nil, fmt.Errorf("error generating video: %w", err)
	}

	progress(ProgressVideoProcessing)
	for !op.Done {
		timer := time.NewTimer(m.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		progress(ProgressVideoChecking)
		if op, err = m.api.getVideosOperation(ctx, op); err != nil {
			return nil, fmt.Errorf("error generating video: %w", err)
		}
	}

	progress(ProgressVideoFetching)
	video := firstVideo(op)
	if video == nil || video.URI == "" {
		return nil, errors.New(model.VideoURINotFoundMessage)
	}
	out := &model.Video{URI: video.URI, MIMEType: video.MIMEType}
	if len(video.VideoBytes) > 0 {
		out.Data = video.VideoBytes
	} else if out.Data, err = m.download(ctx, video.URI); err != nil {
		return nil, err
	}
	if out.MIMEType == "" {
		out.MIMEType = model.DefaultVideoMIMEType
	}
	progress(ProgressVideoFetched)
	return out, nil
}

func firstVideo(op *genai.GenerateVideosOperation) *genai.Video {
	if op == nil || op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil
	}
	return op.Response.GeneratedVideos[0].Video
}

// download fetches uri authenticated with the API key.
func (m *Model) download(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid video uri %q: %w", uri, err)
	}
	q := u.Query()
	q.Set("key", m.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build video request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch video: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video: %w", err)
	}
	return data, nil
}
