// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/sonirn/Back-id/internal/cloud"
)

// DefaultPollInterval is how often an uploaded file's processing state is
// checked before analysis can start.
const DefaultPollInterval = 2 * time.Second

// defaultMaxPolls bounds the wait for file processing. Uploads still
// processing after this many checks fail the strategy.
const defaultMaxPolls = 30

// UploadStrategy analyzes a video by uploading it through the Files API and
// referencing the stored file in the prompt. This is the preferred path: the
// model gets full access to the video stream. The same credential must be
// used for the upload and the generation call, so the strategy draws one key
// per attempt rather than rotating mid-request.
type UploadStrategy struct {
	name         string
	model        string
	keys         *cloud.KeyRing
	config       *genai.GenerateContentConfig
	pollInterval time.Duration
	maxPolls     int
}

// NewUploadStrategy is a constructor function that creates a file-upload
// analysis strategy.
//
// Inputs:
//   - name: The strategy name used in logs and errors.
//   - model: The model identifier to generate with.
//   - keys: The rotating credential ring.
//   - config: The generation settings, may be nil for provider defaults.
//
// Outputs:
//   - *UploadStrategy: A pointer to the new strategy.
func NewUploadStrategy(name string, model string, keys *cloud.KeyRing, config *genai.GenerateContentConfig) *UploadStrategy {
	return &UploadStrategy{
		name:         name,
		model:        model,
		keys:         keys,
		config:       config,
		pollInterval: DefaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
}

// WithPollInterval overrides the file processing poll cadence. Used by tests
// to compress waiting.
func (s *UploadStrategy) WithPollInterval(interval time.Duration) *UploadStrategy {
	s.pollInterval = interval
	return s
}

// Name returns the strategy name.
func (s *UploadStrategy) Name() string {
	return s.name
}

// Analyze uploads the session's assets through the Files API, waits for
// processing, and asks the model for the analysis and plan.
//
// Logic Flow:
//  1. Build a client with the next rotated credential.
//  2. Upload the video and wait until the stored file becomes active.
//  3. Upload the optional image and audio assets the same way.
//  4. Send the prompt plus file references to the model.
//  5. Parse the response into an analysis and a plan.
//
// Inputs:
//   - ctx: The context for all provider calls.
//   - in: The assets and prompt for this session.
//
// Outputs:
//   - *Result: The parsed analysis on success.
//   - error: An error when any upload, the processing wait, or the
//     generation call fails, so the chain can fall through.
func (s *UploadStrategy) Analyze(ctx context.Context, in *Input) (*Result, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.keys.Next(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create client: %w", s.name, err)
	}

	parts := []*genai.Part{genai.NewPartFromText(in.Prompt)}

	video, err := s.uploadAndWait(ctx, client, in.VideoPath, in.VideoMIME)
	if err != nil {
		return nil, err
	}
	parts = append(parts, genai.NewPartFromURI(video.URI, video.MIMEType))

	if in.ImagePath != "" {
		image, err := s.uploadAndWait(ctx, client, in.ImagePath, in.ImageMIME)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.NewPartFromURI(image.URI, image.MIMEType))
	}
	if in.AudioPath != "" {
		audio, err := s.uploadAndWait(ctx, client, in.AudioPath, in.AudioMIME)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.NewPartFromURI(audio.URI, audio.MIMEType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, s.model, contents, s.config)
	if err != nil {
		return nil, fmt.Errorf("%s: generation failed: %w", s.name, err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%s: empty response from model", s.name)
	}
	return ParseResult(text, s.name), nil
}

// uploadAndWait pushes a local file through the Files API and polls until it
// leaves the processing state. Any terminal state other than active fails the
// upload.
func (s *UploadStrategy) uploadAndWait(ctx context.Context, client *genai.Client, path string, mimeType string) (*genai.File, error) {
	file, err := client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to upload %s: %w", s.name, path, err)
	}

	name := file.Name
	for i := 0; file.State == genai.FileStateProcessing; i++ {
		if i >= s.maxPolls {
			return nil, fmt.Errorf("%s: file %s still processing after %d checks", s.name, name, s.maxPolls)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
		file, err = client.Files.Get(ctx, name, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to poll file %s: %w", s.name, name, err)
		}
	}

	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("%s: file %s ended in state %s", s.name, file.Name, file.State)
	}
	slog.DebugContext(ctx, "uploaded file is active", "strategy", s.name, "file", file.Name)
	return file, nil
}
