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
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sonirn/Back-id/internal/cloud"
)

// InlineStrategy analyzes a video by embedding the raw asset bytes directly
// in the generation request instead of going through the Files API. It costs
// more per request but avoids the upload-and-process round trip, which makes
// it a useful fallback when file uploads are rejected or stuck.
type InlineStrategy struct {
	name  string
	model string
	keys  *cloud.KeyRing
}

// NewInlineStrategy is a constructor function that creates an inline-payload
// analysis strategy.
//
// Inputs:
//   - name: The strategy name used in logs and errors.
//   - model: The model identifier to generate with.
//   - keys: The rotating credential ring.
//
// Outputs:
//   - *InlineStrategy: A pointer to the new strategy.
func NewInlineStrategy(name string, model string, keys *cloud.KeyRing) *InlineStrategy {
	return &InlineStrategy{name: name, model: model, keys: keys}
}

// Name returns the strategy name.
func (s *InlineStrategy) Name() string {
	return s.name
}

// Analyze reads the session's assets from disk and sends them as inline MIME
// payloads alongside the prompt.
//
// Inputs:
//   - ctx: The context for the provider call.
//   - in: The assets and prompt for this session.
//
// Outputs:
//   - *Result: The parsed analysis on success.
//   - error: An error when reading an asset or the generation call fails.
func (s *InlineStrategy) Analyze(ctx context.Context, in *Input) (*Result, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(s.keys.Next()))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create client: %w", s.name, err)
	}
	defer client.Close()

	parts := []genai.Part{genai.Text(in.Prompt)}

	videoBytes, err := os.ReadFile(in.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read video: %w", s.name, err)
	}
	parts = append(parts, genai.Blob{MIMEType: in.VideoMIME, Data: videoBytes})

	if in.ImagePath != "" {
		imageBytes, err := os.ReadFile(in.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read image: %w", s.name, err)
		}
		parts = append(parts, genai.Blob{MIMEType: in.ImageMIME, Data: imageBytes})
	}
	if in.AudioPath != "" {
		audioBytes, err := os.ReadFile(in.AudioPath)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read audio: %w", s.name, err)
		}
		parts = append(parts, genai.Blob{MIMEType: in.AudioMIME, Data: audioBytes})
	}

	resp, err := client.GenerativeModel(s.model).GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("%s: generation failed: %w", s.name, err)
	}

	text := flattenResponse(resp)
	if text == "" {
		return nil, fmt.Errorf("%s: empty response from model", s.name)
	}
	return ParseResult(text, s.name), nil
}

// flattenResponse concatenates the text parts of the first candidate.
func flattenResponse(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
