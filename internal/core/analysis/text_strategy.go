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
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/sonirn/Back-id/internal/cloud"
)

// TextStrategy is the last-resort fallback: it never looks at the uploaded
// assets and instead asks the model for a generic analysis and plan from the
// prompt alone. Results are marked degraded so callers and users can tell
// them apart from real multimodal analysis.
type TextStrategy struct {
	name               string
	model              *cloud.QuotaAwareGenerativeAIModel
	prompt             string // Degraded prompt used instead of the multimodal one.
	inputTokenCounter  metric.Int64Counter
	outputTokenCounter metric.Int64Counter
	retryCounter       metric.Int64Counter
}

// NewTextStrategy is a constructor function that creates the degraded
// text-only strategy.
//
// Inputs:
//   - name: The strategy name used in logs and errors.
//   - model: The quota-aware model wrapper to generate with.
//   - prompt: The degraded prompt; the uploaded file names are appended to
//     it per request. When empty, the input's multimodal prompt is used
//     instead.
//   - meter: The meter used to create token and retry counters.
//
// Outputs:
//   - *TextStrategy: A pointer to the new strategy.
func NewTextStrategy(name string, model *cloud.QuotaAwareGenerativeAIModel, prompt string, meter metric.Meter) *TextStrategy {
	inputTokens, _ := meter.Int64Counter(fmt.Sprintf("%s.tokens.input", name))
	outputTokens, _ := meter.Int64Counter(fmt.Sprintf("%s.tokens.output", name))
	retries, _ := meter.Int64Counter(fmt.Sprintf("%s.counter.retries", name))
	return &TextStrategy{
		name:               name,
		model:              model,
		prompt:             prompt,
		inputTokenCounter:  inputTokens,
		outputTokenCounter: outputTokens,
		retryCounter:       retries,
	}
}

// Name returns the strategy name.
func (s *TextStrategy) Name() string {
	return s.name
}

// Analyze sends the prompt without any attachments and marks the parsed
// result as degraded. The uploaded file names are interpolated into the
// prompt so the model at least knows which assets exist, even though it
// never sees their content.
func (s *TextStrategy) Analyze(ctx context.Context, in *Input) (*Result, error) {
	prompt := s.prompt
	if prompt == "" {
		prompt = in.Prompt
	}
	prompt = prompt + "\n\n" + AssetManifest(in)
	text, err := cloud.GenerateMultiModalResponse(
		ctx,
		s.inputTokenCounter,
		s.outputTokenCounter,
		s.retryCounter,
		0,
		s.model,
		genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("%s: generation failed: %w", s.name, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%s: empty response from model", s.name)
	}
	result := ParseResult(text, s.name)
	result.Degraded = true
	return result, nil
}

// AssetManifest describes the uploaded files by name only, one line per
// asset. Optional assets the user did not provide are left out.
//
// Inputs:
//   - in: The analysis input whose asset paths are listed.
//
// Outputs:
//   - string: The file listing for the degraded prompt.
func AssetManifest(in *Input) string {
	lines := []string{fmt.Sprintf("Video file: %s", filepath.Base(in.VideoPath))}
	if in.ImagePath != "" {
		lines = append(lines, fmt.Sprintf("Character image: %s", filepath.Base(in.ImagePath)))
	}
	if in.AudioPath != "" {
		lines = append(lines, fmt.Sprintf("Audio file: %s", filepath.Base(in.AudioPath)))
	}
	return strings.Join(lines, "\n")
}
