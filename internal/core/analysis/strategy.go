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

// Package analysis implements multimodal video analysis against the Gemini
// API. Several strategies exist because the providers differ in capability
// and reliability: file-upload analysis gives the model full video access,
// inline analysis embeds the raw bytes in the request, and text-only analysis
// is the degraded fallback when no multimodal path works. The Chain runs them
// in order and returns the first success.
package analysis

import (
	"context"
	"encoding/json"
	"strings"
)

// Input carries the assets and prompt for one analysis request. ImagePath and
// AudioPath are optional; empty paths mean the asset was not provided.
type Input struct {
	SessionID string // Upload session identifier, used in logs.
	VideoPath string // Local path of the sample video.
	VideoMIME string
	ImagePath string // Local path of the character image, optional.
	ImageMIME string
	AudioPath string // Local path of the audio track, optional.
	AudioMIME string
	Prompt    string // The analysis prompt sent with the assets.
}

// Result is a parsed analysis outcome: the free-form analysis text and the
// structured generation plan, plus which strategy produced it.
type Result struct {
	Analysis string
	Plan     string
	Strategy string // Name of the strategy that produced the result.
	Degraded bool   // True when the result came without looking at the video.
}

// Strategy is a single way of obtaining an analysis. Analyze returns an error
// when this path cannot produce a result, letting the chain fall through to
// the next strategy.
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, in *Input) (*Result, error)
}

// planResponse is the JSON shape the prompt asks the model for.
type planResponse struct {
	Analysis string `json:"analysis"`
	Plan     string `json:"plan"`
}

// ParseResult decodes a raw model response into a Result. The decode is two
// stage: first the response is treated as the JSON object the prompt asks
// for; when that fails, the raw text is split exactly at its byte midpoint,
// the first half becoming the analysis and the second half the plan. The
// split is lossless: no bytes are added or dropped, so the analysis and plan
// concatenate back to the original response.
//
// Inputs:
//   - raw: The raw response text from the model.
//   - strategyName: The name of the strategy recording the result.
//
// Outputs:
//   - *Result: The decoded result. Never nil.
func ParseResult(raw string, strategyName string) *Result {
	var decoded planResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err == nil && decoded.Analysis != "" && decoded.Plan != "" {
		return &Result{
			Analysis: decoded.Analysis,
			Plan:     decoded.Plan,
			Strategy: strategyName,
		}
	}

	mid := len(raw) / 2
	return &Result{
		Analysis: raw[:mid],
		Plan:     raw[mid:],
		Strategy: strategyName,
	}
}

// stripFences removes a markdown code fence wrapper when the model added one
// around its JSON response.
func stripFences(text string) string {
	out := strings.TrimSpace(text)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}
