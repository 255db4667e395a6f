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

// Package analysis_test contains unit tests for the response decoding and
// the fallback behavior of the analysis chain.
package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sonirn/Back-id/internal/core/analysis"
)

// TestParseResultJSON verifies the primary decode path: a well-formed JSON
// object with both fields populates the result directly.
func TestParseResultJSON(t *testing.T) {
	raw := `{"analysis": "a fast-paced vertical clip", "plan": "scene 1: open on the subject"}`
	result := analysis.ParseResult(raw, "file-upload-primary")

	assert.Equal(t, "a fast-paced vertical clip", result.Analysis)
	assert.Equal(t, "scene 1: open on the subject", result.Plan)
	assert.Equal(t, "file-upload-primary", result.Strategy)
	assert.False(t, result.Degraded)
}

// TestParseResultStripsCodeFences verifies that a markdown fence around the
// JSON response does not defeat the primary decode.
func TestParseResultStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"analysis\": \"fenced analysis\", \"plan\": \"fenced plan\"}\n```"
	result := analysis.ParseResult(raw, "inline-payload")

	assert.Equal(t, "fenced analysis", result.Analysis)
	assert.Equal(t, "fenced plan", result.Plan)
}

// TestParseResultMidpointSplit verifies the fallback decode: free-form text
// is split at its byte midpoint into analysis and plan halves.
func TestParseResultMidpointSplit(t *testing.T) {
	raw := "AAAABBBB"
	result := analysis.ParseResult(raw, "text-fallback")

	assert.Equal(t, "AAAA", result.Analysis)
	assert.Equal(t, "BBBB", result.Plan)
	assert.Equal(t, "text-fallback", result.Strategy)
}

// TestParseResultPartialJSONFallsBack verifies that a JSON object missing
// one of the expected fields is treated as free-form text rather than
// producing a half-empty result.
func TestParseResultPartialJSONFallsBack(t *testing.T) {
	raw := `{"analysis": "only the analysis came back"}`
	result := analysis.ParseResult(raw, "file-upload-primary")

	assert.NotEmpty(t, result.Analysis)
	assert.NotEmpty(t, result.Plan)
	assert.Equal(t, raw, result.Analysis+result.Plan)
}

// TestParseResultSplitIsLossless verifies that the midpoint split never adds
// or drops bytes: the analysis and plan halves always concatenate back to
// the raw response, including whitespace at the midpoint and the ends.
func TestParseResultSplitIsLossless(t *testing.T) {
	raws := []string{
		"abcd efgh",
		"  leading and trailing  ",
		"one\ntwo\nthree\nfour",
		"\t\n \t",
		"x",
		"",
	}
	for _, raw := range raws {
		result := analysis.ParseResult(raw, "text-fallback")
		assert.Equal(t, raw, result.Analysis+result.Plan)
	}
}

// TestAssetManifestListsProvidedFiles verifies the degraded prompt's file
// listing: the video is always named, optional assets only when present.
func TestAssetManifestListsProvidedFiles(t *testing.T) {
	manifest := analysis.AssetManifest(&analysis.Input{
		VideoPath: "/tmp/s1_sample.mp4",
		AudioPath: "/tmp/s1_audio.mp3",
	})
	assert.Contains(t, manifest, "Video file: s1_sample.mp4")
	assert.Contains(t, manifest, "Audio file: s1_audio.mp3")
	assert.NotContains(t, manifest, "Character image")
}
