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

package commands

import (
	"fmt"

	"github.com/sonirn/Back-id/internal/core/analysis"
	"github.com/sonirn/Back-id/internal/core/cor"
)

// MediaAnalyze is a command that runs the analysis fallback chain over a
// session's scratch files. The chain decides which provider path produces
// the analysis; this command only adapts between the workflow context and
// the chain's input and output types.
type MediaAnalyze struct {
	cor.BaseCommand
	chain  *analysis.Chain
	prompt string // The analysis prompt sent with the assets.
}

// NewMediaAnalyze is the constructor for the MediaAnalyze command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - chain: The analysis fallback chain to run.
//   - prompt: The analysis prompt template text.
//
// Outputs:
//   - *MediaAnalyze: A pointer to the newly instantiated command.
func NewMediaAnalyze(name string, chain *analysis.Chain, prompt string) *MediaAnalyze {
	return &MediaAnalyze{BaseCommand: *cor.NewBaseCommand(name), chain: chain, prompt: prompt}
}

// Execute builds the analysis input from the asset bundle and runs the
// fallback chain, placing the result on the chain output.
//
// Inputs:
//   - context: The shared cor.Context for this workflow execution.
func (c *MediaAnalyze) Execute(context cor.Context) {
	assets := context.Get(c.GetInputParam()).(*UploadAssets)
	ctx := context.GetContext()

	result, err := c.chain.Analyze(ctx, &analysis.Input{
		SessionID: assets.SessionID,
		VideoPath: assets.VideoPath,
		VideoMIME: assets.VideoMIME,
		ImagePath: assets.ImagePath,
		ImageMIME: assets.ImageMIME,
		AudioPath: assets.AudioPath,
		AudioMIME: assets.AudioMIME,
		Prompt:    c.prompt,
	})
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("analysis failed: %w", err))
		return
	}

	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(c.GetOutputParam(), result)
}
