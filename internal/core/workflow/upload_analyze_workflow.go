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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into coherent pipelines. This file implements the
// upload-and-analyze workflow that backs the video upload endpoint.
package workflow

import (
	"github.com/sonirn/Back-id/internal/cloud"
	"github.com/sonirn/Back-id/internal/core/analysis"
	"github.com/sonirn/Back-id/internal/core/commands"
	"github.com/sonirn/Back-id/internal/core/cor"
	"github.com/sonirn/Back-id/internal/core/services"
)

// UploadAnalyzeWorkflow orchestrates everything that happens to an upload
// session after its files reach the scratch directory: the assets are copied
// to object storage, the analysis fallback chain produces the analysis and
// plan, and the resulting document is stored.
type UploadAnalyzeWorkflow struct {
	cor.BaseCommand
	chain cor.Chain
}

// NewUploadAnalyzeWorkflow is the constructor for the workflow.
//
// Inputs:
//   - name: A string name for this workflow instance.
//   - uploader: The object storage client assets are copied through.
//   - analysisChain: The analysis fallback chain.
//   - analyses: The persistence service for analysis documents.
//   - prompt: The analysis prompt template text.
//
// Outputs:
//   - *UploadAnalyzeWorkflow: A pointer to the newly instantiated workflow.
func NewUploadAnalyzeWorkflow(
	name string,
	uploader cloud.ObjectUploader,
	analysisChain *analysis.Chain,
	analyses services.AnalysisService,
	prompt string,
) *UploadAnalyzeWorkflow {
	out := &UploadAnalyzeWorkflow{BaseCommand: *cor.NewBaseCommand(name)}
	out.initializeChain(uploader, analysisChain, analyses, prompt)
	return out
}

// Execute runs the workflow by invoking the underlying chain.
//
// Inputs:
//   - context: The chain of responsibility context for this execution. The
//     primary input must be a *commands.UploadAssets bundle.
func (w *UploadAnalyzeWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the command sequence. The chain's piping moves the
// asset bundle into the analyzer and the analysis result into the persister;
// the bundle stays reachable under its canonical key throughout.
func (w *UploadAnalyzeWorkflow) initializeChain(
	uploader cloud.ObjectUploader,
	analysisChain *analysis.Chain,
	analyses services.AnalysisService,
	prompt string,
) {
	out := cor.NewBaseChain(w.GetName())

	// Step 1: copy the scratch files into object storage.
	out.AddCommand(commands.NewBlobUpload("asset-blob-upload", uploader))

	// Step 2: run the analysis fallback chain over the scratch files.
	out.AddCommand(commands.NewMediaAnalyze("media-analyze", analysisChain, prompt))

	// Step 3: assemble and store the analysis document.
	out.AddCommand(commands.NewAnalysisPersist("analysis-persist", analyses))

	w.chain = out
}
