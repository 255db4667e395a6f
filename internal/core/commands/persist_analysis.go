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
	"github.com/sonirn/Back-id/internal/core/model"
	"github.com/sonirn/Back-id/internal/core/services"
)

// AnalysisPersist is the final command of the upload-and-analyze pipeline.
// It assembles the analysis document from the asset bundle and the chain's
// analysis result, and stores it.
type AnalysisPersist struct {
	cor.BaseCommand
	analyses services.AnalysisService
}

// NewAnalysisPersist is the constructor for the AnalysisPersist command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - analyses: The persistence service to store the document through.
//
// Outputs:
//   - *AnalysisPersist: A pointer to the newly instantiated command.
func NewAnalysisPersist(name string, analyses services.AnalysisService) *AnalysisPersist {
	return &AnalysisPersist{BaseCommand: *cor.NewBaseCommand(name), analyses: analyses}
}

// Execute builds and stores the analysis document, placing the stored record
// on the chain output for the handler to render.
//
// Inputs:
//   - context: The shared cor.Context for this workflow execution.
func (c *AnalysisPersist) Execute(context cor.Context) {
	result := context.Get(c.GetInputParam()).(*analysis.Result)
	assets := context.Get(GetUploadAssetsParameterName()).(*UploadAssets)
	ctx := context.GetContext()

	record := model.NewVideoAnalysis(assets.SessionID, assets.UserID)
	record.VideoURL = assets.VideoURL
	record.ImageURL = assets.ImageURL
	record.AudioURL = assets.AudioURL
	record.Analysis = result.Analysis
	record.Plan = result.Plan

	if err := c.analyses.Insert(ctx, record); err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to persist analysis: %w", err))
		return
	}

	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(c.GetOutputParam(), record)
}
