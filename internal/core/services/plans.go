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

package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/sonirn/Back-id/internal/cloud"
)

// PlanReviser rewrites a stored generation plan according to a user's change
// instructions. The API handlers depend on this interface so tests can
// substitute a canned implementation.
type PlanReviser interface {
	// Revise returns the revised plan text.
	Revise(ctx context.Context, plan string, modification string) (string, error)
}

// GeminiPlanReviser is the model-backed implementation of PlanReviser. The
// prompt template receives the current plan and the modification text as its
// two format arguments.
type GeminiPlanReviser struct {
	model        *cloud.QuotaAwareGenerativeAIModel
	template     string
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retries      metric.Int64Counter
}

// NewPlanReviser is a constructor function that creates a model-backed plan
// reviser.
//
// Inputs:
//   - model: The quota-aware model wrapper used for revisions.
//   - template: The revision prompt template with two %s slots, the current
//     plan and the modification instructions.
//
// Outputs:
//   - *GeminiPlanReviser: A pointer to the new reviser.
func NewPlanReviser(model *cloud.QuotaAwareGenerativeAIModel, template string) *GeminiPlanReviser {
	meter := otel.Meter("github.com/sonirn/Back-id")
	inputTokens, _ := meter.Int64Counter("plan-reviser.tokens.input")
	outputTokens, _ := meter.Int64Counter("plan-reviser.tokens.output")
	retries, _ := meter.Int64Counter("plan-reviser.counter.retries")
	return &GeminiPlanReviser{
		model:        model,
		template:     template,
		inputTokens:  inputTokens,
		outputTokens: outputTokens,
		retries:      retries,
	}
}

// Revise sends the revision prompt and returns the model's rewritten plan.
//
// Inputs:
//   - ctx: The context for the provider call.
//   - plan: The current stored plan text.
//   - modification: The user's change instructions.
//
// Outputs:
//   - string: The revised plan text.
//   - error: An error when the provider call fails or returns nothing usable.
func (r *GeminiPlanReviser) Revise(ctx context.Context, plan string, modification string) (string, error) {
	prompt := fmt.Sprintf(r.template, plan, modification)
	text, err := cloud.GenerateMultiModalResponse(ctx, r.inputTokens, r.outputTokens, r.retries, 0, r.model, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("plan revision failed: %w", err)
	}
	revised := strings.TrimSpace(text)
	if revised == "" {
		return "", fmt.Errorf("plan revision returned an empty response")
	}
	return revised, nil
}
