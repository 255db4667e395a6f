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

// Package main contains the setup and initialization logic for the
// application's state. This file creates and manages a centralized state
// manager holding the shared dependencies: configuration, external service
// clients, persistence services, the analysis fallback chain, the
// upload-and-analyze workflow, and the generation simulator.
//
// Functions:
//   - SetupOS: Configures the environment variables pointing at the correct
//     configuration files.
//   - GetConfig: A singleton function that loads the application's
//     configuration from TOML files, applying environment overrides.
//   - InitState: The core initialization function that creates all service
//     clients and wires the application services together.
package main

import (
	"context"
	"log"
	"os"

	"go.opentelemetry.io/otel"

	"github.com/sonirn/Back-id/internal/cloud"
	"github.com/sonirn/Back-id/internal/core/analysis"
	"github.com/sonirn/Back-id/internal/core/generation"
	"github.com/sonirn/Back-id/internal/core/services"
	"github.com/sonirn/Back-id/internal/core/workflow"
)

// StateManager holds the shared dependencies for the application, acting as a
// centralized container so handlers do not reach for globals individually.
type StateManager struct {
	config         *cloud.Config
	cloud          *cloud.ServiceClients
	users          services.UserService
	analyses       services.AnalysisService
	generations    services.GenerationService
	planReviser    services.PlanReviser
	simulator      *generation.Simulator
	uploadWorkflow *workflow.UploadAnalyzeWorkflow
}

// state is the package-level instance of StateManager.
var state = &StateManager{}

// SetupOS sets the environment variables the configuration loader uses to
// find the TOML files: the configs directory and the runtime environment.
//
// Outputs:
//   - error: An error if setting any of the environment variables fails.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig provides a singleton instance of the application configuration.
// On the first call it loads the TOML files, applies environment overrides
// for deployment secrets, and validates the result. Subsequent calls return
// the cached configuration.
//
// Outputs:
//   - *cloud.Config: A pointer to the loaded application configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to set up configuration environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		config.ApplyEnvironmentOverrides()
		if err := config.Validate(); err != nil {
			log.Fatalf("invalid configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// InitState initializes the entire application state: external clients,
// persistence services, the analysis fallback chain, the upload workflow,
// the plan reviser, and the generation simulator.
//
// Inputs:
//   - ctx: The root context for the application, used for the client
//     connection handshakes.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	state.users = services.NewUserService(cloudClients.Database)
	state.analyses = services.NewAnalysisService(cloudClients.Database)
	state.generations = services.NewGenerationService(cloudClients.Database)

	// The fallback chain tries the multimodal paths first, in descending
	// order of fidelity, and degrades to a text-only analysis when all of
	// them fail.
	analysisChain := analysis.NewChain("analysis-fallback",
		analysis.NewUploadStrategy("file-upload-primary", config.Gemini.PrimaryModel, cloudClients.Keys, nil),
		analysis.NewUploadStrategy("file-upload-secondary", config.Gemini.SecondaryModel, cloudClients.Keys, nil),
		analysis.NewInlineStrategy("inline-payload", config.Gemini.InlineModel, cloudClients.Keys),
		analysis.NewTextStrategy("text-fallback",
			cloudClients.AgentModels["text-fallback"],
			config.PromptTemplates.FrameworkPrompt,
			otel.Meter("github.com/sonirn/Back-id"),
		),
	)

	state.uploadWorkflow = workflow.NewUploadAnalyzeWorkflow(
		"upload-analyze",
		cloudClients.BlobStore,
		analysisChain,
		state.analyses,
		config.PromptTemplates.AnalyzePrompt,
	)

	state.planReviser = services.NewPlanReviser(
		cloudClients.AgentModels["plan-reviser"],
		config.PromptTemplates.ModifyPrompt,
	)

	state.simulator = generation.NewSimulator(
		state.generations,
		generation.DefaultTimings(),
		generation.DefaultDownloadBaseURL,
	)
}
