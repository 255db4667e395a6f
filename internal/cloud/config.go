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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for the document database, the S3-compatible object store, the Gemini
// provider credentials and models, and the prompt templates used by the
// analysis strategies.
//
// This file centralizes all configuration-related structs, making it easy
// to understand and manage the application's configurable parameters.
//
// Structs:
//   - Database: Connection settings for the MongoDB deployment.
//   - ObjectStorage: Endpoint and credentials for the S3-compatible store.
//   - Gemini: API keys and model identifiers for the analysis provider.
//   - PromptTemplates: Holds the text templates for prompts sent to GenAI models.
//   - GeminiModel: Generation settings for a single named Gemini model.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
//   - Validate: Checks that every required value is present at startup.
package cloud

import (
	"errors"
	"os"

	"google.golang.org/genai"
)

// DefaultSafetySettings defines the default content safety thresholds for GenAI models.
// These settings are configured to be non-restrictive, allowing all content categories
// (Dangerous Content, Harassment, Hate Speech, Sexually Explicit) to pass through without
// being blocked. The uploaded sample videos are trusted input.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Database represents the connection configuration for the MongoDB deployment
// that holds users, analyses and generation records.
type Database struct {
	URI  string `toml:"uri"`  // The MongoDB connection string. Overridable via MONGO_URL.
	Name string `toml:"name"` // The database name. Overridable via DB_NAME.
}

// ObjectStorage represents the configuration for the S3-compatible object
// store (Cloudflare R2 in production) that holds the uploaded media files.
type ObjectStorage struct {
	Endpoint  string `toml:"endpoint"`   // The https endpoint of the store. Overridable via STORAGE_ENDPOINT.
	AccessKey string `toml:"access_key"` // The access key id. Overridable via STORAGE_ACCESS_KEY.
	SecretKey string `toml:"secret_key"` // The secret key. Overridable via STORAGE_SECRET_KEY.
	Bucket    string `toml:"bucket"`     // The well-known bucket all media is written to.
}

// Gemini holds the provider credentials and the model identifiers used by the
// analysis strategies. Keys are tried in round-robin order; between one and
// three keys are expected, matching the provider's free-tier quota layout.
type Gemini struct {
	APIKeys        []string `toml:"api_keys"`        // Credential list, rotated per request. Overridable via GEMINI_API_KEY_1..3.
	PrimaryModel   string   `toml:"primary_model"`   // Model for the first direct-upload strategy.
	SecondaryModel string   `toml:"secondary_model"` // Alternate model for the retry strategy.
	InlineModel    string   `toml:"inline_model"`    // Model for the inline byte-payload strategy.
}

// PromptTemplates holds the templates for the different prompts sent to the
// generative models. Each is a Go text/template body.
type PromptTemplates struct {
	AnalyzePrompt   string `toml:"analyze"`   // Full multimodal analysis instruction.
	FrameworkPrompt string `toml:"framework"` // Text-only degraded instruction (file names only).
	ModifyPrompt    string `toml:"modify"`    // Plan modification system instruction.
}

// GeminiModel represents the generation settings for a named Gemini model.
type GeminiModel struct {
	Model              string  `toml:"model"`               // The model identifier (e.g. "gemini-2.5-flash").
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the model.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter.
	TopP               float32 `toml:"top_p"`               // The top_p parameter.
	TopK               float32 `toml:"top_k"`               // The top_k parameter.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of output tokens.
	OutputFormat       string  `toml:"output_format"`       // The desired response MIME type.
	RateLimit          int     `toml:"rate_limit"`          // Requests per second allowed for this model.
}

// Config represents the overall configuration for the application, loaded from
// TOML files with optional environment overrides for secrets.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name       string `toml:"name"`        // The name of the application.
		Port       int    `toml:"port"`        // The HTTP listen port.
		ScratchDir string `toml:"scratch_dir"` // Directory upload scratch files are written to.
	} `toml:"application"`
	Database        Database               `toml:"database"`         // MongoDB configuration.
	ObjectStorage   ObjectStorage          `toml:"object_storage"`   // S3-compatible store configuration.
	Gemini          Gemini                 `toml:"gemini"`           // Provider credentials and model names.
	PromptTemplates PromptTemplates        `toml:"prompt_templates"` // Prompt templates configuration.
	AgentModels     map[string]GeminiModel `toml:"agent_models"`     // Named model configs, keyed by a logical name (e.g. "plan-editor").
}

// NewConfig is a constructor function that creates a new, initialized Config
// instance. The map fields must be non-nil before the TOML loader populates
// them.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		AgentModels: make(map[string]GeminiModel),
	}
}

// ApplyEnvironmentOverrides replaces secret-bearing fields with values from
// the process environment when present. This keeps credentials out of the
// TOML files while matching the deployment's environment variable contract.
func (c *Config) ApplyEnvironmentOverrides() {
	if v := os.Getenv("MONGO_URL"); v != "" {
		c.Database.URI = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		c.ObjectStorage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		c.ObjectStorage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		c.ObjectStorage.SecretKey = v
	}
	// Up to three rotating provider keys. An empty env value is kept as-is;
	// the key ring returns empty credentials to callers unfiltered.
	keys := make([]string, 0, 3)
	for _, name := range []string{"GEMINI_API_KEY_1", "GEMINI_API_KEY_2", "GEMINI_API_KEY_3"} {
		if v, ok := os.LookupEnv(name); ok {
			keys = append(keys, v)
		}
	}
	if len(keys) > 0 {
		c.Gemini.APIKeys = keys
	}
}

// Validate checks that all required configuration values are present.
// A missing value is a startup failure, not a per-request error.
//
// Outputs:
//   - error: A descriptive error naming the first missing value, or nil.
func (c *Config) Validate() error {
	if c.Database.URI == "" {
		return errors.New("config: database uri is required")
	}
	if c.Database.Name == "" {
		return errors.New("config: database name is required")
	}
	if c.ObjectStorage.Endpoint == "" {
		return errors.New("config: object storage endpoint is required")
	}
	if c.ObjectStorage.AccessKey == "" || c.ObjectStorage.SecretKey == "" {
		return errors.New("config: object storage credentials are required")
	}
	if c.ObjectStorage.Bucket == "" {
		return errors.New("config: object storage bucket is required")
	}
	if len(c.Gemini.APIKeys) == 0 {
		return errors.New("config: at least one gemini api key is required")
	}
	return nil
}
