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

package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/genai"
)

// ServiceClients is a holder object for the shared external service clients
// so they can be created once at startup and passed around the application.
//
// Fields:
//   - MongoClient: The connection pool to the document database.
//   - Database: The application database handle derived from MongoClient.
//   - BlobStore: The S3-compatible object storage client.
//   - Keys: The rotating Gemini credential ring.
//   - AgentModels: The named, quota-aware model wrappers defined in config.
type ServiceClients struct {
	MongoClient *mongo.Client
	Database    *mongo.Database
	BlobStore   *BlobStore
	Keys        *KeyRing
	AgentModels map[string]*QuotaAwareGenerativeAIModel
}

// NewServiceClients is a factory method for creating the external service
// clients used by the application.
//
// Logic Flow:
//  1. Connect to the document database and verify the connection with a ping.
//  2. Build the object storage client and ensure the bucket exists.
//  3. Build the credential ring from the configured API keys.
//  4. For each configured agent model, build a generation config and wrap it
//     in a quota-aware decorator.
//
// Inputs:
//   - ctx: The context used for the connection handshakes.
//   - config: The fully resolved application configuration.
//
// Outputs:
//   - *ServiceClients: A pointer to the assembled client holder.
//   - error: An error if any client fails to initialize.
func NewServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(config.Database.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document database: %w", err)
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping document database: %w", err)
	}

	blobStore, err := NewBlobStore(&config.ObjectStorage)
	if err != nil {
		return nil, err
	}
	if err := blobStore.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	keys, err := NewKeyRing(config.Gemini.APIKeys)
	if err != nil {
		return nil, err
	}

	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for name, modelConfig := range config.AgentModels {
		agentModels[name] = NewQuotaAwareModel(
			newGenerateContentConfig(&modelConfig),
			modelConfig.Model,
			keys,
			modelConfig.RateLimit)
	}

	return &ServiceClients{
		MongoClient: mongoClient,
		Database:    mongoClient.Database(config.Database.Name),
		BlobStore:   blobStore,
		Keys:        keys,
		AgentModels: agentModels,
	}, nil
}

// newGenerateContentConfig translates a configuration entry into the
// generation settings applied to every request against that model.
func newGenerateContentConfig(m *GeminiModel) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.Temperature),
		TopP:            genai.Ptr(m.TopP),
		MaxOutputTokens: m.MaxTokens,
		SafetySettings:  DefaultSafetySettings,
	}
	if m.TopK > 0 {
		cfg.TopK = genai.Ptr(m.TopK)
	}
	if m.SystemInstructions != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: m.SystemInstructions}},
		}
	}
	if m.OutputFormat != "" {
		cfg.ResponseMIMEType = m.OutputFormat
	}
	return cfg
}

// Close releases the connections held by the service clients. Errors are
// logged rather than returned because Close runs during shutdown.
func (s *ServiceClients) Close(ctx context.Context) {
	if err := s.MongoClient.Disconnect(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to disconnect from document database", "error", err)
	}
}
