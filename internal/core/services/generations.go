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
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sonirn/Back-id/internal/core/model"
)

// MongoGenerationService is the Mongo-backed implementation of
// GenerationService.
type MongoGenerationService struct {
	collection *mongo.Collection
}

// NewGenerationService is a constructor function that binds the service to
// the video generations collection of the given database.
//
// Inputs:
//   - db: The application database handle.
//
// Outputs:
//   - *MongoGenerationService: A pointer to the new service.
func NewGenerationService(db *mongo.Database) *MongoGenerationService {
	return &MongoGenerationService{collection: db.Collection(model.CollectionGenerations)}
}

// Insert stores a new queued job document.
func (s *MongoGenerationService) Insert(ctx context.Context, generation *model.VideoGeneration) error {
	if _, err := s.collection.InsertOne(ctx, generation); err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

// GetBySession returns the most recent job for a session. Sessions can start
// a new generation after an earlier one finished, so the newest document is
// the one whose status callers poll.
func (s *MongoGenerationService) GetBySession(ctx context.Context, sessionID string) (*model.VideoGeneration, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var generation model.VideoGeneration
	err := s.collection.FindOne(ctx, bson.M{"session_id": sessionID}, opts).Decode(&generation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up generation: %w", err)
	}
	return &generation, nil
}

// SetProcessing moves a job into the processing state.
func (s *MongoGenerationService) SetProcessing(ctx context.Context, id string) error {
	return s.update(ctx, id, bson.M{"status": model.GenerationStatusProcessing})
}

// SetProgress records a progress percentage and time estimate.
func (s *MongoGenerationService) SetProgress(ctx context.Context, id string, progress int, timeRemaining int) error {
	return s.update(ctx, id, bson.M{
		"progress":       progress,
		"time_remaining": timeRemaining,
	})
}

// SetCompleted finishes a job with its download URL, completion stamp, and
// expiry.
func (s *MongoGenerationService) SetCompleted(ctx context.Context, id string, videoURL string, completedAt time.Time, expiresAt time.Time) error {
	return s.update(ctx, id, bson.M{
		"status":         model.GenerationStatusCompleted,
		"progress":       100,
		"time_remaining": 0,
		"video_url":      videoURL,
		"completed_at":   completedAt,
		"expires_at":     expiresAt,
	})
}

// SetFailed finishes a job with an error message.
func (s *MongoGenerationService) SetFailed(ctx context.Context, id string, message string) error {
	return s.update(ctx, id, bson.M{
		"status":        model.GenerationStatusFailed,
		"error_message": message,
	})
}

// update applies a $set to the job with the given ID.
func (s *MongoGenerationService) update(ctx context.Context, id string, fields bson.M) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update generation %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
