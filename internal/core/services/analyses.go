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

// userVideoListCap bounds a single listing query so one user with a large
// history cannot produce unbounded responses.
const userVideoListCap = 100

// MongoAnalysisService is the Mongo-backed implementation of AnalysisService.
type MongoAnalysisService struct {
	collection *mongo.Collection
}

// NewAnalysisService is a constructor function that binds the service to the
// video analyses collection of the given database.
//
// Inputs:
//   - db: The application database handle.
//
// Outputs:
//   - *MongoAnalysisService: A pointer to the new service.
func NewAnalysisService(db *mongo.Database) *MongoAnalysisService {
	return &MongoAnalysisService{collection: db.Collection(model.CollectionAnalyses)}
}

// Insert stores a new analysis document.
func (s *MongoAnalysisService) Insert(ctx context.Context, analysis *model.VideoAnalysis) error {
	if _, err := s.collection.InsertOne(ctx, analysis); err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// GetBySession returns the analysis for an upload session.
func (s *MongoAnalysisService) GetBySession(ctx context.Context, sessionID string) (*model.VideoAnalysis, error) {
	var analysis model.VideoAnalysis
	err := s.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&analysis)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up analysis: %w", err)
	}
	return &analysis, nil
}

// UpdatePlan replaces the stored plan for a session and stamps the
// modification time.
//
// Inputs:
//   - ctx: The context for the database call.
//   - sessionID: The session whose plan to replace.
//   - plan: The revised plan text.
//
// Outputs:
//   - error: ErrNotFound when the session has no analysis, or a wrapped
//     database error.
func (s *MongoAnalysisService) UpdatePlan(ctx context.Context, sessionID string, plan string) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"plan":        plan,
			"modified_at": time.Now().UTC(),
		}})
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns a user's analyses ordered newest first, capped at
// userVideoListCap entries.
func (s *MongoAnalysisService) ListByUser(ctx context.Context, userID string) ([]*model.VideoAnalysis, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(userVideoListCap)
	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer cursor.Close(ctx)

	analyses := make([]*model.VideoAnalysis, 0)
	if err := cursor.All(ctx, &analyses); err != nil {
		return nil, fmt.Errorf("failed to decode analyses: %w", err)
	}
	return analyses, nil
}
