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

// Package services contains the persistence layer over the document database.
// The API handlers and the generation simulator depend on these interfaces
// rather than the Mongo-backed implementations, so tests can substitute
// in-memory fakes.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/sonirn/Back-id/internal/core/model"
)

// ErrNotFound is returned when a lookup matches no stored document.
var ErrNotFound = errors.New("document not found")

// UserService manages registered accounts.
type UserService interface {
	// CreateOrFetch registers a new account, or returns the existing one
	// when the email is already registered. The bool reports whether a new
	// account was created.
	CreateOrFetch(ctx context.Context, email string, name string) (*model.User, bool, error)

	// GetByID returns the account with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// AnalysisService manages stored video analyses.
type AnalysisService interface {
	// Insert stores a new analysis document.
	Insert(ctx context.Context, analysis *model.VideoAnalysis) error

	// GetBySession returns the analysis for a session, or ErrNotFound.
	GetBySession(ctx context.Context, sessionID string) (*model.VideoAnalysis, error)

	// UpdatePlan replaces the stored plan for a session and stamps the
	// modification time.
	UpdatePlan(ctx context.Context, sessionID string, plan string) error

	// ListByUser returns the user's analyses, newest first, capped to keep
	// the listing bounded.
	ListByUser(ctx context.Context, userID string) ([]*model.VideoAnalysis, error)
}

// GenerationService manages video generation job documents.
type GenerationService interface {
	// Insert stores a new queued job.
	Insert(ctx context.Context, generation *model.VideoGeneration) error

	// GetBySession returns the most recent job for a session, or ErrNotFound.
	GetBySession(ctx context.Context, sessionID string) (*model.VideoGeneration, error)

	// SetProcessing moves a job into the processing state.
	SetProcessing(ctx context.Context, id string) error

	// SetProgress records a progress percentage and time estimate.
	SetProgress(ctx context.Context, id string, progress int, timeRemaining int) error

	// SetCompleted finishes a job with its download URL, completion stamp,
	// and expiry.
	SetCompleted(ctx context.Context, id string, videoURL string, completedAt time.Time, expiresAt time.Time) error

	// SetFailed finishes a job with an error message.
	SetFailed(ctx context.Context, id string, message string) error
}
