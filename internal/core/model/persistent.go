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

// Package model defines the core data structures for the application.
// This file, `persistent.go`, contains the documents stored in the database:
// users, video analyses, and video generation jobs. Each struct carries both
// bson tags for persistence and json tags for the API surface.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Collection names used across the persistence layer.
const (
	CollectionUsers       = "users"
	CollectionAnalyses    = "video_analyses"
	CollectionGenerations = "video_generations"
)

// Status values for a VideoAnalysis document.
const (
	AnalysisStatusAnalyzed = "analyzed"
)

// Status values for a VideoGeneration document. A job moves from queued to
// processing, and ends in either completed or failed.
const (
	GenerationStatusQueued     = "queued"
	GenerationStatusProcessing = "processing"
	GenerationStatusCompleted  = "completed"
	GenerationStatusFailed     = "failed"
)

// User is a registered account. Accounts are keyed by email: registering an
// existing email returns the stored record rather than creating a duplicate.
type User struct {
	ID        string    `bson:"id" json:"id"`                 // Application-level unique ID (UUID).
	Email     string    `bson:"email" json:"email"`           // The unique account email.
	Name      string    `bson:"name" json:"name"`             // Display name.
	CreatedAt time.Time `bson:"created_at" json:"created_at"` // When the account was first registered.
	LastLogin time.Time `bson:"last_login" json:"last_login"` // Updated each time the account re-registers.
}

// NewUser creates a User with a fresh ID and both timestamps set to now.
//
// Inputs:
//   - email: The account email address.
//   - name: The display name.
//
// Outputs:
//   - *User: A pointer to the new account record.
func NewUser(email string, name string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		CreatedAt: now,
		LastLogin: now,
	}
}

// VideoAnalysis is the stored result of analyzing one upload session. It
// carries the storage URLs of the uploaded assets, the AI's free-form
// analysis, and the structured generation plan the user can iterate on.
type VideoAnalysis struct {
	ID           string    `bson:"id" json:"id"`                                           // Application-level unique ID (UUID).
	SessionID    string    `bson:"session_id" json:"session_id"`                           // The upload session this analysis belongs to.
	UserID       string    `bson:"user_id" json:"user_id"`                                 // The owning account.
	VideoURL     string    `bson:"video_url" json:"video_url"`                             // Storage URL of the sample video.
	ImageURL     string    `bson:"image_url,omitempty" json:"image_url,omitempty"`         // Storage URL of the character image, when provided.
	AudioURL     string    `bson:"audio_url,omitempty" json:"audio_url,omitempty"`         // Storage URL of the audio track, when provided.
	Analysis     string    `bson:"analysis" json:"analysis"`                               // The free-form video analysis text.
	Plan         string    `bson:"plan" json:"plan"`                                       // The structured generation plan.
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`                           // When the analysis was produced.
	ModifiedAt   time.Time `bson:"modified_at,omitempty" json:"modified_at,omitempty"`     // Set when the plan is modified after creation.
	Status       string    `bson:"status" json:"status"`                                   // Lifecycle status, currently always "analyzed".
}

// NewVideoAnalysis creates a VideoAnalysis in the analyzed state.
//
// Inputs:
//   - sessionID: The upload session identifier.
//   - userID: The owning account ID.
//
// Outputs:
//   - *VideoAnalysis: A pointer to the new record. The caller fills in the
//     asset URLs and the analysis/plan text before persisting.
func NewVideoAnalysis(sessionID string, userID string) *VideoAnalysis {
	return &VideoAnalysis{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Status:    AnalysisStatusAnalyzed,
	}
}

// VideoGeneration is a video generation job. Progress is a percentage from 0
// to 100; TimeRemaining is the estimated seconds until completion. VideoURL,
// CompletedAt, and ExpiresAt are set only once the job completes,
// ErrorMessage only when it fails.
type VideoGeneration struct {
	ID            string     `bson:"id" json:"id"`                                               // Application-level unique ID (UUID).
	SessionID     string     `bson:"session_id" json:"session_id"`                               // The session whose plan is being generated.
	UserID        string     `bson:"user_id" json:"user_id"`                                     // The owning account.
	Plan          string     `bson:"plan" json:"plan"`                                           // The plan snapshot the job was started with.
	Status        string     `bson:"status" json:"status"`                                       // queued, processing, completed or failed.
	Progress      int        `bson:"progress" json:"progress"`                                   // Completion percentage, 0 to 100.
	TimeRemaining int        `bson:"time_remaining" json:"time_remaining"`                       // Estimated seconds remaining.
	VideoURL      string     `bson:"video_url,omitempty" json:"video_url,omitempty"`             // Download URL of the finished video.
	ErrorMessage  string     `bson:"error_message,omitempty" json:"error_message,omitempty"`     // Failure detail when Status is failed.
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`                               // When the job was accepted.
	CompletedAt   *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`       // When the job finished successfully.
	ExpiresAt     *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`           // When the finished video stops being available.
}

// NewVideoGeneration creates a queued generation job with the initial time
// estimate.
//
// Inputs:
//   - sessionID: The session whose plan is being generated.
//   - userID: The owning account ID.
//   - plan: The plan text snapshot to generate from.
//   - estimatedSeconds: The initial time-remaining estimate.
//
// Outputs:
//   - *VideoGeneration: A pointer to the new job record.
func NewVideoGeneration(sessionID string, userID string, plan string, estimatedSeconds int) *VideoGeneration {
	return &VideoGeneration{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		UserID:        userID,
		Plan:          plan,
		Status:        GenerationStatusQueued,
		Progress:      0,
		TimeRemaining: estimatedSeconds,
		CreatedAt:     time.Now().UTC(),
	}
}
