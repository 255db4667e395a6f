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
// This file, `transient.go`, contains the request and response shapes used on
// the API surface and in memory during workflows. These objects are not
// persisted in their current form.
package model

import "time"

// CreateUserResponse is returned after a registration. Registration is
// idempotent per email, so the message tells the caller whether the account
// was created or already existed.
type CreateUserResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// PlanModificationRequest is the payload for revising a stored plan.
type PlanModificationRequest struct {
	SessionID    string `json:"session_id" binding:"required"`           // The session whose plan to revise.
	Modification string `json:"modification_request" binding:"required"` // The user's change instructions.
}

// VideoGenerationRequest is the payload for starting a generation job.
type VideoGenerationRequest struct {
	SessionID string `json:"session_id" binding:"required"` // The session whose plan to generate.
	Plan      string `json:"approved_plan,omitempty"`       // Optional plan override; defaults to the stored plan.
}

// UploadResponse is returned after a successful upload-and-analyze run.
type UploadResponse struct {
	SessionID string `json:"session_id"` // The session created for this upload.
	VideoURL  string `json:"video_url"`  // Storage URL of the sample video.
	ImageURL  string `json:"image_url,omitempty"`
	AudioURL  string `json:"audio_url,omitempty"`
	Analysis  string `json:"analysis"` // The free-form analysis text.
	Plan      string `json:"plan"`     // The structured generation plan.
}

// PlanModificationResponse is returned after a plan revision.
type PlanModificationResponse struct {
	Status       string `json:"status"`        // "success" once the plan is stored.
	ModifiedPlan string `json:"modified_plan"` // The revised plan text.
}

// GenerationAccepted is returned when a generation job is accepted. The job
// itself is tracked per session; callers poll the status endpoint for
// progress.
type GenerationAccepted struct {
	Status    string `json:"status"` // "success" at acceptance.
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// GenerationStatus is the polled view of a generation job.
type GenerationStatus struct {
	SessionID     string     `json:"session_id"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	TimeRemaining int        `json:"estimated_time_remaining"`
	VideoURL      string     `json:"video_url,omitempty"`
	ErrorMessage  string     `json:"error,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// UserVideoSummary is one row in a user's video listing. The analysis text is
// truncated so listings stay small. Status, progress, and the generated video
// URL come from the session's newest generation job when one exists; a session
// that was never generated reports "analyzed" with zero progress.
type UserVideoSummary struct {
	SessionID         string    `json:"session_id"`
	VideoURL          string    `json:"video_url"` // Storage URL of the uploaded sample video.
	Analysis          string    `json:"analysis"`  // Truncated preview of the analysis.
	Plan              string    `json:"plan"`
	CreatedAt         time.Time `json:"created_at"`
	Status            string    `json:"status"`
	Progress          int       `json:"progress"`
	GeneratedVideoURL string    `json:"generated_video_url,omitempty"` // Download URL of the finished generation.
}

// AnalysisPreviewLength is the number of characters of analysis text shown in
// listings before truncation.
const AnalysisPreviewLength = 200

// TruncateAnalysis trims analysis text to the listing preview length,
// appending an ellipsis when anything was cut.
func TruncateAnalysis(analysis string) string {
	if len(analysis) <= AnalysisPreviewLength {
		return analysis
	}
	return analysis[:AnalysisPreviewLength] + "..."
}
