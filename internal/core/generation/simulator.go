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

// Package generation runs simulated video generation jobs. A real render
// farm is not part of this service; jobs advance through a fixed progress
// schedule in the background while clients poll their status.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sonirn/Back-id/internal/core/model"
	"github.com/sonirn/Back-id/internal/core/services"
)

// ErrGenerationInFlight is returned when a session already has a running
// generation job. Callers should surface it as a conflict rather than
// starting a second job for the same session.
var ErrGenerationInFlight = errors.New("generation already in flight for session")

// InitialEstimateSeconds is the time-remaining estimate attached to a job
// when it is accepted.
const InitialEstimateSeconds = 300

// videoExpiry is how long a finished video stays downloadable.
const videoExpiry = 7 * 24 * time.Hour

// DefaultDownloadBaseURL is where finished videos are published. The
// simulator fabricates links under this base; no real file exists behind
// them.
const DefaultDownloadBaseURL = "https://example.com/generated_videos"

// Timings controls the pace of a simulated job. Production uses the defaults;
// tests compress them to keep runs fast.
type Timings struct {
	StepDelay  time.Duration // Wait between progress increments.
	FinalDelay time.Duration // Wait between the last increment and completion.
}

// DefaultTimings returns the production pace: five seconds between progress
// steps and a ten second finalization.
func DefaultTimings() Timings {
	return Timings{
		StepDelay:  5 * time.Second,
		FinalDelay: 10 * time.Second,
	}
}

// Simulator accepts generation jobs and advances them in the background.
// One job per session may be in flight at a time; starting a second is a
// conflict until the first reaches a terminal state.
type Simulator struct {
	generations services.GenerationService
	timings     Timings
	downloadURL string // Base URL finished videos are published under.

	mu       sync.Mutex
	inFlight map[string]struct{} // Sessions with a running job.
}

// NewSimulator is a constructor function that creates a job simulator.
//
// Inputs:
//   - generations: The persistence service job state is written through.
//   - timings: The pace of the simulated work.
//   - downloadURL: The base URL for finished video links.
//
// Outputs:
//   - *Simulator: A pointer to the new simulator.
func NewSimulator(generations services.GenerationService, timings Timings, downloadURL string) *Simulator {
	return &Simulator{
		generations: generations,
		timings:     timings,
		downloadURL: downloadURL,
		inFlight:    make(map[string]struct{}),
	}
}

// Start accepts a job for a session and begins advancing it in the
// background. The job document is inserted in the queued state before Start
// returns, so a status poll immediately after acceptance always finds it.
//
// Inputs:
//   - ctx: The request context, used only for the initial insert. The
//     background work runs detached so client disconnects do not abort jobs.
//   - sessionID: The session whose plan is being generated.
//   - userID: The requesting account.
//   - plan: The plan text snapshot to generate from.
//
// Outputs:
//   - *model.VideoGeneration: The accepted job in its queued state.
//   - error: ErrGenerationInFlight when the session already has a running
//     job, or a wrapped persistence error.
func (s *Simulator) Start(ctx context.Context, sessionID string, userID string, plan string) (*model.VideoGeneration, error) {
	s.mu.Lock()
	if _, exists := s.inFlight[sessionID]; exists {
		s.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	s.inFlight[sessionID] = struct{}{}
	s.mu.Unlock()

	job := model.NewVideoGeneration(sessionID, userID, plan, InitialEstimateSeconds)
	if err := s.generations.Insert(ctx, job); err != nil {
		s.release(sessionID)
		return nil, err
	}

	go s.run(job)
	return job, nil
}

// InFlight reports whether a session currently has a running job.
func (s *Simulator) InFlight(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.inFlight[sessionID]
	return exists
}

// release drops a session from the in-flight set.
func (s *Simulator) release(sessionID string) {
	s.mu.Lock()
	delete(s.inFlight, sessionID)
	s.mu.Unlock()
}

// run advances a job through the progress schedule: processing starts at 10,
// climbs to 90 in steps of 10, then a final wait precedes completion. The
// time-remaining estimate shrinks with progress. Runs on its own goroutine
// with a background context.
func (s *Simulator) run(job *model.VideoGeneration) {
	defer s.release(job.SessionID)
	ctx := context.Background()

	// Entering the processing state already shows visible progress, so a
	// poll right after acceptance never sees a processing job stuck at zero.
	if err := s.generations.SetProcessing(ctx, job.ID); err != nil {
		s.fail(ctx, job, fmt.Errorf("failed to start processing: %w", err))
		return
	}
	if err := s.generations.SetProgress(ctx, job.ID, 10, InitialEstimateSeconds); err != nil {
		s.fail(ctx, job, fmt.Errorf("failed to record progress: %w", err))
		return
	}

	for progress := 20; progress <= 90; progress += 10 {
		time.Sleep(s.timings.StepDelay)
		remaining := InitialEstimateSeconds - progress*3
		if remaining < 0 {
			remaining = 0
		}
		if err := s.generations.SetProgress(ctx, job.ID, progress, remaining); err != nil {
			s.fail(ctx, job, fmt.Errorf("failed to record progress: %w", err))
			return
		}
	}

	time.Sleep(s.timings.FinalDelay)

	videoURL := fmt.Sprintf("%s/%s.mp4", s.downloadURL, job.SessionID)
	completedAt := time.Now().UTC()
	expiresAt := completedAt.Add(videoExpiry)
	if err := s.generations.SetCompleted(ctx, job.ID, videoURL, completedAt, expiresAt); err != nil {
		s.fail(ctx, job, fmt.Errorf("failed to complete job: %w", err))
		return
	}
	slog.Info("generation completed",
		"session_id", job.SessionID,
		"generation_id", job.ID,
		"video_url", videoURL)
}

// fail marks a job failed, logging when even the failure cannot be recorded.
func (s *Simulator) fail(ctx context.Context, job *model.VideoGeneration, cause error) {
	slog.Error("generation failed",
		"session_id", job.SessionID,
		"generation_id", job.ID,
		"error", cause)
	if err := s.generations.SetFailed(ctx, job.ID, cause.Error()); err != nil {
		slog.Error("failed to record generation failure",
			"generation_id", job.ID,
			"error", err)
	}
}
