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

// Package main contains the HTTP route handlers for the video generation
// backend. The handlers are thin: they validate and decode requests, call
// into the application services held by the StateManager, and render the
// results. Business logic lives in the internal packages.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/sonirn/Back-id/internal/core/commands"
	"github.com/sonirn/Back-id/internal/core/cor"
	"github.com/sonirn/Back-id/internal/core/generation"
	"github.com/sonirn/Back-id/internal/core/model"
	"github.com/sonirn/Back-id/internal/core/services"
)

// Required MIME-type prefixes per asset kind. Each part's declared
// Content-Type must start with its prefix; anything else is rejected before
// the bytes reach object storage or the analysis provider.
const (
	videoMIMEPrefix = "video/"
	imageMIMEPrefix = "image/"
	audioMIMEPrefix = "audio/"
)

// UserRouter sets up the account registration route.
//
// Inputs:
//   - r: A *gin.RouterGroup the route is added to.
//
// This function defines the following endpoint:
//   - POST /create-user: Registers an account, or acts as a login when the
//     email is already registered.
func UserRouter(r *gin.RouterGroup) {
	r.POST("/create-user", func(c *gin.Context) {
		email := c.PostForm("email")
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
			return
		}
		user, created, err := state.users.CreateOrFetch(c.Request.Context(), email, c.PostForm("name"))
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to create user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		status, message := http.StatusOK, "user already registered"
		if created {
			status, message = http.StatusCreated, "user created"
		}
		c.JSON(status, model.CreateUserResponse{UserID: user.ID, Message: message})
	})
}

// VideoRouter sets up the upload and retrieval routes.
//
// Inputs:
//   - r: A *gin.RouterGroup the routes are added to.
//
// This function defines the following endpoints:
//   - POST /upload-video: Accepts a multipart upload (video plus optional
//     character image and audio track), runs the upload-and-analyze
//     workflow, and returns the session's analysis and plan.
//   - GET /analysis/:session_id: Returns the full stored analysis.
//   - GET /user-videos/:user_id: Lists a user's sessions, newest first, with
//     truncated analysis previews.
func VideoRouter(r *gin.RouterGroup) {
	r.POST("/upload-video", func(c *gin.Context) {
		userID := c.PostForm("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		video, err := c.FormFile("video_file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "video_file is required"})
			return
		}

		sessionID := uuid.NewString()
		corCtx := cor.NewBaseContext()
		corCtx.SetContext(c.Request.Context())
		defer corCtx.Close()

		assets := &commands.UploadAssets{SessionID: sessionID, UserID: userID}

		assets.VideoPath, assets.VideoMIME, err = saveAsset(c, corCtx, video, sessionID, "sample", ".mp4", videoMIMEPrefix)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if image, err := c.FormFile("character_image"); err == nil {
			assets.ImagePath, assets.ImageMIME, err = saveAsset(c, corCtx, image, sessionID, "character", ".jpg", imageMIMEPrefix)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if audio, err := c.FormFile("audio_file"); err == nil {
			assets.AudioPath, assets.AudioMIME, err = saveAsset(c, corCtx, audio, sessionID, "audio", ".mp3", audioMIMEPrefix)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		corCtx.Add(cor.CtxIn, assets)
		state.uploadWorkflow.Execute(corCtx)
		if corCtx.HasErrors() {
			for name, err := range corCtx.GetErrors() {
				slog.ErrorContext(c.Request.Context(), "upload workflow failed",
					"session_id", sessionID, "command", name, "error", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to analyze video"})
			return
		}

		record := corCtx.Get(cor.CtxIn).(*model.VideoAnalysis)
		c.JSON(http.StatusOK, model.UploadResponse{
			SessionID: record.SessionID,
			VideoURL:  record.VideoURL,
			ImageURL:  record.ImageURL,
			AudioURL:  record.AudioURL,
			Analysis:  record.Analysis,
			Plan:      record.Plan,
		})
	})

	r.GET("/analysis/:session_id", func(c *gin.Context) {
		record, err := state.analyses.GetBySession(c.Request.Context(), c.Param("session_id"))
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to fetch analysis", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch analysis"})
			return
		}
		c.JSON(http.StatusOK, record)
	})

	r.GET("/user-videos/:user_id", func(c *gin.Context) {
		records, err := state.analyses.ListByUser(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to list videos", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list videos"})
			return
		}
		videos := make([]model.UserVideoSummary, 0, len(records))
		for _, record := range records {
			summary := model.UserVideoSummary{
				SessionID: record.SessionID,
				VideoURL:  record.VideoURL,
				Analysis:  model.TruncateAnalysis(record.Analysis),
				Plan:      record.Plan,
				CreatedAt: record.CreatedAt,
				Status:    record.Status,
			}
			// A session may never have started a generation; the summary then
			// keeps the analysis status with zero progress.
			job, err := state.generations.GetBySession(c.Request.Context(), record.SessionID)
			if err == nil {
				summary.Status = job.Status
				summary.Progress = job.Progress
				summary.GeneratedVideoURL = job.VideoURL
			} else if !errors.Is(err, services.ErrNotFound) {
				slog.ErrorContext(c.Request.Context(), "failed to fetch generation for listing",
					"session_id", record.SessionID, "error", err)
			}
			videos = append(videos, summary)
		}
		c.JSON(http.StatusOK, gin.H{"videos": videos})
	})
}

// GenerationRouter sets up the plan revision and generation routes.
//
// Inputs:
//   - r: A *gin.RouterGroup the routes are added to.
//
// This function defines the following endpoints:
//   - POST /modify-plan: Revises a stored plan according to the user's
//     instructions and persists the result.
//   - POST /generate-video: Accepts a generation job for a session. A second
//     start while one is running is a conflict.
//   - GET /generation-status/:session_id: Returns the polled job state.
func GenerationRouter(r *gin.RouterGroup) {
	r.POST("/modify-plan", func(c *gin.Context) {
		var req model.PlanModificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		record, err := state.analyses.GetBySession(c.Request.Context(), req.SessionID)
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to fetch analysis", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch analysis"})
			return
		}

		revised, err := state.planReviser.Revise(c.Request.Context(), record.Plan, req.Modification)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "plan revision failed",
				"session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revise plan"})
			return
		}
		if err := state.analyses.UpdatePlan(c.Request.Context(), req.SessionID, revised); err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to store revised plan",
				"session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store revised plan"})
			return
		}
		c.JSON(http.StatusOK, model.PlanModificationResponse{Status: "success", ModifiedPlan: revised})
	})

	r.POST("/generate-video", func(c *gin.Context) {
		var req model.VideoGenerationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// The session is not required to have a stored analysis; when one
		// exists it supplies the owning user and the default plan.
		plan, userID := req.Plan, ""
		record, err := state.analyses.GetBySession(c.Request.Context(), req.SessionID)
		if err == nil {
			userID = record.UserID
			if plan == "" {
				plan = record.Plan
			}
		} else if !errors.Is(err, services.ErrNotFound) {
			slog.ErrorContext(c.Request.Context(), "failed to fetch analysis", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch analysis"})
			return
		}

		job, err := state.simulator.Start(c.Request.Context(), req.SessionID, userID, plan)
		if errors.Is(err, generation.ErrGenerationInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "generation already in progress for this session"})
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to start generation",
				"session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start generation"})
			return
		}
		c.JSON(http.StatusOK, model.GenerationAccepted{
			Status:    "success",
			Message:   "video generation started",
			SessionID: job.SessionID,
		})
	})

	r.GET("/generation-status/:session_id", func(c *gin.Context) {
		job, err := state.generations.GetBySession(c.Request.Context(), c.Param("session_id"))
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to fetch generation", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch generation"})
			return
		}
		c.JSON(http.StatusOK, model.GenerationStatus{
			SessionID:     job.SessionID,
			Status:        job.Status,
			Progress:      job.Progress,
			TimeRemaining: job.TimeRemaining,
			VideoURL:      job.VideoURL,
			ErrorMessage:  job.ErrorMessage,
			ExpiresAt:     job.ExpiresAt,
		})
	})
}

// saveAsset validates one multipart file's declared Content-Type against the
// required prefix, then writes it into the scratch directory under the
// session's name. Acceptance is decided by the declared type alone; the
// saved bytes are sniffed only to refine a coarse subtype for the analysis
// provider, never to widen what is accepted.
//
// Inputs:
//   - c: The request context the file is read from.
//   - corCtx: The workflow context the scratch path is registered with for
//     cleanup.
//   - file: The multipart file header.
//   - sessionID: The upload session identifier.
//   - suffix: The scratch name suffix for this asset kind.
//   - defaultExt: The extension used when the upload has none.
//   - requiredPrefix: The MIME-type prefix this asset kind must declare.
//
// Outputs:
//   - string: The scratch path the file was written to.
//   - string: The resolved MIME type.
//   - error: An error when the type is not allowed or saving fails.
func saveAsset(
	c *gin.Context,
	corCtx cor.Context,
	file *multipart.FileHeader,
	sessionID string,
	suffix string,
	defaultExt string,
	requiredPrefix string,
) (string, string, error) {
	mimeType := strings.ToLower(file.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, requiredPrefix) {
		return "", "", fmt.Errorf("unsupported %s type %q", suffix, mimeType)
	}

	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = defaultExt
	}
	localPath := filepath.Join(state.config.Application.ScratchDir, fmt.Sprintf("%s_%s%s", sessionID, suffix, ext))
	if err := c.SaveUploadedFile(file, localPath); err != nil {
		return "", "", fmt.Errorf("failed to save %s upload: %w", suffix, err)
	}
	corCtx.AddTempFile(localPath)

	// Browsers sometimes declare a coarse subtype for valid files. When the
	// sniffed type agrees on the asset family, prefer it as the more precise
	// label for the provider.
	if kind, err := filetype.MatchFile(localPath); err == nil && strings.HasPrefix(kind.MIME.Value, requiredPrefix) {
		mimeType = kind.MIME.Value
	}
	return localPath, mimeType, nil
}
