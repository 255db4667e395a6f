// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the video generation backend server.
//
// This application sets up and runs a web server using the Gin framework. It
// provides a REST API for account registration, video upload and analysis,
// plan revision, and simulated video generation with polled progress. The
// server is instrumented with OpenTelemetry for logging, tracing, and
// metrics.
//
// The main function initializes the application's configuration, sets up
// logging and telemetry, initializes the application state (database, object
// storage, and generative AI clients), registers the API routes, and handles
// graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sonirn/Back-id/internal/telemetry"
)

// main is the primary entry point for the application. It orchestrates the
// setup of logging, telemetry, configuration, service clients, the web
// server, and the API routes, then blocks until an interrupt triggers a
// graceful shutdown.
func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	// Ensure the scratch directory exists before the first upload arrives.
	if err := os.MkdirAll(config.Application.ScratchDir, 0o755); err != nil {
		log.Fatalf("failed to create scratch directory: %v\n", err)
	}

	r := gin.Default()

	// Trace incoming requests and allow cross-origin calls from the web
	// frontend.
	r.Use(otelgin.Middleware(config.Application.Name))
	r.Use(cors.Default())

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "service": config.Application.Name})
		})
		UserRouter(api)
		VideoRouter(api)
		GenerationRouter(api)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Application.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready", "port", config.Application.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Telemetry Shutdown Failed:", "error", err)
	}
	state.cloud.Close(shutdownCtx)

	log.Println("Server exiting")
}
