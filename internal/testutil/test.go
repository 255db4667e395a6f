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

// Package test provides utility functions to support the application's test
// suite: loading the test configuration once per run and reducing error
// checking boilerplate.
package test

import (
	"log"
	"os"
	"testing"

	"github.com/sonirn/Back-id/internal/cloud"
)

// StateManager is a simple in-memory cache for the application configuration
// during test runs, so the TOML files are loaded only once per run.
type StateManager struct {
	config *cloud.Config
}

// state holds the singleton instance of StateManager.
var state = &StateManager{}

// HandleErr fails the test when err is not nil. A convenience helper to
// reduce boilerplate error checks in tests.
//
// Inputs:
//   - err: The error to check.
//   - t: The *testing.T object from the current test.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS configures the environment variables the configuration loader
// depends on, pointing it at the test override file.
//
// Outputs:
//   - error: An error if setting any environment variable fails.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration. The TOML
// files are loaded on first call and cached for the rest of the run.
//
// Outputs:
//   - *cloud.Config: A pointer to the loaded and cached configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}
