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

package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sonirn/Back-id/internal/core/analysis"
)

// scriptedStrategy is a test double that either returns a canned result or a
// canned error, recording whether it ran.
type scriptedStrategy struct {
	name   string
	result *analysis.Result
	err    error
	called bool
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Analyze(_ context.Context, _ *analysis.Input) (*analysis.Result, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// TestChainReturnsFirstSuccess verifies that the chain stops at the first
// strategy that produces a result and never runs the ones behind it.
func TestChainReturnsFirstSuccess(t *testing.T) {
	first := &scriptedStrategy{name: "first", result: &analysis.Result{Analysis: "a", Plan: "p", Strategy: "first"}}
	second := &scriptedStrategy{name: "second", result: &analysis.Result{Analysis: "x", Plan: "y", Strategy: "second"}}
	chain := analysis.NewChain("test-chain", first, second)

	result, err := chain.Analyze(context.Background(), &analysis.Input{SessionID: "s1"})
	assert.NoError(t, err)
	assert.Equal(t, "first", result.Strategy)
	assert.True(t, first.called)
	assert.False(t, second.called)
}

// TestChainFallsThroughOnFailure verifies that a failing strategy hands the
// request to the next one in line.
func TestChainFallsThroughOnFailure(t *testing.T) {
	first := &scriptedStrategy{name: "first", err: errors.New("upload rejected")}
	second := &scriptedStrategy{name: "second", err: errors.New("quota exhausted")}
	third := &scriptedStrategy{name: "third", result: &analysis.Result{Analysis: "a", Plan: "p", Strategy: "third", Degraded: true}}
	chain := analysis.NewChain("test-chain", first, second, third)

	result, err := chain.Analyze(context.Background(), &analysis.Input{SessionID: "s1"})
	assert.NoError(t, err)
	assert.Equal(t, "third", result.Strategy)
	assert.True(t, result.Degraded)
	assert.True(t, first.called)
	assert.True(t, second.called)
}

// TestChainAggregatesAllFailures verifies that when every strategy fails the
// returned error carries each individual failure.
func TestChainAggregatesAllFailures(t *testing.T) {
	first := &scriptedStrategy{name: "first", err: errors.New("upload rejected")}
	second := &scriptedStrategy{name: "second", err: errors.New("quota exhausted")}
	chain := analysis.NewChain("test-chain", first, second)

	result, err := chain.Analyze(context.Background(), &analysis.Input{SessionID: "s1"})
	assert.Nil(t, result)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "upload rejected")
	assert.Contains(t, err.Error(), "quota exhausted")
}
