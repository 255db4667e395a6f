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

package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// strategyCounters is the per-strategy success and error counter pair.
type strategyCounters struct {
	success metric.Int64Counter
	failure metric.Int64Counter
}

// Chain runs its strategies in declaration order and returns the first
// successful result. Each failure is logged and counted against its own
// strategy, then the next strategy gets its turn; only when every strategy
// fails does the chain return an error, carrying all the individual
// failures.
type Chain struct {
	name         string
	strategies   []Strategy
	tracer       trace.Tracer
	counters     map[string]strategyCounters
	errorCounter metric.Int64Counter // Counts runs where every strategy failed.
}

// NewChain is a constructor function that creates a fallback chain over the
// given strategies. Every strategy gets its own success and error counter
// pair, named after the chain and the strategy.
//
// Inputs:
//   - name: The chain name used in traces and metrics.
//   - strategies: The strategies to try, in order of preference.
//
// Outputs:
//   - *Chain: A pointer to the new chain.
func NewChain(name string, strategies ...Strategy) *Chain {
	meter := otel.Meter("github.com/sonirn/Back-id")
	counters := make(map[string]strategyCounters, len(strategies))
	for _, strategy := range strategies {
		success, err := meter.Int64Counter(fmt.Sprintf("%s.%s.counter.success", name, strategy.Name()))
		if err != nil {
			slog.Warn("error creating success counter", "chain", name, "strategy", strategy.Name(), "error", err)
		}
		failure, err := meter.Int64Counter(fmt.Sprintf("%s.%s.counter.error", name, strategy.Name()))
		if err != nil {
			slog.Warn("error creating error counter", "chain", name, "strategy", strategy.Name(), "error", err)
		}
		counters[strategy.Name()] = strategyCounters{success: success, failure: failure}
	}
	errorCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.error", name))
	if err != nil {
		slog.Warn("error creating error counter", "chain", name, "error", err)
	}
	return &Chain{
		name:         name,
		strategies:   strategies,
		tracer:       otel.Tracer(name),
		counters:     counters,
		errorCounter: errorCounter,
	}
}

// Analyze tries each strategy until one produces a result.
//
// Inputs:
//   - ctx: The context for all provider calls.
//   - in: The assets and prompt for this session.
//
// Outputs:
//   - *Result: The first successful result, tagged with its strategy name.
//   - error: The joined errors of every strategy when all of them fail.
func (c *Chain) Analyze(ctx context.Context, in *Input) (*Result, error) {
	outerCtx, chainSpan := c.tracer.Start(ctx, fmt.Sprintf("%s_analyze", c.name))
	defer chainSpan.End()

	var failures []error
	for _, strategy := range c.strategies {
		strategyCtx, span := c.tracer.Start(outerCtx, strategy.Name())
		result, err := strategy.Analyze(strategyCtx, in)
		if err == nil {
			span.SetStatus(codes.Ok, "strategy produced a result")
			span.End()
			c.counters[strategy.Name()].success.Add(outerCtx, 1)
			chainSpan.SetStatus(codes.Ok, fmt.Sprintf("analysis produced by %s", strategy.Name()))
			slog.InfoContext(outerCtx, "analysis complete",
				"session_id", in.SessionID,
				"strategy", strategy.Name(),
				"degraded", result.Degraded)
			return result, nil
		}
		span.SetStatus(codes.Error, err.Error())
		span.End()
		c.counters[strategy.Name()].failure.Add(outerCtx, 1)
		slog.WarnContext(outerCtx, "analysis strategy failed, falling through",
			"session_id", in.SessionID,
			"strategy", strategy.Name(),
			"error", err)
		failures = append(failures, err)
	}

	c.errorCounter.Add(outerCtx, 1)
	chainSpan.SetStatus(codes.Error, "all analysis strategies failed")
	return nil, fmt.Errorf("all analysis strategies failed: %w", errors.Join(failures...))
}
