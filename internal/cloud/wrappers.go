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

// Package cloud provides components for interacting with external services.
// This file implements a wrapper around the standard Generative AI client.
// The wrapper uses the Decorator design pattern to add extra functionality
// to an existing object without altering its code. Specifically, it adds
// rate limiting, credential rotation and a retry mechanism to the Generative
// AI model.
//
// Why this is important:
//   - Rate Limiting: the Gemini API has per-key request quotas. This wrapper
//     prevents the application from exceeding those limits, which would
//     otherwise result in errors.
//   - Credential rotation: each call draws the next key from the KeyRing so
//     request load spreads across the configured keys.
//   - Retry Logic: network requests can fail for transient reasons. The
//     wrapper retries a failed request, making the application more resilient.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: A struct that wraps a generation config,
//     a model name and the key ring behind a rate limiter.
//
// Functions:
//   - NewQuotaAwareModel: A constructor to create a new instance of the wrapped model.
//   - GenerateContent: The call site that enforces rotation, rate limiting and retries.
package cloud

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// retryCountKey is the context key under which the current retry attempt is
// tracked across recursive GenerateContent calls.
type retryCountKey struct{}

// QuotaAwareGenerativeAIModel is a decorator over the Gemini API that owns a
// generation config and a model name, draws a fresh credential from the key
// ring for every request, and throttles the request rate.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // The generation settings applied to every request.
	ModelName               string                       // The model identifier requests are issued against.
	Keys                    *KeyRing                     // The rotating credential source.
	RateLimit               rate.Limiter                 // Controls request frequency against the provider.
}

// NewQuotaAwareModel is a constructor function that creates a new
// QuotaAwareGenerativeAIModel.
//
// Inputs:
//   - wrapped: The generation config to apply to each request.
//   - name: The model identifier (e.g. "gemini-2.5-flash").
//   - keys: The credential ring each request draws from.
//   - requestsPerSecond: The maximum number of API calls allowed per second.
//
// Outputs:
//   - *QuotaAwareGenerativeAIModel: A pointer to the newly created wrapper.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, keys *KeyRing, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		Keys:                    keys,
		// Allows a burst of requestsPerSecond events, replenished once per second.
		RateLimit: *rate.NewLimiter(rate.Every(time.Second/1), requestsPerSecond),
	}
}

// newClient builds a Gemini API client authenticated with the next credential
// from the ring. A fresh client per call keeps the rotation semantics of the
// ring: every request pays one rotation.
func (q *QuotaAwareGenerativeAIModel) newClient(ctx context.Context) (*genai.Client, error) {
	key := q.Keys.Next()
	if key == "" {
		return nil, errors.New("empty credential drawn from key ring")
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
}

// GenerateContent issues a generation request against the wrapped model.
// This is where the rotation, rate limiting and retry logic live.
//
// Logic Flow:
//  1. Wait on the rate limiter for a slot.
//  2. Build a client with the next rotated credential and issue the request.
//  3. On failure, check the retry count carried in the context. If retries
//     remain, wait briefly and recurse with a fresh credential; otherwise
//     return the error.
//
// Inputs:
//   - ctx: The context for the request, also used to carry retry state.
//   - content: The contents of the multi-modal prompt.
//
// Outputs:
//   - *genai.GenerateContentResponse: The response from the model if successful.
//   - error: An error if the request fails after all retries.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (resp *genai.GenerateContentResponse, err error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}

	client, err := q.newClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err = client.Models.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
	if err != nil {
		retryCount, ok := ctx.Value(retryCountKey{}).(int)
		if !ok {
			retryCount = 0
		}
		if retryCount >= MaxRetries {
			return nil, errors.New("failed generation on max retries")
		}
		errCtx := context.WithValue(ctx, retryCountKey{}, retryCount+1)
		// Give the service a moment to recover before drawing the next key.
		time.Sleep(2 * time.Second)
		return q.GenerateContent(errCtx, content)
	}
	return resp, nil
}
