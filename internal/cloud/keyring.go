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
// This file defines the KeyRing, a small round-robin rotator over the
// provider API credentials. The provider enforces per-key quotas, so the
// application spreads its requests across up to three keys. Credential choice
// has no correctness impact (any valid key works), so the rotator only has to
// be fair, not clever.
package cloud

import (
	"errors"
	"sync"
)

// KeyRing holds an ordered list of credentials and a cursor. Next returns the
// credential under the cursor and advances it modulo the list length. The
// cursor is guarded by a mutex so concurrent requests cannot skip or repeat
// an advance.
//
// Absent (empty) credentials are returned as-is: callers must treat an empty
// credential as a provider failure rather than expect the ring to filter them.
type KeyRing struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

// NewKeyRing creates a rotator over the given credentials.
//
// Inputs:
//   - keys: The ordered credential list. Must contain at least one entry;
//     entries may be empty strings.
//
// Outputs:
//   - *KeyRing: The initialized ring.
//   - error: An error when the list is empty.
func NewKeyRing(keys []string) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, errors.New("keyring requires at least one credential")
	}
	return &KeyRing{keys: keys}, nil
}

// Next returns the credential at the current cursor and advances the cursor,
// wrapping to the first entry after the last. Over N calls with N credentials
// every credential is visited exactly once.
func (k *KeyRing) Next() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	key := k.keys[k.cursor]
	k.cursor = (k.cursor + 1) % len(k.keys)
	return key
}

// Len returns the number of credentials in the ring.
func (k *KeyRing) Len() int {
	return len(k.keys)
}
