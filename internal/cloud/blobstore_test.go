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

package cloud_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sonirn/Back-id/internal/cloud"
)

// TestNewBlobStoreRejectsBadEndpoint verifies that an endpoint the URL
// parser cannot handle fails construction instead of failing later at upload
// time.
func TestNewBlobStoreRejectsBadEndpoint(t *testing.T) {
	_, err := cloud.NewBlobStore(&cloud.ObjectStorage{
		Endpoint:  "://not-a-url",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "bucket",
	})
	assert.Error(t, err)
}

// TestObjectURL verifies that object URLs are assembled from the endpoint,
// the bucket, and the key, with trailing slashes on the endpoint normalized
// away.
func TestObjectURL(t *testing.T) {
	store, err := cloud.NewBlobStore(&cloud.ObjectStorage{
		Endpoint:  "https://storage.example.com/",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "video-generation-bucket",
	})
	assert.NoError(t, err)

	url := store.ObjectURL("samples/abc.mp4")
	assert.Equal(t, "https://storage.example.com/video-generation-bucket/samples/abc.mp4", url)
}
