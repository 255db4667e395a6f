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

package cloud

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectUploader is the narrow surface of the blob store that the upload
// pipeline depends on. Consumers accept this interface so tests can supply
// in-memory fakes without a live object store.
type ObjectUploader interface {
	// Upload copies a local file into the store under the given key and
	// returns the public URL of the stored object.
	Upload(ctx context.Context, key string, filePath string, contentType string) (string, error)
}

// BlobStore wraps an S3-compatible object storage client bound to a single
// bucket. It implements ObjectUploader.
type BlobStore struct {
	client   *minio.Client
	endpoint string // Scheme + host, used to assemble object URLs.
	bucket   string
}

// NewBlobStore is a constructor function that builds the object storage
// client from configuration.
//
// Logic Flow:
//  1. Parse the configured endpoint URL into a host and a scheme. The client
//     wants a bare host while TLS use is a separate flag.
//  2. Create the client with static V4 credentials.
//
// Inputs:
//   - cfg: The object storage section of the configuration file.
//
// Outputs:
//   - *BlobStore: A pointer to the new store.
//   - error: An error if the endpoint does not parse or the client rejects it.
func NewBlobStore(cfg *ObjectStorage) (*BlobStore, error) {
	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid storage endpoint %q: %w", cfg.Endpoint, err)
	}
	client, err := minio.New(parsed.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &BlobStore{
		client:   client,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		bucket:   cfg.Bucket,
	}, nil
}

// EnsureBucket checks for the configured bucket and creates it when absent.
// Called once at startup so uploads never race bucket creation.
//
// Inputs:
//   - ctx: The context for the storage calls.
//
// Outputs:
//   - error: An error if the existence check or the creation fails.
func (b *BlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", b.bucket, err)
	}
	return nil
}

// Upload copies a local file into the bucket and returns its public URL.
//
// Inputs:
//   - ctx: The context for the storage call.
//   - key: The object key, including any prefix (e.g. "samples/abc.mp4").
//   - filePath: The path of the local file to copy.
//   - contentType: The MIME type stored with the object.
//
// Outputs:
//   - string: The URL of the stored object.
//   - error: An error if the upload fails.
func (b *BlobStore) Upload(ctx context.Context, key string, filePath string, contentType string) (string, error) {
	_, err := b.client.FPutObject(ctx, b.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %q: %w", key, err)
	}
	return b.ObjectURL(key), nil
}

// ObjectURL assembles the public URL of an object from the endpoint, the
// bucket name and the key.
func (b *BlobStore) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", b.endpoint, b.bucket, key)
}
