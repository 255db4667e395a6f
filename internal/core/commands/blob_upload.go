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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface for the upload-and-analyze
// pipeline. This file defines the command that copies a session's scratch
// files into object storage.
//
// Logic Flow:
//  1. The command takes an UploadAssets bundle as its input from the context.
//     The bundle holds the local scratch paths the handler wrote the
//     multipart files to.
//  2. Each present asset is uploaded under its prefix: samples/ for the
//     video, characters/ for the image, audio/ for the audio track.
//  3. The resulting storage URLs are written back onto the bundle, which is
//     stored both under its canonical key and as the chain output so the
//     analysis and persistence steps can reach it.
package commands

import (
	"fmt"
	"path/filepath"

	"github.com/sonirn/Back-id/internal/cloud"
	"github.com/sonirn/Back-id/internal/core/cor"
)

// Object storage prefixes for each asset kind.
const (
	VideoKeyPrefix = "samples"
	ImageKeyPrefix = "characters"
	AudioKeyPrefix = "audio"
)

// UploadAssets is the bundle of scratch files for one upload session. It is
// the primary value piped through the upload-and-analyze chain; the URL
// fields are filled in as the assets land in object storage.
type UploadAssets struct {
	SessionID string
	UserID    string
	VideoPath string
	VideoMIME string
	ImagePath string // Empty when no character image was uploaded.
	ImageMIME string
	AudioPath string // Empty when no audio track was uploaded.
	AudioMIME string
	VideoURL  string
	ImageURL  string
	AudioURL  string
}

// BlobUpload is a command that copies a session's assets to object storage.
type BlobUpload struct {
	cor.BaseCommand
	uploader cloud.ObjectUploader
}

// NewBlobUpload is the constructor for the BlobUpload command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - uploader: The object storage client to upload through.
//
// Outputs:
//   - *BlobUpload: A pointer to the newly instantiated command.
func NewBlobUpload(name string, uploader cloud.ObjectUploader) *BlobUpload {
	return &BlobUpload{BaseCommand: *cor.NewBaseCommand(name), uploader: uploader}
}

// GetUploadAssetsParameterName returns the canonical key the asset bundle is
// stored under, so later commands can reach it even after the chain's piping
// has replaced the primary input.
func GetUploadAssetsParameterName() string {
	return "__UPLOAD_ASSETS__"
}

// Execute uploads each present asset and records its storage URL.
//
// Inputs:
//   - context: The shared cor.Context for this workflow execution.
func (c *BlobUpload) Execute(context cor.Context) {
	assets := context.Get(c.GetInputParam()).(*UploadAssets)
	ctx := context.GetContext()

	videoURL, err := c.uploader.Upload(ctx,
		objectKey(VideoKeyPrefix, assets.SessionID, assets.VideoPath),
		assets.VideoPath, assets.VideoMIME)
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to upload video: %w", err))
		return
	}
	assets.VideoURL = videoURL

	if assets.ImagePath != "" {
		imageURL, err := c.uploader.Upload(ctx,
			objectKey(ImageKeyPrefix, assets.SessionID, assets.ImagePath),
			assets.ImagePath, assets.ImageMIME)
		if err != nil {
			c.GetErrorCounter().Add(ctx, 1)
			context.AddError(c.GetName(), fmt.Errorf("failed to upload image: %w", err))
			return
		}
		assets.ImageURL = imageURL
	}

	if assets.AudioPath != "" {
		audioURL, err := c.uploader.Upload(ctx,
			objectKey(AudioKeyPrefix, assets.SessionID, assets.AudioPath),
			assets.AudioPath, assets.AudioMIME)
		if err != nil {
			c.GetErrorCounter().Add(ctx, 1)
			context.AddError(c.GetName(), fmt.Errorf("failed to upload audio: %w", err))
			return
		}
		assets.AudioURL = audioURL
	}

	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(GetUploadAssetsParameterName(), assets)
	context.Add(c.GetOutputParam(), assets)
}

// objectKey builds the storage key for an asset, keeping the scratch file's
// extension so the stored object stays recognizable.
func objectKey(prefix string, sessionID string, localPath string) string {
	return fmt.Sprintf("%s/%s%s", prefix, sessionID, filepath.Ext(localPath))
}
