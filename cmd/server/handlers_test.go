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

// This file tests the HTTP surface against in-memory fakes: registration
// idempotency, upload validation and the full upload-and-analyze pipeline,
// plan revision, and the generation job lifecycle endpoints.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sonirn/Back-id/internal/cloud"
	"github.com/sonirn/Back-id/internal/core/analysis"
	"github.com/sonirn/Back-id/internal/core/generation"
	"github.com/sonirn/Back-id/internal/core/model"
	"github.com/sonirn/Back-id/internal/core/services"
	"github.com/sonirn/Back-id/internal/core/workflow"
)

// --- In-memory fakes -------------------------------------------------------

type fakeUserService struct {
	mu    sync.Mutex
	users map[string]*model.User // Keyed by email.
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{users: make(map[string]*model.User)}
}

func (f *fakeUserService) CreateOrFetch(_ context.Context, email string, name string) (*model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.users[email]; ok {
		existing.LastLogin = time.Now().UTC()
		return existing, false, nil
	}
	user := model.NewUser(email, name)
	f.users[email] = user
	return user, true, nil
}

func (f *fakeUserService) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, services.ErrNotFound
}

type fakeAnalysisService struct {
	mu      sync.Mutex
	records map[string]*model.VideoAnalysis // Keyed by session ID.
}

func newFakeAnalysisService() *fakeAnalysisService {
	return &fakeAnalysisService{records: make(map[string]*model.VideoAnalysis)}
}

func (f *fakeAnalysisService) Insert(_ context.Context, record *model.VideoAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.SessionID] = record
	return nil
}

func (f *fakeAnalysisService) GetBySession(_ context.Context, sessionID string) (*model.VideoAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[sessionID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return record, nil
}

func (f *fakeAnalysisService) UpdatePlan(_ context.Context, sessionID string, plan string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[sessionID]
	if !ok {
		return services.ErrNotFound
	}
	record.Plan = plan
	record.ModifiedAt = time.Now().UTC()
	return nil
}

func (f *fakeAnalysisService) ListByUser(_ context.Context, userID string) ([]*model.VideoAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.VideoAnalysis, 0)
	for _, record := range f.records {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeGenerationService struct {
	mu   sync.Mutex
	jobs map[string]*model.VideoGeneration // Keyed by job ID.
}

func newFakeGenerationService() *fakeGenerationService {
	return &fakeGenerationService{jobs: make(map[string]*model.VideoGeneration)}
}

func (f *fakeGenerationService) Insert(_ context.Context, job *model.VideoGeneration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeGenerationService) GetBySession(_ context.Context, sessionID string) (*model.VideoGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *model.VideoGeneration
	for _, job := range f.jobs {
		if job.SessionID != sessionID {
			continue
		}
		if newest == nil || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
		}
	}
	if newest == nil {
		return nil, services.ErrNotFound
	}
	copied := *newest
	return &copied, nil
}

func (f *fakeGenerationService) SetProcessing(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].Status = model.GenerationStatusProcessing
	return nil
}

func (f *fakeGenerationService) SetProgress(_ context.Context, id string, progress int, timeRemaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].Progress = progress
	f.jobs[id].TimeRemaining = timeRemaining
	return nil
}

func (f *fakeGenerationService) SetCompleted(_ context.Context, id string, videoURL string, completedAt time.Time, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[id]
	job.Status = model.GenerationStatusCompleted
	job.Progress = 100
	job.TimeRemaining = 0
	job.VideoURL = videoURL
	job.CompletedAt = &completedAt
	job.ExpiresAt = &expiresAt
	return nil
}

func (f *fakeGenerationService) SetFailed(_ context.Context, id string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].Status = model.GenerationStatusFailed
	f.jobs[id].ErrorMessage = message
	return nil
}

// fakeUploader records uploads and fabricates storage URLs.
type fakeUploader struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "https://storage.test/bucket/" + key, nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

// cannedStrategy is an analysis strategy returning a fixed result.
type cannedStrategy struct {
	result *analysis.Result
}

func (c *cannedStrategy) Name() string { return "canned" }

func (c *cannedStrategy) Analyze(_ context.Context, _ *analysis.Input) (*analysis.Result, error) {
	return c.result, nil
}

// fakeReviser appends the modification to the plan so tests can see both
// inputs in the output.
type fakeReviser struct{}

func (f *fakeReviser) Revise(_ context.Context, plan string, modification string) (string, error) {
	return plan + " [revised: " + modification + "]", nil
}

// --- Harness ---------------------------------------------------------------

// setupTestState wires the package state with fakes and returns the router
// and the uploader for assertions.
func setupTestState(t *testing.T) (*gin.Engine, *fakeUploader, *fakeAnalysisService, *fakeGenerationService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	uploader := &fakeUploader{}
	analyses := newFakeAnalysisService()
	generations := newFakeGenerationService()

	config := cloud.NewConfig()
	config.Application.Name = "video-generation-backend-test"
	config.Application.ScratchDir = t.TempDir()

	chain := analysis.NewChain("test-analysis",
		&cannedStrategy{result: &analysis.Result{
			Analysis: "a detailed look at the sample video",
			Plan:     "scene-by-scene generation plan",
			Strategy: "canned",
		}})

	state = &StateManager{
		config:      config,
		users:       newFakeUserService(),
		analyses:    analyses,
		generations: generations,
		planReviser: &fakeReviser{},
		simulator: generation.NewSimulator(generations, generation.Timings{
			StepDelay:  time.Millisecond,
			FinalDelay: time.Millisecond,
		}, generation.DefaultDownloadBaseURL),
		uploadWorkflow: workflow.NewUploadAnalyzeWorkflow("test-upload", uploader, chain, analyses, "analyze this"),
	}

	r := gin.New()
	api := r.Group("/api")
	UserRouter(api)
	VideoRouter(api)
	GenerationRouter(api)
	return r, uploader, analyses, generations
}

// postJSON performs a JSON POST against the router.
func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// postForm performs a form-encoded POST against the router.
func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// multipartUpload builds a multipart body with a single file part carrying
// an explicit Content-Type, plus the user_id field.
func multipartUpload(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("user_id", "user-1"); err != nil {
		t.Fatal(err)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return body, writer.FormDataContentType()
}

// --- Tests -----------------------------------------------------------------

// TestCreateUserIdempotent verifies that the first registration creates the
// account and a repeat with the same email returns the same user identifier.
func TestCreateUserIdempotent(t *testing.T) {
	r, _, _, _ := setupTestState(t)

	first := postForm(r, "/api/create-user", url.Values{"email": {"a@b.com"}})
	assert.Equal(t, http.StatusCreated, first.Code)
	var created model.CreateUserResponse
	assert.NoError(t, json.Unmarshal(first.Body.Bytes(), &created))
	assert.NotEmpty(t, created.UserID)

	second := postForm(r, "/api/create-user", url.Values{"email": {"a@b.com"}})
	assert.Equal(t, http.StatusOK, second.Code)
	var fetched model.CreateUserResponse
	assert.NoError(t, json.Unmarshal(second.Body.Bytes(), &fetched))
	assert.Equal(t, created.UserID, fetched.UserID)
}

// TestCreateUserRequiresEmail verifies that registration without an email is
// rejected.
func TestCreateUserRequiresEmail(t *testing.T) {
	r, _, _, _ := setupTestState(t)
	w := postForm(r, "/api/create-user", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestUploadVideoRejectsUnsupportedType verifies that a non-video upload is
// rejected before anything reaches object storage.
func TestUploadVideoRejectsUnsupportedType(t *testing.T) {
	r, uploader, _, _ := setupTestState(t)

	body, contentType := multipartUpload(t, "video_file", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload-video", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, uploader.count())
}

// TestUploadVideoRejectsUndeclaredVideoType verifies that acceptance is
// decided by the declared Content-Type prefix alone: a part declared as a
// generic binary stream is rejected even when its bytes are a valid MP4,
// and nothing reaches object storage.
func TestUploadVideoRejectsUndeclaredVideoType(t *testing.T) {
	r, uploader, _, _ := setupTestState(t)

	mp4Magic := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypmp42")...)
	mp4Magic = append(mp4Magic, make([]byte, 32)...)
	body, contentType := multipartUpload(t, "video_file", "sample.mp4", "application/octet-stream", mp4Magic)
	req := httptest.NewRequest(http.MethodPost, "/api/upload-video", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, uploader.count())
}

// TestUploadVideoAcceptsAnyVideoSubtype verifies that any declared video
// subtype passes validation, not just a fixed list of containers.
func TestUploadVideoAcceptsAnyVideoSubtype(t *testing.T) {
	r, uploader, _, _ := setupTestState(t)

	body, contentType := multipartUpload(t, "video_file", "sample.ogv", "video/ogg", []byte("fake ogg bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload-video", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, uploader.count())
}

// TestUploadVideoRunsPipeline verifies the happy path: the video lands in
// object storage under the samples prefix and the response carries the
// session, analysis, and plan from the stored document.
func TestUploadVideoRunsPipeline(t *testing.T) {
	r, uploader, analyses, _ := setupTestState(t)

	body, contentType := multipartUpload(t, "video_file", "sample.mp4", "video/mp4", []byte("fake video bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload-video", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp model.UploadResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "a detailed look at the sample video", resp.Analysis)
	assert.Equal(t, "scene-by-scene generation plan", resp.Plan)
	assert.Contains(t, resp.VideoURL, "samples/"+resp.SessionID)

	assert.Equal(t, 1, uploader.count())

	stored, err := analyses.GetBySession(context.Background(), resp.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, model.AnalysisStatusAnalyzed, stored.Status)
}

// TestUploadVideoRequiresUser verifies that the user_id form field is
// mandatory.
func TestUploadVideoRequiresUser(t *testing.T) {
	r, _, _, _ := setupTestState(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	assert.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload-video", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestModifyPlanNotFound verifies the 404 on an unknown session.
func TestModifyPlanNotFound(t *testing.T) {
	r, _, _, _ := setupTestState(t)
	w := postJSON(r, "/api/modify-plan", model.PlanModificationRequest{
		SessionID:    "missing",
		Modification: "make it shorter",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestModifyPlanRevisesAndStores verifies that a revision rewrites the
// stored plan and returns the new text.
func TestModifyPlanRevisesAndStores(t *testing.T) {
	r, _, analyses, _ := setupTestState(t)

	record := model.NewVideoAnalysis("session-1", "user-1")
	record.Plan = "original plan"
	assert.NoError(t, analyses.Insert(context.Background(), record))

	w := postJSON(r, "/api/modify-plan", model.PlanModificationRequest{
		SessionID:    "session-1",
		Modification: "add a drone shot",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp model.PlanModificationResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "original plan [revised: add a drone shot]", resp.ModifiedPlan)

	stored, err := analyses.GetBySession(context.Background(), "session-1")
	assert.NoError(t, err)
	assert.Equal(t, resp.ModifiedPlan, stored.Plan)
	assert.False(t, stored.ModifiedAt.IsZero())
}

// TestGenerateVideoLifecycle verifies acceptance, the duplicate-start
// conflict, and the polled status reaching completion.
func TestGenerateVideoLifecycle(t *testing.T) {
	r, _, analyses, _ := setupTestState(t)

	record := model.NewVideoAnalysis("session-1", "user-1")
	record.Plan = "the plan"
	assert.NoError(t, analyses.Insert(context.Background(), record))

	accepted := postJSON(r, "/api/generate-video", model.VideoGenerationRequest{
		SessionID: "session-1",
	})
	assert.Equal(t, http.StatusOK, accepted.Code)
	var job model.GenerationAccepted
	assert.NoError(t, json.Unmarshal(accepted.Body.Bytes(), &job))
	assert.Equal(t, "success", job.Status)
	assert.Equal(t, "session-1", job.SessionID)

	// A second start for the same session conflicts while the first runs.
	dup := postJSON(r, "/api/generate-video", model.VideoGenerationRequest{
		SessionID: "session-1",
	})
	if dup.Code != http.StatusConflict {
		// The compressed simulation may already have finished; either the
		// conflict or a fresh acceptance is correct here.
		assert.Equal(t, http.StatusOK, dup.Code)
	}

	// Poll until the job completes.
	assert.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/generation-status/session-1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			return false
		}
		var status model.GenerationStatus
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Status == model.GenerationStatusCompleted &&
			status.Progress == 100 &&
			status.VideoURL != ""
	}, 5*time.Second, 10*time.Millisecond)
}

// TestGenerateVideoWithoutStoredAnalysis verifies that a generation request
// is accepted for any session: session correspondence with an analysis is
// not enforced at write time, so a session no analysis was stored for still
// gets a queued job carrying the supplied plan.
func TestGenerateVideoWithoutStoredAnalysis(t *testing.T) {
	r, _, _, generations := setupTestState(t)

	w := postJSON(r, "/api/generate-video", model.VideoGenerationRequest{
		SessionID: "adhoc-session",
		Plan:      "a plan supplied inline",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	job, err := generations.GetBySession(context.Background(), "adhoc-session")
	assert.NoError(t, err)
	assert.Equal(t, "a plan supplied inline", job.Plan)
}

// TestGenerationStatusNotFound verifies the 404 when no job exists for the
// session.
func TestGenerationStatusNotFound(t *testing.T) {
	r, _, _, _ := setupTestState(t)
	req := httptest.NewRequest(http.MethodGet, "/api/generation-status/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestUserVideosEmptyList verifies that a user with no sessions gets an
// empty array rather than null or an error.
func TestUserVideosEmptyList(t *testing.T) {
	r, _, _, _ := setupTestState(t)
	req := httptest.NewRequest(http.MethodGet, "/api/user-videos/nobody", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Videos []model.UserVideoSummary `json:"videos"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Videos)
	assert.Len(t, resp.Videos, 0)
}

// TestUserVideosTruncatesAnalysis verifies the listing's analysis preview.
func TestUserVideosTruncatesAnalysis(t *testing.T) {
	r, _, analyses, _ := setupTestState(t)

	record := model.NewVideoAnalysis("session-1", "user-1")
	record.Analysis = string(bytes.Repeat([]byte("z"), model.AnalysisPreviewLength+100))
	assert.NoError(t, analyses.Insert(context.Background(), record))

	req := httptest.NewRequest(http.MethodGet, "/api/user-videos/user-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Videos []model.UserVideoSummary `json:"videos"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Videos, 1)
	assert.Len(t, resp.Videos[0].Analysis, model.AnalysisPreviewLength+3)
}

// TestUserVideosJoinsGenerationState verifies that the listing reflects each
// session's newest generation job, while sessions never generated keep the
// analyzed status with zero progress.
func TestUserVideosJoinsGenerationState(t *testing.T) {
	r, _, analyses, generations := setupTestState(t)

	generated := model.NewVideoAnalysis("session-done", "user-1")
	assert.NoError(t, analyses.Insert(context.Background(), generated))
	pending := model.NewVideoAnalysis("session-pending", "user-1")
	assert.NoError(t, analyses.Insert(context.Background(), pending))

	job := model.NewVideoGeneration("session-done", "user-1", "the plan", 300)
	assert.NoError(t, generations.Insert(context.Background(), job))
	completedAt := time.Now().UTC()
	expiry := completedAt.AddDate(0, 0, 7)
	assert.NoError(t, generations.SetCompleted(context.Background(), job.ID,
		"https://example.com/generated_videos/session-done.mp4", completedAt, expiry))

	req := httptest.NewRequest(http.MethodGet, "/api/user-videos/user-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Videos []model.UserVideoSummary `json:"videos"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Videos, 2)

	bysession := map[string]model.UserVideoSummary{}
	for _, video := range resp.Videos {
		bysession[video.SessionID] = video
	}
	done := bysession["session-done"]
	assert.Equal(t, model.GenerationStatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "https://example.com/generated_videos/session-done.mp4", done.GeneratedVideoURL)

	waiting := bysession["session-pending"]
	assert.Equal(t, model.AnalysisStatusAnalyzed, waiting.Status)
	assert.Equal(t, 0, waiting.Progress)
	assert.Empty(t, waiting.GeneratedVideoURL)
}

// TestAnalysisNotFound verifies the 404 on an unknown session.
func TestAnalysisNotFound(t *testing.T) {
	r, _, _, _ := setupTestState(t)
	req := httptest.NewRequest(http.MethodGet, "/api/analysis/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
