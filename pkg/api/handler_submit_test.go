package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepread-ai/deepread/pkg/service"
	"github.com/deepread-ai/deepread/pkg/store"
	"github.com/deepread-ai/deepread/pkg/task"
)

func TestPostVideoCreated(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.postJSON(t, "/api/v1/videos", gin.H{
		"url":      "https://youtu.be/dQw4w9WgXcQ",
		"priority": "high",
		"mode":     "ultra",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeSubmission(t, rec)
	assert.Equal(t, service.SubmissionCreated, resp.Status)
	assert.Equal(t, "任务已创建，正在排队处理", resp.Message)
	require.NotEmpty(t, resp.TaskID)

	canonical := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	assert.Equal(t, store.GenerateDocHash(canonical), resp.DocHash)

	created, err := f.manager.Task(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.KindVideo, created.Kind)
	assert.Equal(t, task.ModeUltra, created.Mode)
	assert.Equal(t, task.PriorityHigh, created.Priority)
}

func TestPostVideoMissingURL(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.postJSON(t, "/api/v1/videos", gin.H{"priority": "high"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decodeError(t, rec).Kind)
	assert.Empty(t, f.manager.List())
}

func TestPostVideoUnsupportedURL(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.postJSON(t, "/api/v1/videos", gin.H{"url": "https://example.com/watch?v=nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "invalid_input", body.Kind)
	assert.NotEmpty(t, body.Suggestions)
}

func TestPostVideoExistingReport(t *testing.T) {
	f := newAPIFixture(t, 10)
	url := "https://www.youtube.com/watch?v=BBBBBBBBBBB"
	hash, name := f.seedReport(t, url)

	rec := f.postJSON(t, "/api/v1/videos", gin.H{"url": url})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeSubmission(t, rec)
	assert.Equal(t, service.SubmissionExists, resp.Status)
	assert.Equal(t, hash, resp.DocHash)
	assert.Equal(t, name, resp.Filename)
	assert.Empty(t, resp.TaskID)
	assert.Empty(t, f.manager.List())
}

func TestPostVideoInFlightConflict(t *testing.T) {
	f := newAPIFixture(t, 10)
	url := "https://www.youtube.com/watch?v=AAAAAAAAAAA"

	first := decodeSubmission(t, f.postJSON(t, "/api/v1/videos", gin.H{"url": url}))
	require.NotEmpty(t, first.TaskID)

	rec := f.postJSON(t, "/api/v1/videos", gin.H{"url": url})
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decodeSubmission(t, rec)
	assert.Equal(t, service.SubmissionInProgress, resp.Status)
	assert.Equal(t, first.TaskID, resp.ExistingTaskID)
	assert.Len(t, f.manager.List(), 1)
}

func TestPostVideoQueueFull(t *testing.T) {
	f := newAPIFixture(t, 1)
	rec := f.postJSON(t, "/api/v1/videos", gin.H{"url": "https://www.youtube.com/watch?v=AAAAAAAAAAA"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.postJSON(t, "/api/v1/videos", gin.H{"url": "https://www.youtube.com/watch?v=CCCCCCCCCCC"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "queue_full", body.Kind)
	assert.NotEmpty(t, body.Suggestions)
	assert.Len(t, f.manager.List(), 1)
}

func postMultipart(t *testing.T, f *apiFixture, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestPostDocumentMultipart(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := postMultipart(t, f, "笔记.md", []byte("# 深度学习\n\n一些笔记。"), map[string]string{
		"priority": "low",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeSubmission(t, rec)
	assert.Equal(t, service.SubmissionCreated, resp.Status)
	require.NotEmpty(t, resp.TaskID)

	created, err := f.manager.Task(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.KindDocument, created.Kind)
	assert.Equal(t, task.PriorityLow, created.Priority)
	assert.True(t, strings.HasPrefix(created.SourceID, "markdown://"), created.SourceID)
	assert.NotEmpty(t, created.DocumentPath)
}

func TestPostDocumentMissingFile(t *testing.T) {
	f := newAPIFixture(t, 10)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("priority", "high"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decodeError(t, rec).Kind)
}

func TestPostDocumentUnsupportedType(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := postMultipart(t, f, "archive.zip", []byte("PK"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decodeError(t, rec).Kind)
}

func TestPostReprocessCreated(t *testing.T) {
	f := newAPIFixture(t, 10)
	hash, name := f.seedReport(t, "https://www.youtube.com/watch?v=BBBBBBBBBBB")

	rec := f.postJSON(t, "/api/v1/documents/"+hash+"/reprocess", gin.H{"priority": "urgent"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeSubmission(t, rec)
	assert.Equal(t, service.SubmissionCreated, resp.Status)

	created, err := f.manager.Task(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.KindUltraReprocess, created.Kind)
	assert.Equal(t, task.ModeUltra, created.Mode)
	assert.Equal(t, task.PriorityUrgent, created.Priority)
	assert.Equal(t, name, created.BaseDocument)
}

func TestPostReprocessEmptyBody(t *testing.T) {
	f := newAPIFixture(t, 10)
	hash, _ := f.seedReport(t, "https://www.youtube.com/watch?v=BBBBBBBBBBB")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+hash+"/reprocess", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestPostReprocessUnknownHash(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.postJSON(t, "/api/v1/documents/deadbeef/reprocess", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decodeError(t, rec).Kind)
}

func TestPostConfirmUnknownTask(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.postJSON(t, "/api/v1/tasks/nope/confirm", gin.H{"overrides": gin.H{"style": "轻松科普"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Kind)
}

func TestPostConfirmNotAwaiting(t *testing.T) {
	f := newAPIFixture(t, 10)
	first := decodeSubmission(t, f.postJSON(t, "/api/v1/videos", gin.H{
		"url": "https://www.youtube.com/watch?v=AAAAAAAAAAA",
	}))

	rec := f.postJSON(t, "/api/v1/tasks/"+first.TaskID+"/confirm", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_input", decodeError(t, rec).Kind)
}
