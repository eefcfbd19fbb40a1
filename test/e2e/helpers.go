package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/task"
)

// SubmitVideo posts a video URL expecting 202 and returns the parsed
// response.
func (app *TestApp) SubmitVideo(t *testing.T, url string, extra map[string]any) map[string]any {
	t.Helper()
	return app.SubmitVideoExpect(t, url, extra, http.StatusAccepted)
}

// SubmitVideoExpect posts a video URL and asserts the given status.
func (app *TestApp) SubmitVideoExpect(t *testing.T, url string, extra map[string]any, expectedStatus int) map[string]any {
	t.Helper()
	body := map[string]any{"url": url}
	for k, v := range extra {
		body[k] = v
	}
	return app.postJSON(t, "/api/v1/videos", body, expectedStatus)
}

// SubmitDocument uploads a document via multipart form expecting 202.
func (app *TestApp) SubmitDocument(t *testing.T, filename string, data []byte, fields map[string]string) map[string]any {
	t.Helper()
	return app.SubmitDocumentExpect(t, filename, data, fields, http.StatusAccepted)
}

// SubmitDocumentExpect uploads a document and asserts the given status.
func (app *TestApp) SubmitDocumentExpect(t *testing.T, filename string, data []byte, fields map[string]string, expectedStatus int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequestWithContext(context.Background(),
		http.MethodPost, app.BaseURL+"/api/v1/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "POST /api/v1/documents: unexpected status")
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// ConfirmTask posts a confirmation for an awaiting task.
func (app *TestApp) ConfirmTask(t *testing.T, taskID string, overrides map[string]any) map[string]any {
	t.Helper()
	body := map[string]any{}
	if overrides != nil {
		body["overrides"] = overrides
	}
	return app.postJSON(t, "/api/v1/tasks/"+taskID+"/confirm", body, http.StatusOK)
}

// Reprocess requests an ultra rereading of an existing document lineage.
func (app *TestApp) Reprocess(t *testing.T, docHash string, body map[string]any, expectedStatus int) map[string]any {
	t.Helper()
	return app.postJSON(t, "/api/v1/documents/"+docHash+"/reprocess", body, expectedStatus)
}

// GetTask retrieves a task snapshot.
func (app *TestApp) GetTask(t *testing.T, taskID string) map[string]any {
	t.Helper()
	return app.getJSON(t, "/api/v1/tasks/"+taskID, http.StatusOK)
}

// GetDocumentBody fetches a report by hash and returns the raw Markdown.
func (app *TestApp) GetDocumentBody(t *testing.T, docHash string) string {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(),
		http.MethodGet, app.BaseURL+"/api/v1/documents/"+docHash, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET document %s: unexpected status", docHash)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func (app *TestApp) postJSON(t *testing.T, path string, body any, expectedStatus int) map[string]any {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "POST %s: unexpected status", path)
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]any {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// WaitForTaskStatus polls the manager until the task reaches one of the
// expected statuses.
func (app *TestApp) WaitForTaskStatus(t *testing.T, taskID string, expected ...task.Status) task.Status {
	t.Helper()
	var actual task.Status
	require.Eventually(t, func() bool {
		s, err := app.Manager.Snapshot(taskID)
		if err != nil {
			return false
		}
		actual = s.Status
		for _, exp := range expected {
			if actual == exp {
				return true
			}
		}
		return false
	}, 30*time.Second, 50*time.Millisecond,
		"task %s did not reach status %v (last: %s)", taskID, expected, actual)
	return actual
}

// ReadReport reads a finished report from the documents directory and
// parses its front matter.
func (app *TestApp) ReadReport(t *testing.T, filename string) (*report.Meta, string) {
	t.Helper()
	content, err := app.Store.ReadDocument(filename)
	require.NoError(t, err)
	meta, body, err := report.ParseFrontMatter(content)
	require.NoError(t, err)
	return meta, body
}

// ReportFiles lists the Markdown reports currently on disk.
func (app *TestApp) ReportFiles(t *testing.T) []string {
	t.Helper()
	files, err := app.Store.ListDocuments()
	require.NoError(t, err)
	return files
}

// ScratchFiles globs per-task scratch artifacts, e.g. "chapter_3.md".
func (app *TestApp) ScratchFiles(t *testing.T, name string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(app.Store.TasksDir(), "*", "*", name))
	require.NoError(t, err)
	return matches
}

// RetryCount reads the LLM retry counter from the manual metric reader.
func (app *TestApp) RetryCount(t *testing.T) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, app.Reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "deepread.llm.retries" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}
