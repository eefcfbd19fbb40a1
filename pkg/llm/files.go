package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// UploadFile pushes a local file through the Gemini Files API resumable
// upload and returns the file URI to reference from generateContent.
// Binary documents (PDF, EPUB) go through here; plain text is inlined
// into the prompt instead.
func (c *GeminiClient) UploadFile(ctx context.Context, path, mimeType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file %s: %w", path, err)
	}

	uploadURL, err := c.startUpload(ctx, filepath.Base(path), mimeType, len(data))
	if err != nil {
		return "", err
	}
	return c.finishUpload(ctx, uploadURL, data)
}

// startUpload opens a resumable upload session and returns the session URL.
func (c *GeminiClient) startUpload(ctx context.Context, displayName, mimeType string, size int) (string, error) {
	uploadBase := strings.Replace(c.baseURL, "/v1beta", "/upload/v1beta", 1)
	startURL := uploadBase + "/files"

	meta, err := json.Marshal(map[string]any{
		"file": map[string]any{"display_name": displayName},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling upload metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(meta))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(size))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("starting upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", c.statusError(resp.StatusCode, raw)
	}

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", fmt.Errorf("upload session response missing X-Goog-Upload-URL")
	}
	return uploadURL, nil
}

// finishUpload sends the file bytes in a single chunk and finalizes the
// session, returning the stored file's URI.
func (c *GeminiClient) finishUpload(ctx context.Context, uploadURL string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading file: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, raw)
	}

	var result struct {
		File struct {
			URI string `json:"uri"`
		} `json:"file"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if result.File.URI == "" {
		return "", fmt.Errorf("upload response missing file URI")
	}
	return result.File.URI, nil
}
