package postproc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/store"
)

func newTestStore(t *testing.T) *store.DocumentStore {
	t.Helper()
	base := t.TempDir()
	s, err := store.NewDocumentStore(&config.StorageConfig{
		DocumentsDir: filepath.Join(base, "documents"),
		TasksDir:     filepath.Join(base, "tasks"),
		UploadsDir:   filepath.Join(base, "uploads"),
	}, slog.Default())
	require.NoError(t, err)
	return s
}

func ttsTestConfig(baseURL string) *config.PostprocConfig {
	cfg := config.DefaultPostprocConfig()
	cfg.TTS = true
	cfg.TTSBaseURL = baseURL
	cfg.TTSVoice = "voice-1"
	cfg.TTSAPIKey = "key-1"
	return cfg
}

func TestTTSProcessorSynthesizesIntroduction(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte("ID3-fake-mp3"))
	}))
	defer srv.Close()

	s := newTestStore(t)
	p := NewTTSProcessor(s, ttsTestConfig(srv.URL), slog.Default())
	require.True(t, p.ShouldRun(&Context{}))

	content := "---\ntitle_cn: 测试\n---\n\n# 测试\n\n### 引言\n\n这是引言。\n\n## 第一章\n\n正文。\n"
	res, err := p.Process(context.Background(), &Context{DocHash: "cafe1234"}, content)
	require.NoError(t, err)

	assert.Equal(t, "/v1/text-to-speech/voice-1", gotPath)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "这是引言。", gotBody["text"])
	assert.Equal(t, "eleven_multilingual_v2", gotBody["model_id"])

	audioPath := filepath.Join(s.AudioDir(), "cafe1234.mp3")
	data, err := os.ReadFile(audioPath)
	require.NoError(t, err)
	assert.Equal(t, "ID3-fake-mp3", string(data))
	assert.Equal(t, []string{audioPath}, res.Changes)
}

func TestTTSProcessorGating(t *testing.T) {
	s := newTestStore(t)

	cfg := ttsTestConfig("http://unused")
	cfg.TTSAPIKey = ""
	assert.False(t, NewTTSProcessor(s, cfg, slog.Default()).ShouldRun(&Context{}),
		"no API key, no narration")

	cfg = ttsTestConfig("http://unused")
	cfg.TTS = false
	assert.False(t, NewTTSProcessor(s, cfg, slog.Default()).ShouldRun(&Context{}))
}

func TestTTSProcessorNothingToNarrate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty narration")
	}))
	defer srv.Close()

	p := NewTTSProcessor(newTestStore(t), ttsTestConfig(srv.URL), slog.Default())
	res, err := p.Process(context.Background(), &Context{DocHash: "cafe1234"}, "## 第一章\n\n正文。\n")
	require.NoError(t, err)
	assert.Equal(t, "nothing to narrate", res.Message)
}

func TestTTSProcessorSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewTTSProcessor(newTestStore(t), ttsTestConfig(srv.URL), slog.Default())
	_, err := p.Process(context.Background(), &Context{DocHash: "cafe1234"},
		"### 引言\n\n这是引言。\n\n## 第一章\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "quota exceeded")
}
