package postproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/store"
)

const (
	ttsDefaultBaseURL = "https://api.elevenlabs.io"
	ttsModelID        = "eleven_multilingual_v2"

	// ttsSegmentRunes bounds one synthesis request; longer narrations are
	// split on paragraph boundaries and the audio concatenated.
	ttsSegmentRunes = 2500
)

// TTSProcessor synthesizes an audio narration of the report introduction
// through an ElevenLabs-shaped REST API. Fire-and-forget, and disabled
// unless an API key is configured.
type TTSProcessor struct {
	store      *store.DocumentStore
	baseURL    string
	voice      string
	apiKey     string
	enabled    bool
	httpClient *http.Client
	log        *slog.Logger
}

func NewTTSProcessor(s *store.DocumentStore, cfg *config.PostprocConfig, log *slog.Logger) *TTSProcessor {
	baseURL := cfg.TTSBaseURL
	if baseURL == "" {
		baseURL = ttsDefaultBaseURL
	}
	return &TTSProcessor{
		store:      s,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		voice:      cfg.TTSVoice,
		apiKey:     cfg.TTSAPIKey,
		enabled:    cfg.TTS,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		log:        log.With("processor", "tts_audio"),
	}
}

func (p *TTSProcessor) Name() string  { return "tts_audio" }
func (p *TTSProcessor) Priority() int { return 40 }
func (p *TTSProcessor) Async() bool   { return true }

func (p *TTSProcessor) ShouldRun(pctx *Context) bool {
	return p.enabled && p.apiKey != ""
}

func (p *TTSProcessor) Process(ctx context.Context, pctx *Context, content string) (*Result, error) {
	text := narrationText(content)
	if text == "" {
		return &Result{Message: "nothing to narrate"}, nil
	}

	var audio []byte
	segments := splitSegments(text, ttsSegmentRunes)
	for i, segment := range segments {
		data, err := p.synthesize(ctx, segment)
		if err != nil {
			return nil, fmt.Errorf("segment %d/%d: %w", i+1, len(segments), err)
		}
		audio = append(audio, data...)
	}

	path, err := p.store.WriteAudio(pctx.DocHash+".mp3", audio)
	if err != nil {
		return nil, err
	}
	return &Result{
		Message: fmt.Sprintf("narration synthesized (%d segments, %d bytes)", len(segments), len(audio)),
		Changes: []string{path},
	}, nil
}

func (p *TTSProcessor) synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": ttsModelID,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", p.baseURL, p.voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.ReadAll(resp.Body)
}

// narrationText picks what to speak: the 引言 section when present,
// otherwise the body's leading paragraphs.
func narrationText(content string) string {
	_, body, err := report.ParseFrontMatter(content)
	if err != nil {
		body = content
	}

	if _, after, found := strings.Cut(body, "### 引言"); found {
		if idx := strings.Index(after, "\n#"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	// No introduction section; take the lead text before the first
	// section heading.
	lines := strings.Split(body, "\n")
	var sb strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "##") {
			break
		}
		if strings.HasPrefix(trimmed, "# ") || trimmed == "" {
			continue
		}
		sb.WriteString(trimmed)
		sb.WriteString("\n")
		if sb.Len() > ttsSegmentRunes*4 {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}

// splitSegments splits text into rune-bounded chunks, preferring
// paragraph boundaries.
func splitSegments(text string, maxRunes int) []string {
	if len([]rune(text)) <= maxRunes {
		return []string{text}
	}

	var segments []string
	var current strings.Builder
	currentRunes := 0
	for _, para := range strings.Split(text, "\n\n") {
		runes := len([]rune(para))
		if currentRunes > 0 && currentRunes+runes > maxRunes {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
			currentRunes = 0
		}
		// A single oversized paragraph is hard-cut.
		for runes > maxRunes {
			r := []rune(para)
			segments = append(segments, string(r[:maxRunes]))
			para = string(r[maxRunes:])
			runes = len([]rune(para))
		}
		current.WriteString(para)
		current.WriteString("\n\n")
		currentRunes += runes
	}
	if strings.TrimSpace(current.String()) != "" {
		segments = append(segments, strings.TrimSpace(current.String()))
	}
	return segments
}
