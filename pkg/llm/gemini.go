package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/observe"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// thinkingMinTimeout is the floor for calls with thinking enabled at
	// high effort. Long outlines routinely exceed the base deadline.
	thinkingMinTimeout = 300 * time.Second
)

// GeminiClient talks to the Gemini generateContent REST API. It is safe
// for concurrent use; request spacing is delegated to the shared limiter.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *RateLimiter
	metrics    *observe.Metrics
	log        *slog.Logger
}

func NewGeminiClient(cfg *config.LLMConfig, limiter *RateLimiter, metrics *observe.Metrics, log *slog.Logger) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &GeminiClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		timeout: cfg.Timeout,
		// Transport-level timeout stays off: the per-call context below
		// carries the deadline, including the extended thinking one.
		httpClient: &http.Client{},
		limiter:    limiter,
		metrics:    metrics,
		log:        log.With("component", "gemini_client"),
	}
}

// Generate performs a single generateContent call. The rate limiter is
// acquired against the caller's context so a queued request can still be
// cancelled while waiting for a slot; the per-call timeout only starts
// once the slot is held.
func (c *GeminiClient) Generate(ctx context.Context, req *Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return "", fmt.Errorf("waiting for request slot: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.effectiveTimeout(req.Thinking))
	defer cancel()

	body, err := c.buildRequest(callCtx, req)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := c.send(callCtx, body)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.RecordLLMRequest(ctx, "gemini", "error", elapsed.Seconds())
		return "", err
	}
	c.metrics.RecordLLMRequest(ctx, "gemini", "ok", elapsed.Seconds())
	return text, nil
}

// effectiveTimeout returns the per-call deadline. High-effort thinking
// gets max(1.5x base, 300s); everything else uses the configured base.
func (c *GeminiClient) effectiveTimeout(thinking ThinkingLevel) time.Duration {
	if thinking != ThinkingHigh {
		return c.timeout
	}
	extended := c.timeout + c.timeout/2
	if extended < thinkingMinTimeout {
		extended = thinkingMinTimeout
	}
	return extended
}

func (c *GeminiClient) buildRequest(ctx context.Context, req *Request) (*geminiRequest, error) {
	var parts []geminiPart

	if att := req.Attachment; att != nil {
		switch att.Kind {
		case AttachmentFile:
			uri, err := c.UploadFile(ctx, att.Path, att.MIME)
			if err != nil {
				return nil, fmt.Errorf("uploading attachment: %w", err)
			}
			parts = append(parts, geminiPart{FileData: &geminiFileData{FileURI: uri, MimeType: att.MIME}})
		case AttachmentURI:
			parts = append(parts, geminiPart{FileData: &geminiFileData{FileURI: att.URI, MimeType: att.MIME}})
		}
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	wire := &geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 65536,
		},
	}
	if req.System != "" {
		wire.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.JSONMode {
		wire.GenerationConfig.ResponseMimeType = "application/json"
	}
	if req.Thinking != ThinkingOff {
		wire.GenerationConfig.ThinkingConfig = &geminiThinkingConfig{ThinkingLevel: string(req.Thinking)}
	}
	return wire, nil
}

func (c *GeminiClient) send(ctx context.Context, wire *geminiRequest) (string, error) {
	payload, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// The key travels in a header, never in the URL: transport errors
	// stringify the URL and must stay safe to log and stream verbatim.
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, raw)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Error != nil {
		return "", &ProviderError{Provider: "gemini", StatusCode: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if len(parsed.Candidates) == 0 {
		return "", ErrEmptyCompletion
	}

	var buf bytes.Buffer
	for _, part := range parsed.Candidates[0].Content.Parts {
		buf.WriteString(part.Text)
	}
	if buf.Len() == 0 {
		return "", ErrEmptyCompletion
	}

	c.log.Debug("Gemini call finished",
		"model", c.model,
		"finish_reason", parsed.Candidates[0].FinishReason,
		"prompt_tokens", parsed.UsageMetadata.PromptTokenCount,
		"completion_tokens", parsed.UsageMetadata.CandidatesTokenCount)
	return buf.String(), nil
}

// statusError maps a non-200 response to a ProviderError, pulling the
// upstream message out of the error envelope when one is present.
func (c *GeminiClient) statusError(status int, raw []byte) error {
	message := string(raw)
	var envelope geminiResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		message = envelope.Error.Message
	}
	if len(message) > 512 {
		message = message[:512]
	}
	return &ProviderError{Provider: "gemini", StatusCode: status, Message: message}
}
