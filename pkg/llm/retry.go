package llm

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/observe"
)

// RetryingClient wraps another Client and retries transient failures
// with exponential backoff. Fatal provider errors (4xx other than 429
// and 408) pass through immediately.
type RetryingClient struct {
	inner       Client
	provider    string
	maxRetries  int
	backoffBase time.Duration
	metrics     *observe.Metrics
	log         *slog.Logger
}

func NewRetryingClient(inner Client, cfg *config.LLMConfig, metrics *observe.Metrics, log *slog.Logger) *RetryingClient {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &RetryingClient{
		inner:       inner,
		provider:    cfg.Provider,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.RetryBackoffBase,
		metrics:     metrics,
		log:         log.With("component", "llm_retry"),
	}
}

func (c *RetryingClient) Generate(ctx context.Context, req *Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return "", lastErr
			}
			c.metrics.RecordLLMRetry(ctx, c.provider)
		}

		text, err := c.inner.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return "", err
		}
		// A transient DeadlineExceeded from the per-call timeout is worth
		// retrying, but not when the caller's own deadline has passed.
		if ctx.Err() != nil {
			return "", err
		}
		c.log.Warn("Transient LLM failure, will retry",
			"provider", c.provider,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"error", err)
	}
	return "", lastErr
}

// wait sleeps for the attempt's backoff (base doubled per attempt, plus
// up to 25% jitter) or returns early when ctx is done.
func (c *RetryingClient) wait(ctx context.Context, attempt int) error {
	backoff := c.backoffBase << uint(attempt-1)
	if backoff > 0 {
		backoff += rand.N(backoff/4 + 1)
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
