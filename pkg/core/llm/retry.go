package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Transient failures get two extra attempts with exponential backoff.
const (
	transientRetries = 2
	baseBackoff      = 1 * time.Second
)

// RetryingProvider wraps a Provider with rate limiting and transient-error
// retries. Permanent errors pass through immediately; schema-level retries
// (feeding parser errors back to the model) belong to the callers, not here.
type RetryingProvider struct {
	inner   Provider
	limiter *rate.Limiter
	logger  zerolog.Logger
}

var _ Provider = (*RetryingProvider)(nil)

// NewRetryingProvider wraps inner with a requests-per-minute budget.
func NewRetryingProvider(inner Provider, requestsPerMinute int, logger zerolog.Logger) *RetryingProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RetryingProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
		logger:  logger.With().Str("component", "llm").Str("provider", inner.Name()).Logger(),
	}
}

func (p *RetryingProvider) Name() string { return p.inner.Name() }

// Generate calls the wrapped provider, retrying transient failures with
// backoff (1s, 2s). The caller's context bounds the whole sequence.
func (p *RetryingProvider) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= transientRetries; attempt++ {
		if attempt > 0 {
			delay := baseBackoff << (attempt - 1)
			p.logger.Warn().Err(lastErr).Dur("backoff", delay).Int("attempt", attempt).
				Msg("transient upstream failure, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("llm call cancelled during backoff: %w", ctx.Err())
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm call cancelled waiting for rate limit: %w", err)
		}

		text, err := p.inner.Generate(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}
		if !IsTransient(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("upstream still failing after %d retries: %w", transientRetries, lastErr)
}
