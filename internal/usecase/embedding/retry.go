package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/metrics"
)

// Retry defaults. A single attempt keeps one failure final.
const (
	DefaultMaxAttempts = 1
	MaxAttemptsCeiling = 3
	DefaultBaseDelay   = 200 * time.Millisecond
)

// RetryPolicy bounds retries at the provider boundary.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// normalize clamps attempts to 1..MaxAttemptsCeiling and fills the delay.
func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxAttempts > MaxAttemptsCeiling {
		p.MaxAttempts = MaxAttemptsCeiling
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrEmbeddingProviderError)
}

// retryWithBackoff runs op up to MaxAttempts times while it fails with a
// retryable error. The delay doubles after each attempt.
func retryWithBackoff(ctx context.Context, p RetryPolicy, op func() error) error {
	p = p.normalize()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = op()
		if lastErr == nil || !retryable(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}

		reason := "provider_error"
		if errors.Is(lastErr, domain.ErrRateLimited) {
			reason = "rate_limited"
		}
		metrics.EmbeddingRetriesTotal.WithLabelValues(reason).Inc()

		delay := p.BaseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}
