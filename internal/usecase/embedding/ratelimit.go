package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/semwalk/internal/domain"
	"github.com/kailas-cloud/semwalk/internal/metrics"
)

// RateLimitAction defines behavior when the request rate is exceeded.
type RateLimitAction string

const (
	// RateLimitWait blocks until a token is available or ctx ends.
	RateLimitWait RateLimitAction = "wait"
	// RateLimitReject fails fast with domain.ErrRateLimited.
	RateLimitReject RateLimitAction = "reject"
)

// RateLimitConfig configures the API request limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	Action            RateLimitAction
}

// RateLimiter is a token bucket over embedding API calls. One batch call
// costs one token regardless of its size.
type RateLimiter struct {
	limiter *rate.Limiter
	action  RateLimitAction
}

// NewRateLimiter returns nil when RequestsPerSecond <= 0 (unlimited).
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	action := cfg.Action
	if action == "" {
		action = RateLimitWait
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		action:  action,
	}
}

// Acquire takes one token. A nil limiter always succeeds.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.action == RateLimitReject {
		if !l.limiter.Allow() {
			metrics.EmbeddingThrottledTotal.Inc()
			return fmt.Errorf("embedding API: %w", domain.ErrRateLimited)
		}
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		metrics.EmbeddingThrottledTotal.Inc()
		return fmt.Errorf("embedding API: %w: %w", domain.ErrRateLimited, err)
	}
	return nil
}
