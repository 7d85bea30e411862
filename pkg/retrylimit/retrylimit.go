// Package retrylimit combines an adaptive rate limiter with retry helpers
// for flaky upstream APIs. The limiter speeds up while requests succeed and
// backs off when the upstream pushes back; the retry helpers layer
// exponential backoff with jitter on top.
package retrylimit

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AdaptiveLimiter adjusts its request rate based on outcomes: Success nudges
// the rate up, RateLimited cuts it down. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per
// second, bounded by [min, max]. stepUp is added on success; the rate is
// multiplied by stepDown (e.g. 0.5) on failure.
func NewAdaptiveLimiter(initial, lo, hi rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < 1 {
		initial = 1
	}
	if lo < 1 {
		lo = 1
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, max(1, int(initial))),
		minLimit: lo,
		maxLimit: hi,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.limiter.Wait(ctx)
}

// Success raises the rate, unless an error happened within the last few
// seconds (recovering from a burst of failures should be gradual).
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.setLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited cuts the rate after a failure or overload response.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.setLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) setLimit(newLimit rate.Limit) {
	if newLimit > a.maxLimit {
		newLimit = a.maxLimit
	} else if newLimit < a.minLimit {
		newLimit = a.minLimit
	}
	if newLimit != a.limiter.Limit() {
		a.limiter.SetLimit(newLimit)
		a.limiter.SetBurst(max(1, int(newLimit)))
	}
}

// HTTPError is optionally implemented by errors carrying an HTTP status.
// 429 and 5xx responses get special backoff treatment.
type HTTPError interface {
	error
	StatusCode() int
}

// FatalError wraps errors that should stop retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts    int           // 0 means the safety cap of 100
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration // fixed delay after a 429
	Multiplier     float64       // backoff growth factor
	Jitter         bool
}

// DefaultRetryConfig returns the defaults used across the bot.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    100,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		RateLimitDelay: 100 * time.Millisecond,
		Multiplier:     2.0,
		Jitter:         true,
	}
}

// WithRetryMax executes fn with exponential backoff up to maxAttempts times.
// Stops immediately on success, FatalError, or context cancellation.
func WithRetryMax(ctx context.Context, fn func() error, lim *AdaptiveLimiter, maxAttempts int) error {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = maxAttempts
	return WithRetryConfig(ctx, fn, lim, cfg)
}

// WithRetryConfig executes fn under cfg, pacing attempts through lim when
// it is non-nil.
func WithRetryConfig(ctx context.Context, fn func() error, lim *AdaptiveLimiter, cfg RetryConfig) error {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 100
	}

	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}

		if _, fatal := err.(*FatalError); fatal {
			return err
		}

		if isRateLimitError(err) {
			if lim != nil {
				lim.RateLimited()
				log.Printf("[Retry] Rate limited (attempt %d). New limit: %.2f rps",
					attempt, lim.CurrentLimit())
			}
			if sleepErr := sleepCtx(ctx, cfg.RateLimitDelay); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if isServerError(err) && lim != nil {
			lim.RateLimited()
		}
		log.Printf("[Retry] Request failed (attempt %d): %v. Sleeping %v", attempt, err, delay)

		next := delay
		if cfg.Jitter {
			next = addJitter(delay)
		}
		if sleepErr := sleepCtx(ctx, next); sleepErr != nil {
			return sleepErr
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded", cfg.MaxAttempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// addJitter adds 0-25% of delay to spread out concurrent retries.
func addJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(int64(delay/4)))
}

func isRateLimitError(err error) bool {
	if httpErr, ok := err.(HTTPError); ok {
		return httpErr.StatusCode() == http.StatusTooManyRequests
	}
	return false
}

func isServerError(err error) bool {
	if httpErr, ok := err.(HTTPError); ok {
		code := httpErr.StatusCode()
		return code >= 500 && code < 600
	}
	return false
}
