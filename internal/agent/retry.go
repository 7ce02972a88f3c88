package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig bounds the retry loop for transient agent failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches the retry behavior used for agent
// invocations: three attempts, exponential backoff capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// transientMarkers are error-message fragments that indicate a failure
// worth retrying. Agent CLIs surface upstream API errors as text, so
// classification is by message, the same way quota errors are detected.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"broken pipe",
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"529",
	"overloaded",
	"server error",
	"temporarily unavailable",
	"try again",
}

// IsTransient reports whether an error is worth retrying. Malformed
// invocations and permanent rejections are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInactivityTimeout) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// backoffDelay computes the capped exponential delay for attempt n
// (0-based) with full jitter.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << uint(attempt)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	// jitter in [delay/2, delay)
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// Retry runs fn until it succeeds, fails non-transiently, or exhausts
// the attempt budget. Context cancellation aborts immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (string, error)) (string, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoffDelay(cfg, attempt-1)):
			}
		}
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !IsTransient(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("retries exhausted after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
