package delivery

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// RetryPolicy controls how failed sends are retried with exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 3 attempts, 1s initial delay, 2x multiplier, 30s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// ShouldRetry reports whether err is retryable and attempt has not
// exceeded MaxAttempts.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt > p.MaxAttempts {
		return false
	}
	return isRetryable(err)
}

// isRetryable classifies errors by message. Network trouble and rate
// limits are retried; auth, validation and unknown-recipient errors are
// not. Unknown errors default to retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())

	for _, s := range []string{"connection refused", "connection reset", "timeout", "temporary failure", "too many requests", "429"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, s := range []string{"invalid", "unauthorized", "forbidden", "not found", "no transport", "chat not found"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}

// NextDelay returns the backoff delay for the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times, waiting between retries with
// sleep. It returns nil on success, or the last error once attempts run
// out, the error is permanent or sleep fails.
func (p *RetryPolicy) Execute(ctx context.Context, sleep SleepFunc, fn func() error) (attempts int, err error) {
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return attempt, nil
		}
		if !p.ShouldRetry(err, attempt) || attempt == p.MaxAttempts {
			return attempt, err
		}
		if serr := sleep(ctx, p.NextDelay(attempt)); serr != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, err
}
