package services

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// Category buckets external failures for retry policy and history.
type Category string

const (
	CategoryTransientNetwork Category = "transient_network"
	CategoryRateLimited      Category = "rate_limited"
	CategoryNotFound         Category = "not_found"
	CategoryInvalidInput     Category = "invalid_input"
	CategoryAuth             Category = "auth"
	CategoryQuotaExceeded    Category = "quota_exceeded"
	CategoryUnknown          Category = "unknown"
)

// Classify maps a wrapped error to its failure category. Errors without a
// sentinel marker fall through to unknown, except for context deadlines and
// net timeouts which classify as transient.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimited
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrInvalidInput):
		return CategoryInvalidInput
	case errors.Is(err, ErrAuth):
		return CategoryAuth
	case errors.Is(err, ErrQuota):
		return CategoryQuotaExceeded
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		isNetTimeout(err):
		return CategoryTransientNetwork
	default:
		return CategoryUnknown
	}
}

// Retryable reports whether automation may retry a failure in this category
// without a human looking at it first.
func (c Category) Retryable() bool {
	return c == CategoryTransientNetwork || c == CategoryRateLimited
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// BackoffPolicy computes retry delays for retryable categories.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns base·2^attempt with ±25% jitter, capped at Max. Attempt is
// zero-based. Non-retryable categories get zero.
func (p BackoffPolicy) Delay(category Category, attempt int) time.Duration {
	if !category.Retryable() {
		return 0
	}
	base := p.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := p.Max
	if max <= 0 {
		max = 30 * time.Second
	}

	delay := base
	for i := 0; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4
	delay += jitter
	if delay < base/2 {
		delay = base / 2
	}
	if delay > max {
		delay = max
	}
	return delay
}
