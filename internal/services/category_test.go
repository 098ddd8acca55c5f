package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifySentinels(t *testing.T) {
	cases := []struct {
		err      error
		expected Category
	}{
		{Wrap(ErrTransient, "linker", "analyze", "connection reset", nil), CategoryTransientNetwork},
		{Wrap(ErrRateLimited, "linker", "analyze", "429", nil), CategoryRateLimited},
		{Wrap(ErrNotFound, "linker", "lookup", "no item", nil), CategoryNotFound},
		{Wrap(ErrInvalidInput, "linker", "create", "bad draft", nil), CategoryInvalidInput},
		{Wrap(ErrAuth, "linker", "analyze", "401", nil), CategoryAuth},
		{Wrap(ErrQuota, "linker", "create", "storage full", nil), CategoryQuotaExceeded},
		{context.DeadlineExceeded, CategoryTransientNetwork},
		{errors.New("something else"), CategoryUnknown},
		{nil, CategoryUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.expected {
			t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.expected)
		}
	}
}

func TestClassifyWrappedDeadline(t *testing.T) {
	err := fmt.Errorf("analyze url: %w", context.DeadlineExceeded)
	if got := Classify(err); got != CategoryTransientNetwork {
		t.Fatalf("Classify = %s, want %s", got, CategoryTransientNetwork)
	}
}

func TestRetryable(t *testing.T) {
	retryable := map[Category]bool{
		CategoryTransientNetwork: true,
		CategoryRateLimited:      true,
		CategoryNotFound:         false,
		CategoryInvalidInput:     false,
		CategoryAuth:             false,
		CategoryQuotaExceeded:    false,
		CategoryUnknown:          false,
	}
	for category, expected := range retryable {
		if category.Retryable() != expected {
			t.Errorf("%s.Retryable() = %v, want %v", category, !expected, expected)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "linker", "analyze", "", errors.New("boom"))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient marker, got %v", err)
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	policy := BackoffPolicy{Base: 100 * time.Millisecond, Max: 2 * time.Second}

	if d := policy.Delay(CategoryNotFound, 3); d != 0 {
		t.Fatalf("non-retryable category should get zero delay, got %v", d)
	}

	for attempt := 0; attempt < 10; attempt++ {
		d := policy.Delay(CategoryTransientNetwork, attempt)
		if d <= 0 {
			t.Fatalf("attempt %d: delay must be positive, got %v", attempt, d)
		}
		if d > policy.Max {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", attempt, d, policy.Max)
		}
	}

	// Later attempts must be allowed to reach the cap region despite jitter.
	high := policy.Delay(CategoryRateLimited, 8)
	if high < policy.Max/2 {
		t.Fatalf("attempt 8 should be near the cap, got %v", high)
	}
}
