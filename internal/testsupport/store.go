package testsupport

import (
	"context"
	"fmt"
	"testing"

	"citetrack/internal/config"
	"citetrack/internal/records"
)

// MustOpenStore opens a records store rooted in the test config's data
// directory and closes it when the test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedRecord inserts a fresh not_started record with a unique URL.
func SeedRecord(t testing.TB, store *records.Store) *records.Record {
	t.Helper()

	record, err := store.NewURL(context.Background(), UniqueURL(t))
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

var urlCounter int

// UniqueURL returns a distinct normalized URL per call within a test binary.
func UniqueURL(t testing.TB) string {
	t.Helper()
	urlCounter++
	return fmt.Sprintf("https://example.test/article-%s-%d", sanitize(t.Name()), urlCounter)
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
