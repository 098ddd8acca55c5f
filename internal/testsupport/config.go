package testsupport

import (
	"path/filepath"
	"testing"

	"citetrack/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Linker.BaseURL = "http://127.0.0.1:0/citationlinker"
	cfg.Linker.RequestTimeout = 5
	cfg.Batch.Concurrency = 2

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithTiers overrides the strategy-tier order on the test config.
func WithTiers(tiers ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processing.Tiers = tiers
	}
}

// WithCascade toggles auto-cascade on the test config.
func WithCascade(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processing.CascadeEnabled = enabled
	}
}

// WithConcurrency overrides batch worker concurrency on the test config.
func WithConcurrency(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Batch.Concurrency = workers
	}
}
