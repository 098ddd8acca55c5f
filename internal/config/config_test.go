package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsUnknownTier(t *testing.T) {
	cfg := Default()
	cfg.Processing.Tiers = []string{TierReuse, "llm-guess"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown tier") {
		t.Fatalf("expected unknown tier error, got %v", err)
	}
}

func TestValidateRejectsDuplicateTier(t *testing.T) {
	cfg := Default()
	cfg.Processing.Tiers = []string{TierLinker, TierLinker}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "more than once") {
		t.Fatalf("expected duplicate tier error, got %v", err)
	}
}

func TestValidateRejectsBadLinkerURL(t *testing.T) {
	cfg := Default()
	cfg.Linker.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid base url to fail validation")
	}
	cfg = Default()
	cfg.Linker.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected empty base url to fail validation")
	}
}

func TestValidateBackoffOrdering(t *testing.T) {
	cfg := Default()
	cfg.Processing.BackoffBaseMs = 5000
	cfg.Processing.BackoffMaxMs = 100
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "backoff_max_ms") {
		t.Fatalf("expected backoff ordering error, got %v", err)
	}
}

func TestNormalizeTiersAndFormat(t *testing.T) {
	cfg := Default()
	cfg.Processing.Tiers = []string{" Reuse ", "", "LINKER"}
	cfg.Processing.MaxTiersPerCall = 0
	cfg.Logging.Format = " JSON "
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(cfg.Processing.Tiers) != 2 || cfg.Processing.Tiers[0] != TierReuse || cfg.Processing.Tiers[1] != TierLinker {
		t.Fatalf("tiers = %v", cfg.Processing.Tiers)
	}
	if cfg.Processing.MaxTiersPerCall != 2 {
		t.Fatalf("max tiers = %d", cfg.Processing.MaxTiersPerCall)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format = %q", cfg.Logging.Format)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("file should not exist")
	}
	if resolved != path {
		t.Fatalf("resolved = %q", resolved)
	}
	if cfg.Linker.BaseURL != "http://localhost:23119/citationlinker" {
		t.Fatalf("base url = %q", cfg.Linker.BaseURL)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[processing]
tiers = ["linker"]
cascade_enabled = false

[batch]
concurrency = 7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("file should exist")
	}
	if len(cfg.Processing.Tiers) != 1 || cfg.Processing.Tiers[0] != TierLinker {
		t.Fatalf("tiers = %v", cfg.Processing.Tiers)
	}
	if cfg.Processing.CascadeEnabled {
		t.Fatal("cascade should be disabled")
	}
	if cfg.Batch.Concurrency != 7 {
		t.Fatalf("concurrency = %d", cfg.Batch.Concurrency)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample config must load cleanly: exists=%v err=%v", exists, err)
	}
}
