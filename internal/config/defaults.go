package config

import (
	"os"
	"path/filepath"
)

// Tier names understood by the orchestrator, in default priority order.
const (
	TierReuse    = "reuse"
	TierLinker   = "linker"
	TierMetadata = "metadata"
)

// KnownTiers lists every strategy tier the orchestrator can execute.
var KnownTiers = []string{TierReuse, TierLinker, TierMetadata}

// Default returns the baseline configuration before file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir(),
			LogDir:  defaultLogDir(),
		},
		Linker: Linker{
			BaseURL:        "http://localhost:23119/citationlinker",
			RequestTimeout: 30,
		},
		Processing: Processing{
			Tiers:           append([]string(nil), KnownTiers...),
			MaxTiersPerCall: len(KnownTiers),
			CascadeEnabled:  true,
			BackoffBaseMs:   500,
			BackoffMaxMs:    30000,
		},
		Batch: Batch{
			Concurrency: 4,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			BatchEvents:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && base != "" {
		return filepath.Join(base, "citetrack")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/share/citetrack"
	}
	return filepath.Join(home, ".local", "share", "citetrack")
}

func defaultLogDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && base != "" {
		return filepath.Join(base, "citetrack", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/state/citetrack/logs"
	}
	return filepath.Join(home, ".local", "state", "citetrack", "logs")
}
