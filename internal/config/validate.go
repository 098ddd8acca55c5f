package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var knownTierSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(KnownTiers))
	for _, tier := range KnownTiers {
		set[tier] = struct{}{}
	}
	return set
}()

// Validate verifies the configuration is internally consistent.
// Unknown tier names fail validation rather than being skipped silently.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}

	if c.Linker.BaseURL == "" {
		problems = append(problems, "linker.base_url must be set")
	} else if parsed, err := url.Parse(c.Linker.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		problems = append(problems, fmt.Sprintf("linker.base_url %q is not a valid URL", c.Linker.BaseURL))
	}
	if c.Linker.RequestTimeout <= 0 {
		problems = append(problems, "linker.request_timeout must be positive")
	}

	if len(c.Processing.Tiers) == 0 {
		problems = append(problems, "processing.tiers must list at least one tier")
	}
	seen := make(map[string]struct{}, len(c.Processing.Tiers))
	for _, tier := range c.Processing.Tiers {
		if _, ok := knownTierSet[tier]; !ok {
			problems = append(problems, fmt.Sprintf("processing.tiers contains unknown tier %q (known: %s)", tier, strings.Join(KnownTiers, ", ")))
			continue
		}
		if _, dup := seen[tier]; dup {
			problems = append(problems, fmt.Sprintf("processing.tiers lists %q more than once", tier))
		}
		seen[tier] = struct{}{}
	}
	if c.Processing.MaxTiersPerCall <= 0 {
		problems = append(problems, "processing.max_tiers_per_call must be positive")
	}
	if c.Processing.BackoffBaseMs <= 0 {
		problems = append(problems, "processing.backoff_base_ms must be positive")
	}
	if c.Processing.BackoffMaxMs < c.Processing.BackoffBaseMs {
		problems = append(problems, "processing.backoff_max_ms must be >= processing.backoff_base_ms")
	}

	if c.Batch.Concurrency <= 0 {
		problems = append(problems, "batch.concurrency must be positive")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
