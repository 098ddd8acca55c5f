// Package config loads, normalizes, and validates citetrack configuration
// from TOML files with sensible defaults for unattended use.
package config
