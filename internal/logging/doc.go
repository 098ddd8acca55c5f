// Package logging builds the slog loggers used across citetrack and
// defines the standardized structured field names.
package logging
