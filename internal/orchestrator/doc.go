// Package orchestrator drives a single record through one processing
// attempt: it stages the record into a processing state with an optimistic
// claim, runs the configured strategy-tier cascade against the external
// collaborators, and commits the terminal state atomically with the attempt
// history entry.
package orchestrator
