// Package statemachine defines the record lifecycle as a fixed adjacency
// table with guard preconditions. Transition and Restore are pure functions
// over records.Record; persistence and history belong to the store.
package statemachine
