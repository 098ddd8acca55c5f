// Package records defines the per-URL processing record, its append-only
// attempt history, and the SQLite store that persists both.
//
// The status field is only ever written through statemachine.Transition
// followed by Store.CommitTransition, which conditions the write on the
// status the caller read so racing writers surface as ErrConflict instead
// of lost updates.
package records
