package records

import "errors"

// ErrConflict indicates a transition commit raced with another writer: the
// record's persisted status no longer matched what the caller read. The
// attempt is discarded, never merged.
var ErrConflict = errors.New("record modified concurrently")

// ErrDuplicateURL indicates the URL is already tracked.
var ErrDuplicateURL = errors.New("url already tracked")

// ErrNotFound indicates no record exists for the requested id or URL.
var ErrNotFound = errors.New("record not found")
