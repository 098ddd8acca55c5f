package records

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle state of a tracked URL.
type Status string

const (
	StatusNotStarted            Status = "not_started"
	StatusProcessingContent     Status = "processing_content"
	StatusExtractingIdentifiers Status = "extracting_identifiers"
	StatusAwaitingSelection     Status = "awaiting_selection"
	StatusProcessingExternal    Status = "processing_external"
	StatusAwaitingApproval      Status = "awaiting_approval"
	StatusStored                Status = "stored"
	StatusStoredIncomplete      Status = "stored_incomplete"
	StatusFailed                Status = "failed"
	StatusExhausted             Status = "exhausted"
	StatusIgnored               Status = "ignored"
	StatusArchived              Status = "archived"
)

// ShutdownStopReason is the error message recorded when in-flight records are
// failed because processing was interrupted.
const ShutdownStopReason = "Processing interrupted by shutdown"

var allStatuses = []Status{
	StatusNotStarted,
	StatusProcessingContent,
	StatusExtractingIdentifiers,
	StatusAwaitingSelection,
	StatusProcessingExternal,
	StatusAwaitingApproval,
	StatusStored,
	StatusStoredIncomplete,
	StatusFailed,
	StatusExhausted,
	StatusIgnored,
	StatusArchived,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusProcessingContent:     {},
	StatusExtractingIdentifiers: {},
	StatusProcessingExternal:    {},
}

// Statuses that automation never leaves on its own; a human action or an
// explicit re-trigger is required.
var attentionStatuses = map[Status]struct{}{
	StatusAwaitingSelection: {},
	StatusAwaitingApproval:  {},
	StatusExhausted:         {},
	StatusIgnored:           {},
	StatusArchived:          {},
}

// Intent is the user-set policy overlay, independent of Status.
type Intent string

const (
	IntentAuto       Intent = "auto"
	IntentPriority   Intent = "priority"
	IntentManualOnly Intent = "manual-only"
	IntentIgnoreAuto Intent = "ignore-auto"
)

var allIntents = []Intent{IntentAuto, IntentPriority, IntentManualOnly, IntentIgnoreAuto}

var intentSet = func() map[Intent]struct{} {
	set := make(map[Intent]struct{}, len(allIntents))
	for _, intent := range allIntents {
		set[intent] = struct{}{}
	}
	return set
}()

// Failure describes the last failed attempt on a record.
type Failure struct {
	Kind      string
	Message   string
	Retryable bool
}

// Record is one tracked URL persisted in SQLite.
type Record struct {
	ID  int64
	URL string
	// Status is the single authoritative state field. It is only ever
	// written through statemachine.Transition plus Store.CommitTransition.
	Status Status
	Intent Intent
	// ExternalItemKey is non-empty iff Status is stored or stored_incomplete.
	ExternalItemKey string
	// PreviousItemKey and PreviousStatus hold the existing link while a
	// replacement attempt is in flight, so a failed or interrupted
	// replacement can restore it.
	PreviousItemKey string
	PreviousStatus  Status
	LastError       *Failure
	AttemptCount    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Attempt is one immutable entry in a record's processing history.
type Attempt struct {
	RecordID      int64
	Seq           int
	Timestamp     time.Time
	Stage         string
	Method        string
	Success       bool
	DurationMs    int64
	ResultItemKey string
	Metadata      map[string]any
}

// Projection is the read-only per-record view exposed to callers.
type Projection struct {
	ID              int64
	URL             string
	Status          Status
	Intent          Intent
	ExternalItemKey string
	LastError       *Failure
	History         []Attempt
	UpdatedAt       time.Time
}

// HealthSummary describes aggregated record counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	NotStarted int
	Processing int
	Attention  int
	Stored     int
	Failed     int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseIntent converts a string into a known Intent.
func ParseIntent(value string) (Intent, bool) {
	normalized := Intent(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := intentSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether a status reflects an in-flight operation.
func IsProcessing(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// NeedsAttention reports whether a status requires human action or an
// explicit re-trigger before automation touches the record again.
func NeedsAttention(status Status) bool {
	_, ok := attentionStatuses[status]
	return ok
}

// IsLinked reports whether a status carries an external item key.
func (s Status) IsLinked() bool {
	return s == StatusStored || s == StatusStoredIncomplete
}

// Linked reports whether the record currently carries an external item key.
func (r *Record) Linked() bool {
	return r.Status.IsLinked()
}

// Clone returns a deep copy so pure transition functions never alias callers.
func (r *Record) Clone() *Record {
	cp := *r
	if r.LastError != nil {
		failure := *r.LastError
		cp.LastError = &failure
	}
	return &cp
}

var labelCaser = cases.Title(language.English)

// Label returns the status as a human-readable label for CLI output.
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return labelCaser.String(strings.ReplaceAll(string(s), "_", " "))
}
