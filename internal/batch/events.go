package batch

import "citetrack/internal/orchestrator"

// EventType identifies a batch progress event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventItem      EventType = "item"
	EventPaused    EventType = "paused"
	EventResumed   EventType = "resumed"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
)

// Event is one entry in a run's progress stream.
type Event struct {
	Type      EventType
	RunID     string
	RecordID  int64
	Outcome   orchestrator.Outcome
	Err       string
	Processed int
	Total     int
	Summary   *Summary
}

// Summary aggregates per-item results for a finished run.
type Summary struct {
	Total     int
	Processed int
	Linked    int
	Attention int
	Failed    int
	Skipped   int
	Conflicts int
	Errors    int
}

func (s *Summary) account(outcome orchestrator.Outcome, err error) {
	s.Processed++
	switch outcome.Disposition {
	case orchestrator.DispositionStored, orchestrator.DispositionStoredIncomplete:
		s.Linked++
	case orchestrator.DispositionAwaitingApproval, orchestrator.DispositionAwaitingSelection:
		s.Attention++
	case orchestrator.DispositionFailed, orchestrator.DispositionExhausted, orchestrator.DispositionRestored:
		s.Failed++
	case orchestrator.DispositionSkipped:
		s.Skipped++
	case orchestrator.DispositionConflict:
		s.Conflicts++
	default:
		if err != nil {
			s.Errors++
		}
	}
}
