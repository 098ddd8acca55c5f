package statemachine

import (
	"fmt"
	"time"

	"citetrack/internal/records"
)

// TransitionError reports a refused transition: either an edge that does not
// exist or a guard that declined it.
type TransitionError struct {
	From   records.Status
	To     records.Status
	Guard  string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Guard != "" {
		return fmt.Sprintf("transition %s -> %s refused by guard %s: %s", e.From, e.To, e.Guard, e.Reason)
	}
	return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
}

// Transition validates and applies a status change, returning a new record.
// The input record is never mutated, no I/O happens here, and history is the
// caller's concern. The returned record carries the key bookkeeping:
//
//   - entering processing_external from a linked state parks the current item
//     key in previous_item_key so a failed replacement can restore it
//   - parked state survives only while the attempt is in flight
//     (processing_external, or awaiting_approval for a draft pending
//     review); any other target drops it
//   - a Completion installs its item key and clears the parked one
//   - a Failure records the last-error descriptor
//   - any non-linked target ends up with an empty external item key
//   - not_started is pristine: entering it clears the last error
func Transition(record *records.Record, target records.Status, tctx Context) (*records.Record, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}
	if _, ok := records.ParseStatus(string(target)); !ok {
		return nil, fmt.Errorf("unknown target status %q", target)
	}
	if !CanTransition(record.Status, target) {
		return nil, &TransitionError{From: record.Status, To: target}
	}
	for _, guard := range GuardsFor(record.Status, target) {
		if err := guard.Check(record, target, tctx); err != nil {
			return nil, &TransitionError{
				From:   record.Status,
				To:     target,
				Guard:  guard.Name,
				Reason: err.Error(),
			}
		}
	}

	next := record.Clone()

	switch {
	case target == records.StatusProcessingExternal && record.Linked():
		next.PreviousItemKey = record.ExternalItemKey
		next.PreviousStatus = record.Status
	case target == records.StatusAwaitingApproval:
		// A draft pending review keeps the parked link until the
		// operator decides.
	default:
		next.PreviousItemKey = ""
		next.PreviousStatus = ""
	}

	switch ctx := tctx.(type) {
	case Completion:
		next.ExternalItemKey = ctx.ItemKey
		next.PreviousItemKey = ""
		next.PreviousStatus = ""
		next.LastError = nil
	case Failure:
		next.LastError = &records.Failure{
			Kind:      ctx.Category,
			Message:   ctx.Message,
			Retryable: ctx.Retryable,
		}
	}

	if target != records.StatusStored && target != records.StatusStoredIncomplete {
		next.ExternalItemKey = ""
	}
	if target == records.StatusNotStarted {
		next.LastError = nil
	}

	next.Status = target
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

// Restore undoes an in-flight replacement: the record returns to the linked
// state it held before entering processing_external, with the parked key
// reinstalled. The failure that ended the attempt is kept as last_error.
// A replacement is in flight while the record is in processing_external or,
// for a draft pending review, awaiting_approval.
func Restore(record *records.Record, failure Failure) (*records.Record, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}
	if record.Status != records.StatusProcessingExternal && record.Status != records.StatusAwaitingApproval {
		return nil, fmt.Errorf("restore requires an in-flight replacement, record is %s", record.Status)
	}
	if record.PreviousItemKey == "" || record.PreviousStatus == "" {
		return nil, fmt.Errorf("record %d has no parked replacement state to restore", record.ID)
	}
	if !record.PreviousStatus.IsLinked() {
		return nil, fmt.Errorf("parked status %s is not a linked state", record.PreviousStatus)
	}

	next := record.Clone()
	next.Status = record.PreviousStatus
	next.ExternalItemKey = record.PreviousItemKey
	next.PreviousItemKey = ""
	next.PreviousStatus = ""
	next.LastError = &records.Failure{
		Kind:      failure.Category,
		Message:   failure.Message,
		Retryable: failure.Retryable,
	}
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}
