package orchestrator

import (
	"context"
	"fmt"
	"time"

	"citetrack/internal/logging"
	"citetrack/internal/records"
	"citetrack/internal/services"
	"citetrack/internal/statemachine"
)

// Approve confirms a record parked in awaiting_approval: the pending item key
// from the last attempt is validated and installed as the record's link.
func (o *Orchestrator) Approve(ctx context.Context, record *records.Record) (Outcome, error) {
	if record == nil {
		return Outcome{}, fmt.Errorf("record is nil")
	}
	if record.Status != records.StatusAwaitingApproval {
		return Outcome{}, fmt.Errorf("record %d is %s, approval requires %s", record.ID, record.Status, records.StatusAwaitingApproval)
	}

	last, err := o.store.LastAttempt(ctx, record.ID)
	if err != nil {
		return Outcome{}, err
	}
	if last == nil || last.ResultItemKey == "" {
		return Outcome{}, fmt.Errorf("record %d has no pending item key to approve", record.ID)
	}
	key := last.ResultItemKey

	ctx = services.WithRecordID(ctx, record.ID)
	logger := logging.WithContext(ctx, o.logger)

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	validation, err := o.linker.ValidateCitation(callCtx, key)
	cancel()
	if err != nil {
		return Outcome{RecordID: record.ID, Status: record.Status}, err
	}

	target := records.StatusStored
	disposition := DispositionStored
	if !validation.Complete {
		target = records.StatusStoredIncomplete
		disposition = DispositionStoredIncomplete
	}

	attempt := &records.Attempt{
		Stage:         string(records.StatusAwaitingApproval),
		Method:        "approve",
		Success:       true,
		DurationMs:    time.Since(start).Milliseconds(),
		ResultItemKey: key,
		Metadata:      map[string]any{"approved": true},
	}
	if len(validation.MissingFields) > 0 {
		attempt.Metadata["missing_fields"] = validation.MissingFields
	}

	final, err := statemachine.Transition(record, target, statemachine.Completion{
		ItemKey:       key,
		MissingFields: validation.MissingFields,
	})
	if err != nil {
		return Outcome{RecordID: record.ID, Status: record.Status}, err
	}
	if err := o.store.CommitTransition(ctx, final, record.Status, attempt); err != nil {
		return Outcome{RecordID: record.ID, Disposition: DispositionConflict, Reason: err.Error()}, err
	}

	logger.Info(
		"approval confirmed",
		logging.String(logging.FieldEventType, "approved"),
		logging.String("status", string(final.Status)),
		logging.String("item_key", key),
	)
	return Outcome{
		RecordID:    record.ID,
		Disposition: disposition,
		Status:      final.Status,
		ItemKey:     key,
	}, nil
}

// Reject declines a record parked in awaiting_approval. A record that was
// linked before the replacement attempt gets its prior link back; a fresh
// record moves to failed with the operator's reason on file.
func (o *Orchestrator) Reject(ctx context.Context, record *records.Record, reason string) (Outcome, error) {
	if record == nil {
		return Outcome{}, fmt.Errorf("record is nil")
	}
	if record.Status != records.StatusAwaitingApproval {
		return Outcome{}, fmt.Errorf("record %d is %s, rejection requires %s", record.ID, record.Status, records.StatusAwaitingApproval)
	}
	if reason == "" {
		reason = "extracted metadata rejected"
	}

	if record.PreviousItemKey != "" {
		restored, err := statemachine.Restore(record, statemachine.Failure{
			Category: string(services.CategoryInvalidInput),
			Message:  reason,
		})
		if err != nil {
			return Outcome{RecordID: record.ID, Status: record.Status}, err
		}
		attempt := &records.Attempt{
			Stage:   string(records.StatusAwaitingApproval),
			Method:  "reject",
			Success: false,
			Metadata: map[string]any{
				"reason":            reason,
				"restored_item_key": restored.ExternalItemKey,
			},
		}
		if err := o.store.CommitTransition(ctx, restored, record.Status, attempt); err != nil {
			return Outcome{RecordID: record.ID, Disposition: DispositionConflict, Reason: err.Error()}, err
		}
		return Outcome{
			RecordID:    record.ID,
			Disposition: DispositionRestored,
			Status:      restored.Status,
			ItemKey:     restored.ExternalItemKey,
			Reason:      reason,
		}, nil
	}

	failed, err := statemachine.Transition(record, records.StatusFailed, statemachine.Failure{
		Category: string(services.CategoryInvalidInput),
		Message:  reason,
	})
	if err != nil {
		return Outcome{RecordID: record.ID, Status: record.Status}, err
	}
	attempt := &records.Attempt{
		Stage:    string(records.StatusAwaitingApproval),
		Method:   "reject",
		Success:  false,
		Metadata: map[string]any{"reason": reason},
	}
	if err := o.store.CommitTransition(ctx, failed, record.Status, attempt); err != nil {
		return Outcome{RecordID: record.ID, Disposition: DispositionConflict, Reason: err.Error()}, err
	}
	return Outcome{
		RecordID:    record.ID,
		Disposition: DispositionFailed,
		Status:      failed.Status,
		Reason:      reason,
	}, nil
}
