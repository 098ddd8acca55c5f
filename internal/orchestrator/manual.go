package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"citetrack/internal/records"
	"citetrack/internal/statemachine"
)

// Ignore parks a record so automation skips it until it is reinstated.
func (o *Orchestrator) Ignore(ctx context.Context, record *records.Record, reason string) error {
	return o.manualTransition(ctx, record, records.StatusIgnored, reason)
}

// Archive moves a record to its terminal removal state, keeping the audit
// trail intact. Archived records have no outgoing edges.
func (o *Orchestrator) Archive(ctx context.Context, record *records.Record, reason string) error {
	return o.manualTransition(ctx, record, records.StatusArchived, reason)
}

// Reinstate returns an ignored record to not_started for reprocessing.
func (o *Orchestrator) Reinstate(ctx context.Context, record *records.Record) error {
	return o.manualTransition(ctx, record, records.StatusNotStarted, "reinstated")
}

// Retry re-arms failed records to not_started so a later run picks them up.
// With no ids every failed record is re-armed. Each record goes through the
// state machine and its own optimistic commit; records that left the failed
// state since being read are skipped, not forced.
func (o *Orchestrator) Retry(ctx context.Context, ids ...int64) (int64, error) {
	var targets []*records.Record
	if len(ids) == 0 {
		list, err := o.store.List(ctx, records.StatusFailed)
		if err != nil {
			return 0, err
		}
		targets = list
	} else {
		for _, id := range ids {
			record, err := o.store.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, records.ErrNotFound) {
					continue
				}
				return 0, err
			}
			if record.Status != records.StatusFailed {
				continue
			}
			targets = append(targets, record)
		}
	}

	var count int64
	for _, record := range targets {
		next, err := statemachine.Transition(record, records.StatusNotStarted, statemachine.Manual{Reason: "retry"})
		if err != nil {
			return count, err
		}
		if err := o.store.CommitTransition(ctx, next, record.Status, nil); err != nil {
			if errors.Is(err, records.ErrConflict) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

func (o *Orchestrator) manualTransition(ctx context.Context, record *records.Record, target records.Status, reason string) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	next, err := statemachine.Transition(record, target, statemachine.Manual{Reason: reason})
	if err != nil {
		return err
	}
	if err := o.store.CommitTransition(ctx, next, record.Status, nil); err != nil {
		return err
	}
	*record = *next
	return nil
}
