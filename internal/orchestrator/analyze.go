package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"citetrack/internal/logging"
	"citetrack/internal/records"
	"citetrack/internal/services"
	"citetrack/internal/statemachine"
)

// Analyze runs the content-first pipeline: fetch the page, extract candidate
// identifiers, and either park the record for a human to pick a candidate or
// continue straight into the external tier cascade.
func (o *Orchestrator) Analyze(ctx context.Context, record *records.Record, opts Options) (Outcome, error) {
	if record == nil {
		return Outcome{}, fmt.Errorf("record is nil")
	}
	if o.fetcher == nil || o.idents == nil {
		return Outcome{}, fmt.Errorf("content analysis requires fetcher and identifier extractor")
	}

	correlationID := uuid.NewString()
	ctx = services.WithRecordID(ctx, record.ID)
	ctx = services.WithStage(ctx, string(records.StatusProcessingContent))
	ctx = services.WithRequestID(ctx, correlationID)
	logger := logging.WithContext(ctx, o.logger)

	autoCtx := statemachine.Automated{Forced: opts.Forced}
	staged, err := statemachine.Transition(record, records.StatusProcessingContent, autoCtx)
	if err != nil {
		return Outcome{
			RecordID:    record.ID,
			Disposition: DispositionSkipped,
			Status:      record.Status,
			Reason:      err.Error(),
		}, err
	}
	if err := o.store.CommitTransition(ctx, staged, record.Status, nil); err != nil {
		return Outcome{
			RecordID:    record.ID,
			Disposition: DispositionConflict,
			Status:      record.Status,
			Reason:      err.Error(),
		}, err
	}

	logger.Info(
		"content analysis started",
		logging.String(logging.FieldEventType, "analyze_start"),
		logging.String("url", record.URL),
	)

	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
	content, err := o.fetcher.Fetch(fetchCtx, staged.URL)
	cancel()
	if err != nil {
		return o.failAnalysis(ctx, logger, staged, "fetch", err, time.Since(start), correlationID)
	}

	extracting, err := statemachine.Transition(staged, records.StatusExtractingIdentifiers, autoCtx)
	if err != nil {
		return Outcome{RecordID: record.ID, Status: staged.Status}, err
	}
	if err := o.store.CommitTransition(ctx, extracting, staged.Status, nil); err != nil {
		return Outcome{RecordID: record.ID, Disposition: DispositionConflict, Reason: err.Error()}, err
	}

	extractCtx, cancel := context.WithTimeout(ctx, o.timeout)
	candidates, err := o.idents.Identifiers(extractCtx, content)
	cancel()
	duration := time.Since(start)
	if err != nil {
		return o.failAnalysis(ctx, logger, extracting, "extract", err, duration, correlationID)
	}

	labels := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		labels = append(labels, candidate.Kind+":"+candidate.Value)
	}

	if len(candidates) > 1 {
		attempt := &records.Attempt{
			Stage:      string(records.StatusExtractingIdentifiers),
			Method:     "extract",
			Success:    true,
			DurationMs: duration.Milliseconds(),
			Metadata: map[string]any{
				"candidates":     labels,
				"correlation_id": correlationID,
			},
		}
		parked, err := statemachine.Transition(extracting, records.StatusAwaitingSelection, statemachine.Selection{Candidates: labels})
		if err != nil {
			return Outcome{RecordID: record.ID, Status: extracting.Status}, err
		}
		if err := o.store.CommitTransition(ctx, parked, extracting.Status, attempt); err != nil {
			return Outcome{RecordID: record.ID, Disposition: DispositionConflict, Reason: err.Error()}, err
		}
		logger.Info(
			"ambiguous identifiers, awaiting selection",
			logging.String(logging.FieldEventType, "analyze_selection"),
			logging.Int("candidates", len(candidates)),
		)
		return Outcome{
			RecordID:    record.ID,
			Disposition: DispositionAwaitingSelection,
			Status:      parked.Status,
		}, nil
	}

	staged2, err := statemachine.Transition(extracting, records.StatusProcessingExternal, autoCtx)
	if err != nil {
		return Outcome{RecordID: record.ID, Status: extracting.Status}, err
	}
	if err := o.store.CommitTransition(ctx, staged2, extracting.Status, nil); err != nil {
		return Outcome{RecordID: record.ID, Disposition: DispositionConflict, Reason: err.Error()}, err
	}
	return o.runTiers(ctx, logger, staged2, correlationID)
}

func (o *Orchestrator) failAnalysis(ctx context.Context, logger *slog.Logger, staged *records.Record, operation string, cause error, duration time.Duration, correlationID string) (Outcome, error) {
	category := services.Classify(cause)
	attempt := &records.Attempt{
		Stage:      string(staged.Status),
		Method:     operation,
		Success:    false,
		DurationMs: duration.Milliseconds(),
		Metadata: map[string]any{
			"category":       string(category),
			"error":          cause.Error(),
			"retryable":      category.Retryable(),
			"correlation_id": correlationID,
		},
	}
	failure := statemachine.Failure{
		Category:  string(category),
		Message:   cause.Error(),
		Retryable: category.Retryable(),
	}

	failed, err := statemachine.Transition(staged, records.StatusFailed, failure)
	if err != nil {
		return Outcome{RecordID: staged.ID, Status: staged.Status}, err
	}
	if err := o.store.CommitTransition(ctx, failed, staged.Status, attempt); err != nil {
		return Outcome{RecordID: staged.ID, Disposition: DispositionConflict, Reason: err.Error()}, err
	}
	logger.Warn(
		"content analysis failed",
		logging.String(logging.FieldEventType, "analyze_failed"),
		logging.String("category", string(category)),
		logging.Error(cause),
	)
	return Outcome{
		RecordID:    staged.ID,
		Disposition: DispositionFailed,
		Status:      failed.Status,
		Reason:      cause.Error(),
	}, nil
}
