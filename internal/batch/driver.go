package batch

import (
	"context"
	"fmt"
	"log/slog"

	"citetrack/internal/config"
	"citetrack/internal/logging"
	"citetrack/internal/orchestrator"
	"citetrack/internal/records"
)

// Processor executes one processing attempt for one record. Satisfied by
// *orchestrator.Orchestrator.
type Processor interface {
	Process(ctx context.Context, record *records.Record, opts orchestrator.Options) (orchestrator.Outcome, error)
}

// Options tune a single batch run.
type Options struct {
	// Concurrency overrides the configured worker count when positive.
	Concurrency int
	// Forced is passed through to every processing attempt.
	Forced bool
}

// Driver runs the orchestrator across many records with bounded concurrency.
type Driver struct {
	store       *records.Store
	processor   Processor
	concurrency int
	logger      *slog.Logger
}

// New constructs a batch driver.
func New(cfg *config.Config, store *records.Store, processor Processor, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = logging.NewNop()
	}
	concurrency := cfg.Batch.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Driver{
		store:       store,
		processor:   processor,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "batch"),
	}
}

// Run starts a fresh batch over the given ids and returns its handle. Each
// call owns its own state; multiple runs coexist without interference.
// Resumption across invocations is re-invoking with the remaining ids.
func (d *Driver) Run(ctx context.Context, ids []int64, opts Options) (*Run, error) {
	if d.processor == nil {
		return nil, fmt.Errorf("batch driver has no processor")
	}

	unique := dedupe(ids)
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = d.concurrency
	}
	if concurrency > len(unique) && len(unique) > 0 {
		concurrency = len(unique)
	}

	run := newRun(unique, concurrency)
	logger := d.logger.With(logging.String(logging.FieldRunID, run.ID()))

	logger.Info(
		"batch run started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("total", len(unique)),
		logging.Int("concurrency", concurrency),
	)
	run.emit(Event{Type: EventStarted, RunID: run.ID(), Total: len(unique)})

	go run.dispatch(ctx, d, logger, opts)
	return run, nil
}

// dedupe keeps first occurrence order; a duplicated id is dispatched once.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
