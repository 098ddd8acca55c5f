package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"citetrack/internal/config"
	"citetrack/internal/logging"
	"citetrack/internal/records"
	"citetrack/internal/services"
	"citetrack/internal/statemachine"
)

// Disposition summarizes how a processing attempt ended.
type Disposition string

const (
	DispositionStored            Disposition = "stored"
	DispositionStoredIncomplete  Disposition = "stored_incomplete"
	DispositionAwaitingApproval  Disposition = "awaiting_approval"
	DispositionAwaitingSelection Disposition = "awaiting_selection"
	DispositionFailed            Disposition = "failed"
	DispositionExhausted         Disposition = "exhausted"
	DispositionRestored          Disposition = "restored"
	DispositionConflict          Disposition = "conflict"
	DispositionSkipped           Disposition = "skipped"
)

// Outcome is the result of one orchestration call for one record.
type Outcome struct {
	RecordID    int64
	Disposition Disposition
	Status      records.Status
	ItemKey     string
	Replaced    bool
	OldItemKey  string
	TiersTried  []string
	Reason      string
}

// Options tune a single orchestration call.
type Options struct {
	// Forced marks an explicit operator trigger, overriding the
	// manual-only and ignore-auto intent guards.
	Forced bool
}

// Orchestrator drives a single record through one processing attempt,
// cascading across strategy tiers on retryable failure.
type Orchestrator struct {
	store   *records.Store
	linker  services.ReferenceService
	fetcher services.ContentFetcher
	idents  services.IdentifierExtractor
	drafter services.MetadataExtractor

	tiers    []string
	maxTiers int
	cascade  bool
	timeout  time.Duration
	backoff  services.BackoffPolicy

	logger *slog.Logger
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithContentFetcher installs the content acquisition collaborator.
func WithContentFetcher(fetcher services.ContentFetcher) Option {
	return func(o *Orchestrator) { o.fetcher = fetcher }
}

// WithIdentifierExtractor installs the identifier extraction collaborator.
func WithIdentifierExtractor(extractor services.IdentifierExtractor) Option {
	return func(o *Orchestrator) { o.idents = extractor }
}

// WithMetadataExtractor installs the fallback metadata extraction collaborator.
func WithMetadataExtractor(extractor services.MetadataExtractor) Option {
	return func(o *Orchestrator) { o.drafter = extractor }
}

// New constructs an orchestrator from configuration and collaborators.
func New(cfg *config.Config, store *records.Store, linker services.ReferenceService, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	orch := &Orchestrator{
		store:    store,
		linker:   linker,
		tiers:    append([]string(nil), cfg.Processing.Tiers...),
		maxTiers: cfg.Processing.MaxTiersPerCall,
		cascade:  cfg.Processing.CascadeEnabled,
		timeout:  time.Duration(cfg.Linker.RequestTimeout) * time.Second,
		backoff: services.BackoffPolicy{
			Base: time.Duration(cfg.Processing.BackoffBaseMs) * time.Millisecond,
			Max:  time.Duration(cfg.Processing.BackoffMaxMs) * time.Millisecond,
		},
		logger: logging.NewComponentLogger(logger, "orchestrator"),
	}
	for _, opt := range opts {
		opt(orch)
	}
	if orch.maxTiers <= 0 {
		orch.maxTiers = len(orch.tiers)
	}
	if orch.timeout <= 0 {
		orch.timeout = 30 * time.Second
	}
	return orch
}

// Process executes exactly one processing attempt: stage the record into
// processing_external, run the tier cascade, and commit the terminal state.
// External failures never escape; they become terminal states plus history.
// TransitionError and ErrConflict are returned to the caller.
func (o *Orchestrator) Process(ctx context.Context, record *records.Record, opts Options) (Outcome, error) {
	if record == nil {
		return Outcome{}, fmt.Errorf("record is nil")
	}

	correlationID := uuid.NewString()
	ctx = services.WithRecordID(ctx, record.ID)
	ctx = services.WithStage(ctx, string(records.StatusProcessingExternal))
	ctx = services.WithRequestID(ctx, correlationID)
	logger := logging.WithContext(ctx, o.logger)

	autoCtx := statemachine.Automated{Forced: opts.Forced}
	staged, err := statemachine.Transition(record, records.StatusProcessingExternal, autoCtx)
	if err != nil {
		logger.Debug("processing skipped", logging.Error(err))
		return Outcome{
			RecordID:    record.ID,
			Disposition: DispositionSkipped,
			Status:      record.Status,
			Reason:      err.Error(),
		}, err
	}

	if err := o.store.CommitTransition(ctx, staged, record.Status, nil); err != nil {
		logger.Debug("processing claim lost", logging.Error(err))
		return Outcome{
			RecordID:    record.ID,
			Disposition: DispositionConflict,
			Status:      record.Status,
			Reason:      err.Error(),
		}, err
	}

	logger.Info(
		"processing started",
		logging.String(logging.FieldEventType, "process_start"),
		logging.String("url", record.URL),
		logging.Bool("replacement", staged.PreviousItemKey != ""),
	)

	return o.runTiers(ctx, logger, staged, correlationID)
}

// runTiers consumes the configured tier order against a record already
// committed into processing_external. Cascade is a bounded loop over a data
// value, never recursion.
func (o *Orchestrator) runTiers(ctx context.Context, logger *slog.Logger, staged *records.Record, correlationID string) (Outcome, error) {
	replacement := staged.PreviousItemKey != ""
	outcome := Outcome{
		RecordID:   staged.ID,
		Replaced:   replacement,
		OldItemKey: staged.PreviousItemKey,
	}

	budget := o.maxTiers
	if budget > len(o.tiers) {
		budget = len(o.tiers)
	}
	if budget == 0 {
		failure := statemachine.Failure{
			Category: string(services.CategoryInvalidInput),
			Message:  "no strategy tiers configured",
		}
		return o.commitTerminalFailure(ctx, logger, staged, nil, failure, replacement, outcome)
	}

	var lastFailure statemachine.Failure
	var lastAttempt *records.Attempt

	for i := 0; i < budget; i++ {
		tier := o.tiers[i]
		outcome.TiersTried = append(outcome.TiersTried, tier)
		tierLogger := logger.With(logging.String(logging.FieldTier, tier))

		start := time.Now()
		result, tierErr := o.runTier(ctx, tier, staged)
		duration := time.Since(start)

		if tierErr == nil {
			return o.commitSuccess(ctx, tierLogger, staged, tier, result, duration, correlationID, outcome)
		}

		category := services.Classify(tierErr)
		lastTier := i == budget-1
		attempt := &records.Attempt{
			Stage:      string(records.StatusProcessingExternal),
			Method:     tier,
			Success:    false,
			DurationMs: duration.Milliseconds(),
			Metadata: map[string]any{
				"category":       string(category),
				"error":          tierErr.Error(),
				"retryable":      category.Retryable(),
				"correlation_id": correlationID,
			},
		}
		lastFailure = statemachine.Failure{
			Category:  string(category),
			Message:   tierErr.Error(),
			Retryable: category.Retryable(),
			LastTier:  lastTier,
		}

		if category.Retryable() && o.cascade && !lastTier {
			attempt.Metadata["suggested_backoff_ms"] = o.backoff.Delay(category, i).Milliseconds()
			if err := o.store.AppendAttempt(ctx, staged.ID, attempt); err != nil {
				return outcome, fmt.Errorf("append cascade attempt: %w", err)
			}
			staged.AttemptCount++
			tierLogger.Warn(
				"tier failed, cascading",
				logging.String(logging.FieldEventType, "tier_cascade"),
				logging.String("category", string(category)),
				logging.Error(tierErr),
			)
			continue
		}

		tierLogger.Warn(
			"tier failed",
			logging.String(logging.FieldEventType, "tier_failed"),
			logging.String("category", string(category)),
			logging.Error(tierErr),
		)
		lastAttempt = attempt
		break
	}

	return o.commitTerminalFailure(ctx, logger, staged, lastAttempt, lastFailure, replacement, outcome)
}

type tierResult struct {
	item       *services.ItemSnapshot
	validation *services.Validation
	viaDraft   bool
}

// runTier performs at most one external-collaborator call chain under the
// configured timeout.
func (o *Orchestrator) runTier(ctx context.Context, tier string, staged *records.Record) (tierResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var (
		item *services.ItemSnapshot
		err  error
		via  bool
	)

	switch tier {
	case config.TierReuse:
		item, err = o.linker.LookupURL(callCtx, staged.URL)
	case config.TierLinker:
		item, err = o.linker.AnalyzeURL(callCtx, staged.URL)
	case config.TierMetadata:
		item, err = o.runMetadataTier(callCtx, staged)
		via = true
	default:
		err = services.Wrap(services.ErrInvalidInput, "orchestrator", "run tier", fmt.Sprintf("unknown tier %q", tier), nil)
	}
	if err != nil {
		return tierResult{}, err
	}

	validation, err := o.linker.ValidateCitation(callCtx, item.Key)
	if err != nil {
		return tierResult{}, err
	}
	return tierResult{item: item, validation: validation, viaDraft: via}, nil
}

func (o *Orchestrator) runMetadataTier(ctx context.Context, staged *records.Record) (*services.ItemSnapshot, error) {
	if o.fetcher == nil || o.drafter == nil {
		return nil, services.Wrap(services.ErrInvalidInput, "orchestrator", "metadata tier", "no extraction pipeline configured", nil)
	}
	content, err := o.fetcher.Fetch(ctx, staged.URL)
	if err != nil {
		return nil, err
	}
	draft, err := o.drafter.Draft(ctx, content)
	if err != nil {
		return nil, err
	}
	return o.linker.CreateItem(ctx, draft)
}

// commitSuccess classifies completeness and commits the post-transition
// atomically with the success attempt. Items created from an extracted draft
// park in awaiting_approval for a human to confirm.
func (o *Orchestrator) commitSuccess(ctx context.Context, logger *slog.Logger, staged *records.Record, tier string, result tierResult, duration time.Duration, correlationID string, outcome Outcome) (Outcome, error) {
	metadata := map[string]any{
		"correlation_id": correlationID,
	}
	if len(result.validation.MissingFields) > 0 {
		metadata["missing_fields"] = result.validation.MissingFields
	}
	if outcome.Replaced {
		metadata["replaced"] = true
		metadata["old_item_key"] = outcome.OldItemKey
	}

	attempt := &records.Attempt{
		Stage:         string(records.StatusProcessingExternal),
		Method:        tier,
		Success:       true,
		DurationMs:    duration.Milliseconds(),
		ResultItemKey: result.item.Key,
		Metadata:      metadata,
	}

	var (
		target records.Status
		tctx   statemachine.Context
	)
	if result.viaDraft {
		target = records.StatusAwaitingApproval
		metadata["pending_item_key"] = result.item.Key
		tctx = statemachine.Manual{Reason: "extracted metadata requires approval"}
		outcome.Disposition = DispositionAwaitingApproval
	} else if result.validation.Complete {
		target = records.StatusStored
		tctx = statemachine.Completion{ItemKey: result.item.Key, ReplacedKey: outcome.OldItemKey}
		outcome.Disposition = DispositionStored
	} else {
		target = records.StatusStoredIncomplete
		tctx = statemachine.Completion{
			ItemKey:       result.item.Key,
			MissingFields: result.validation.MissingFields,
			ReplacedKey:   outcome.OldItemKey,
		}
		outcome.Disposition = DispositionStoredIncomplete
	}

	final, err := statemachine.Transition(staged, target, tctx)
	if err != nil {
		return outcome, err
	}
	if err := o.store.CommitTransition(ctx, final, staged.Status, attempt); err != nil {
		return outcome, err
	}

	outcome.Status = final.Status
	outcome.ItemKey = result.item.Key
	logger.Info(
		"processing succeeded",
		logging.String(logging.FieldEventType, "process_done"),
		logging.String("status", string(final.Status)),
		logging.String("item_key", result.item.Key),
		logging.Duration("duration", duration),
	)
	*staged = *final
	return outcome, nil
}

// commitTerminalFailure ends the attempt: replacements restore the prior
// linked state; fresh attempts land in failed, then exhausted when the whole
// tier order was consumed with cascade enabled.
func (o *Orchestrator) commitTerminalFailure(ctx context.Context, logger *slog.Logger, staged *records.Record, attempt *records.Attempt, failure statemachine.Failure, replacement bool, outcome Outcome) (Outcome, error) {
	if replacement {
		restored, err := statemachine.Restore(staged, failure)
		if err != nil {
			return outcome, err
		}
		if err := o.store.CommitTransition(ctx, restored, staged.Status, attempt); err != nil {
			return outcome, err
		}
		outcome.Disposition = DispositionRestored
		outcome.Status = restored.Status
		outcome.ItemKey = restored.ExternalItemKey
		outcome.Reason = failure.Message
		logger.Warn(
			"replacement failed, previous link restored",
			logging.String(logging.FieldEventType, "replacement_restored"),
			logging.String("status", string(restored.Status)),
		)
		*staged = *restored
		return outcome, nil
	}

	failed, err := statemachine.Transition(staged, records.StatusFailed, failure)
	if err != nil {
		return outcome, err
	}
	if err := o.store.CommitTransition(ctx, failed, staged.Status, attempt); err != nil {
		return outcome, err
	}
	outcome.Disposition = DispositionFailed
	outcome.Status = failed.Status
	outcome.Reason = failure.Message
	*staged = *failed

	if failure.LastTier && o.cascade {
		exhausted, err := statemachine.Transition(failed, records.StatusExhausted, failure)
		if err != nil {
			return outcome, err
		}
		if err := o.store.CommitTransition(ctx, exhausted, failed.Status, nil); err != nil {
			return outcome, err
		}
		outcome.Disposition = DispositionExhausted
		outcome.Status = exhausted.Status
		*staged = *exhausted
	}

	logger.Warn(
		"processing ended without a link",
		logging.String(logging.FieldEventType, "process_failed"),
		logging.String("status", string(outcome.Status)),
		logging.String("category", failure.Category),
	)
	return outcome, nil
}
