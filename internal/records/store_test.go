package records_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"citetrack/internal/records"
	"citetrack/internal/statemachine"
	"citetrack/internal/testsupport"
)

func TestNewURLNormalizesAndRejectsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record, err := store.NewURL(ctx, "  WWW.Example.com/Paper#section  ")
	if err != nil {
		t.Fatalf("new url: %v", err)
	}
	if record.URL != "https://www.example.com/Paper" {
		t.Fatalf("normalized url = %q", record.URL)
	}
	if record.Status != records.StatusNotStarted || record.Intent != records.IntentAuto {
		t.Fatalf("fresh record wrong: status=%s intent=%s", record.Status, record.Intent)
	}

	if _, err := store.NewURL(ctx, "https://www.example.com/Paper#other"); !errors.Is(err, records.ErrDuplicateURL) {
		t.Fatalf("expected ErrDuplicateURL, got %v", err)
	}

	found, err := store.FindByURL(ctx, "www.example.com/Paper")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.ID != record.ID {
		t.Fatalf("find returned %+v", found)
	}
}

func TestCommitTransitionOptimisticCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	record := testsupport.SeedRecord(t, store)
	stale := record.Clone()

	first, err := statemachine.Transition(record, records.StatusProcessingExternal, statemachine.Automated{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.CommitTransition(ctx, first, record.Status, nil); err != nil {
		t.Fatalf("commit: %v", err)
	}

	second, err := statemachine.Transition(stale, records.StatusProcessingExternal, statemachine.Automated{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	err = store.CommitTransition(ctx, second, stale.Status, &records.Attempt{Stage: "processing_external", Method: "reuse"})
	if !errors.Is(err, records.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The losing commit must not leave an attempt behind.
	count, err := store.AttemptCount(ctx, record.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("attempt leaked from rolled-back commit: %d", count)
	}
}

func TestCommitTransitionAppendsAttemptAtomically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	record := testsupport.SeedRecord(t, store)

	staged, err := statemachine.Transition(record, records.StatusProcessingExternal, statemachine.Automated{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.CommitTransition(ctx, staged, record.Status, nil); err != nil {
		t.Fatalf("stage commit: %v", err)
	}

	final, err := statemachine.Transition(staged, records.StatusStored, statemachine.Completion{ItemKey: "KEY1"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	attempt := &records.Attempt{
		Stage:         "processing_external",
		Method:        "linker",
		Success:       true,
		DurationMs:    120,
		ResultItemKey: "KEY1",
		Metadata:      map[string]any{"candidate": "doi:10.1000/x"},
	}
	if err := store.CommitTransition(ctx, final, staged.Status, attempt); err != nil {
		t.Fatalf("final commit: %v", err)
	}

	persisted, err := store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if persisted.Status != records.StatusStored || persisted.ExternalItemKey != "KEY1" {
		t.Fatalf("persisted wrong: %+v", persisted)
	}
	if persisted.AttemptCount != 1 {
		t.Fatalf("attempt count = %d", persisted.AttemptCount)
	}

	history, err := store.Attempts(ctx, record.ID)
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d", len(history))
	}
	got := history[0]
	if got.Seq != 1 || !got.Success || got.ResultItemKey != "KEY1" {
		t.Fatalf("attempt wrong: %+v", got)
	}
	if got.Metadata["candidate"] != "doi:10.1000/x" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}
}

func TestHistoryIsAppendOnlyAndOrdered(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	record := testsupport.SeedRecord(t, store)

	for i := 0; i < 5; i++ {
		attempt := &records.Attempt{Stage: "processing_external", Method: "reuse", Success: false}
		if err := store.AppendAttempt(ctx, record.ID, attempt); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if attempt.Seq != i+1 {
			t.Fatalf("seq = %d, want %d", attempt.Seq, i+1)
		}
	}

	history, err := store.Attempts(ctx, record.ID)
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("history length = %d", len(history))
	}
	for i, attempt := range history {
		if attempt.Seq != i+1 {
			t.Fatalf("history out of order at %d: %+v", i, attempt)
		}
	}

	persisted, _ := store.GetByID(ctx, record.ID)
	if persisted.AttemptCount != 5 {
		t.Fatalf("attempt count = %d", persisted.AttemptCount)
	}
}

func TestLookupMissingRecordIsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, err := store.GetByID(ctx, 9999)
	if !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "9999") {
		t.Fatalf("error should name the id: %v", err)
	}

	_, err = store.FindByURL(ctx, "https://example.com/untracked")
	if !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for untracked url, got %v", err)
	}
}

func TestResetStuckProcessingRestoresReplacements(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Fresh attempt interrupted mid-processing.
	fresh := testsupport.SeedRecord(t, store)
	freshStaged, _ := statemachine.Transition(fresh, records.StatusProcessingExternal, statemachine.Automated{})
	if err := store.CommitTransition(ctx, freshStaged, fresh.Status, nil); err != nil {
		t.Fatalf("stage fresh: %v", err)
	}

	// Replacement interrupted mid-processing: previous link parked.
	linked := testsupport.SeedRecord(t, store)
	s1, _ := statemachine.Transition(linked, records.StatusProcessingExternal, statemachine.Automated{})
	if err := store.CommitTransition(ctx, s1, linked.Status, nil); err != nil {
		t.Fatalf("stage linked: %v", err)
	}
	s2, _ := statemachine.Transition(s1, records.StatusStored, statemachine.Completion{ItemKey: "OLD1"})
	if err := store.CommitTransition(ctx, s2, s1.Status, nil); err != nil {
		t.Fatalf("store linked: %v", err)
	}
	s3, _ := statemachine.Transition(s2, records.StatusProcessingExternal, statemachine.Automated{})
	if err := store.CommitTransition(ctx, s3, s2.Status, nil); err != nil {
		t.Fatalf("restage linked: %v", err)
	}

	affected, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if affected != 2 {
		t.Fatalf("affected = %d", affected)
	}

	restored, _ := store.GetByID(ctx, linked.ID)
	if restored.Status != records.StatusStored || restored.ExternalItemKey != "OLD1" {
		t.Fatalf("replacement not restored: status=%s key=%q", restored.Status, restored.ExternalItemKey)
	}

	failedRec, _ := store.GetByID(ctx, fresh.ID)
	if failedRec.Status != records.StatusFailed {
		t.Fatalf("fresh stuck record should fail: %s", failedRec.Status)
	}
	if failedRec.LastError == nil || failedRec.LastError.Message != records.ShutdownStopReason {
		t.Fatalf("recovery note missing: %+v", failedRec.LastError)
	}
	if failedRec.LastError.Retryable {
		t.Fatalf("unknown recovery error must not be retryable: %+v", failedRec.LastError)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testsupport.SeedRecord(t, store)
	}
	record := testsupport.SeedRecord(t, store)
	staged, _ := statemachine.Transition(record, records.StatusProcessingExternal, statemachine.Automated{})
	if err := store.CommitTransition(ctx, staged, record.Status, nil); err != nil {
		t.Fatalf("stage: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[records.StatusNotStarted] != 3 || stats[records.StatusProcessingExternal] != 1 {
		t.Fatalf("stats wrong: %+v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 4 || health.NotStarted != 3 || health.Processing != 1 {
		t.Fatalf("health wrong: %+v", health)
	}
}

func TestProjectionIncludesHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	record := testsupport.SeedRecord(t, store)

	attempt := &records.Attempt{
		Timestamp: time.Now().UTC(),
		Stage:     "processing_external",
		Method:    "linker",
		Success:   false,
		Metadata:  map[string]any{"category": "transient_network"},
	}
	if err := store.AppendAttempt(ctx, record.ID, attempt); err != nil {
		t.Fatalf("append: %v", err)
	}

	projection, err := store.Projection(ctx, record.ID)
	if err != nil {
		t.Fatalf("projection: %v", err)
	}
	if projection == nil || len(projection.History) != 1 {
		t.Fatalf("projection wrong: %+v", projection)
	}
	if projection.History[0].Metadata["category"] != "transient_network" {
		t.Fatalf("metadata lost: %+v", projection.History[0].Metadata)
	}
}

func TestSetIntentAndListFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	record := testsupport.SeedRecord(t, store)

	if err := store.SetIntent(ctx, record.ID, records.IntentPriority); err != nil {
		t.Fatalf("set intent: %v", err)
	}
	if err := store.SetIntent(ctx, record.ID, records.Intent("bogus")); err == nil {
		t.Fatal("unknown intent must be rejected")
	}

	listed, err := store.List(ctx, records.StatusNotStarted)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Intent != records.IntentPriority {
		t.Fatalf("list wrong: %+v", listed)
	}

	ids, err := store.ListIDs(ctx, records.StatusStored)
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no stored ids, got %v", ids)
	}
}
