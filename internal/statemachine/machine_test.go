package statemachine

import (
	"errors"
	"testing"

	"citetrack/internal/records"
)

func newRecord(status records.Status) *records.Record {
	return &records.Record{
		ID:     1,
		URL:    "https://example.com/article",
		Status: status,
		Intent: records.IntentAuto,
	}
}

func TestTransitionRejectsUndeclaredEdges(t *testing.T) {
	for _, from := range records.AllStatuses() {
		allowed := make(map[records.Status]struct{})
		for _, to := range Targets(from) {
			allowed[to] = struct{}{}
		}
		for _, to := range records.AllStatuses() {
			if _, ok := allowed[to]; ok {
				continue
			}
			record := newRecord(from)
			if from.IsLinked() {
				record.ExternalItemKey = "KEY1"
			}
			if _, err := Transition(record, to, Manual{}); err == nil {
				t.Errorf("transition %s -> %s should be rejected", from, to)
			} else {
				var terr *TransitionError
				if !errors.As(err, &terr) {
					t.Errorf("transition %s -> %s: expected TransitionError, got %v", from, to, err)
				}
			}
		}
	}
}

func TestArchivedIsTerminal(t *testing.T) {
	if targets := Targets(records.StatusArchived); len(targets) != 0 {
		t.Fatalf("archived should have no outgoing edges, got %v", targets)
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	record := newRecord(records.StatusNotStarted)
	next, err := Transition(record, records.StatusProcessingContent, Automated{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if record.Status != records.StatusNotStarted {
		t.Fatalf("input record mutated to %s", record.Status)
	}
	if next.Status != records.StatusProcessingContent {
		t.Fatalf("expected processing_content, got %s", next.Status)
	}
	if next.UpdatedAt.IsZero() {
		t.Fatal("updated_at not set")
	}
}

func TestManualOnlyIntentBlocksAutomation(t *testing.T) {
	record := newRecord(records.StatusNotStarted)
	record.Intent = records.IntentManualOnly

	_, err := Transition(record, records.StatusProcessingExternal, Automated{})
	var terr *TransitionError
	if !errors.As(err, &terr) || terr.Guard != "manual-only-intent" {
		t.Fatalf("expected manual-only-intent guard refusal, got %v", err)
	}

	if _, err := Transition(record, records.StatusProcessingExternal, Automated{Forced: true}); err != nil {
		t.Fatalf("forced trigger should pass the intent guard: %v", err)
	}
}

func TestIgnoreAutoIntentBlocksAutomation(t *testing.T) {
	record := newRecord(records.StatusNotStarted)
	record.Intent = records.IntentIgnoreAuto

	_, err := Transition(record, records.StatusProcessingContent, Automated{})
	var terr *TransitionError
	if !errors.As(err, &terr) || terr.Guard != "ignore-auto-intent" {
		t.Fatalf("expected ignore-auto-intent guard refusal, got %v", err)
	}
}

func TestStoredRequiresItemKey(t *testing.T) {
	record := newRecord(records.StatusProcessingExternal)

	if _, err := Transition(record, records.StatusStored, Completion{}); err == nil {
		t.Fatal("empty item key should be refused")
	}
	if _, err := Transition(record, records.StatusStored, Automated{}); err == nil {
		t.Fatal("wrong context type should be refused")
	}

	next, err := Transition(record, records.StatusStored, Completion{ItemKey: "ABCD1234"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if next.ExternalItemKey != "ABCD1234" {
		t.Fatalf("expected item key installed, got %q", next.ExternalItemKey)
	}
	if next.LastError != nil {
		t.Fatal("completion should clear last_error")
	}
}

func TestAwaitingSelectionRequiresCandidates(t *testing.T) {
	record := newRecord(records.StatusExtractingIdentifiers)

	if _, err := Transition(record, records.StatusAwaitingSelection, Selection{}); err == nil {
		t.Fatal("empty candidate set should be refused")
	}
	if _, err := Transition(record, records.StatusAwaitingSelection, Selection{Candidates: []string{"10.1000/x"}}); err != nil {
		t.Fatalf("transition: %v", err)
	}
}

func TestExhaustedRequiresLastTier(t *testing.T) {
	record := newRecord(records.StatusFailed)

	if _, err := Transition(record, records.StatusExhausted, Failure{Category: "not_found"}); err == nil {
		t.Fatal("exhausted without last-tier marker should be refused")
	}

	next, err := Transition(record, records.StatusExhausted, Failure{Category: "not_found", Message: "no tier succeeded", LastTier: true})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if next.LastError == nil || next.LastError.Kind != "not_found" {
		t.Fatalf("expected last_error recorded, got %+v", next.LastError)
	}
}

func TestReplacementParksExistingKey(t *testing.T) {
	record := newRecord(records.StatusStored)
	record.ExternalItemKey = "OLDKEY99"

	next, err := Transition(record, records.StatusProcessingExternal, Automated{Forced: true})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if next.ExternalItemKey != "" {
		t.Fatalf("item key should be parked during replacement, got %q", next.ExternalItemKey)
	}
	if next.PreviousItemKey != "OLDKEY99" || next.PreviousStatus != records.StatusStored {
		t.Fatalf("parked state wrong: key=%q status=%s", next.PreviousItemKey, next.PreviousStatus)
	}

	// Completing the replacement installs the new key and drops the parked one.
	done, err := Transition(next, records.StatusStored, Completion{ItemKey: "NEWKEY01", ReplacedKey: "OLDKEY99"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if done.ExternalItemKey != "NEWKEY01" || done.PreviousItemKey != "" || done.PreviousStatus != "" {
		t.Fatalf("replacement completion bookkeeping wrong: %+v", done)
	}
}

func TestRestoreReinstallsParkedKey(t *testing.T) {
	record := newRecord(records.StatusProcessingExternal)
	record.PreviousItemKey = "OLDKEY99"
	record.PreviousStatus = records.StatusStoredIncomplete

	next, err := Restore(record, Failure{Category: "transient_network", Message: "timeout", Retryable: true})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if next.Status != records.StatusStoredIncomplete || next.ExternalItemKey != "OLDKEY99" {
		t.Fatalf("restore wrong: status=%s key=%q", next.Status, next.ExternalItemKey)
	}
	if next.PreviousItemKey != "" || next.PreviousStatus != "" {
		t.Fatal("parked fields should be cleared after restore")
	}
	if next.LastError == nil || !next.LastError.Retryable {
		t.Fatalf("expected retryable last_error, got %+v", next.LastError)
	}
}

func TestRestoreRequiresParkedState(t *testing.T) {
	record := newRecord(records.StatusProcessingExternal)
	if _, err := Restore(record, Failure{Category: "unknown"}); err == nil {
		t.Fatal("restore without parked state should fail")
	}

	record = newRecord(records.StatusFailed)
	if _, err := Restore(record, Failure{Category: "unknown"}); err == nil {
		t.Fatal("restore outside processing_external should fail")
	}
}

func TestParkedStateDroppedWhenAttemptEnds(t *testing.T) {
	cases := []struct {
		name   string
		target records.Status
		tctx   Context
	}{
		{"failure", records.StatusFailed, Failure{Category: "invalid_input", Message: "rejected"}},
		{"ignored", records.StatusIgnored, Manual{Reason: "not worth keeping"}},
		{"archived", records.StatusArchived, Manual{Reason: "cleanup"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := newRecord(records.StatusAwaitingApproval)
			record.PreviousItemKey = "OLDKEY99"
			record.PreviousStatus = records.StatusStored

			next, err := Transition(record, tc.target, tc.tctx)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if next.PreviousItemKey != "" || next.PreviousStatus != "" {
				t.Fatalf("parked state leaked into %s: key=%q status=%s", tc.target, next.PreviousItemKey, next.PreviousStatus)
			}
		})
	}
}

func TestParkedStateSurvivesApprovalParking(t *testing.T) {
	record := newRecord(records.StatusProcessingExternal)
	record.PreviousItemKey = "OLDKEY99"
	record.PreviousStatus = records.StatusStored

	parked, err := Transition(record, records.StatusAwaitingApproval, Automated{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if parked.PreviousItemKey != "OLDKEY99" || parked.PreviousStatus != records.StatusStored {
		t.Fatalf("parked state should survive while the draft awaits review: %+v", parked)
	}

	restored, err := Restore(parked, Failure{Category: "invalid_input", Message: "rejected"})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Status != records.StatusStored || restored.ExternalItemKey != "OLDKEY99" {
		t.Fatalf("restore from awaiting_approval wrong: status=%s key=%q", restored.Status, restored.ExternalItemKey)
	}
}

func TestFailedReArmRequiresOperator(t *testing.T) {
	record := newRecord(records.StatusFailed)
	record.LastError = &records.Failure{Kind: "auth", Message: "denied"}

	_, err := Transition(record, records.StatusNotStarted, Automated{})
	var terr *TransitionError
	if !errors.As(err, &terr) || terr.Guard != "manual-reset-required" {
		t.Fatalf("expected manual-reset-required guard refusal, got %v", err)
	}

	next, err := Transition(record, records.StatusNotStarted, Manual{Reason: "retry"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if next.LastError != nil {
		t.Fatalf("re-armed record should be pristine, got %+v", next.LastError)
	}
}

func TestItemKeyClearedOutsideLinkedStates(t *testing.T) {
	record := newRecord(records.StatusStored)
	record.ExternalItemKey = "KEY1"

	next, err := Transition(record, records.StatusArchived, Manual{Reason: "cleanup"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if next.ExternalItemKey != "" {
		t.Fatalf("archived record should not carry an item key, got %q", next.ExternalItemKey)
	}
}
