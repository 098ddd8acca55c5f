package statemachine

import (
	"fmt"

	"citetrack/internal/records"
)

// Guard is a named precondition attached to one or more edges. Check returns
// a human-readable reason when the transition must be refused.
type Guard struct {
	Name  string
	Check func(record *records.Record, target records.Status, tctx Context) error
}

var guardManualOnlyIntent = Guard{
	Name: "manual-only-intent",
	Check: func(record *records.Record, target records.Status, tctx Context) error {
		if record.Intent != records.IntentManualOnly {
			return nil
		}
		if auto, ok := tctx.(Automated); ok && !auto.Forced {
			return fmt.Errorf("intent is manual-only; automated processing requires an explicit trigger")
		}
		return nil
	},
}

var guardIgnoreAutoIntent = Guard{
	Name: "ignore-auto-intent",
	Check: func(record *records.Record, target records.Status, tctx Context) error {
		if record.Intent != records.IntentIgnoreAuto {
			return nil
		}
		if auto, ok := tctx.(Automated); ok && !auto.Forced {
			return fmt.Errorf("intent is ignore-auto; record is skipped by automated runs")
		}
		return nil
	},
}

var guardItemKeyRequired = Guard{
	Name: "item-key-required",
	Check: func(record *records.Record, target records.Status, tctx Context) error {
		completion, ok := tctx.(Completion)
		if !ok {
			return fmt.Errorf("entering %s requires a completion context", target)
		}
		if completion.ItemKey == "" {
			return fmt.Errorf("entering %s requires a non-empty item key", target)
		}
		return nil
	},
}

var guardCandidatesRequired = Guard{
	Name: "candidates-required",
	Check: func(record *records.Record, target records.Status, tctx Context) error {
		selection, ok := tctx.(Selection)
		if !ok {
			return fmt.Errorf("entering %s requires a selection context", target)
		}
		if len(selection.Candidates) == 0 {
			return fmt.Errorf("entering %s requires at least one candidate", target)
		}
		return nil
	},
}

var guardReplacementCarriesKey = Guard{
	Name: "replacement-carries-key",
	Check: func(record *records.Record, target records.Status, tctx Context) error {
		if record.ExternalItemKey == "" {
			return fmt.Errorf("replacement from %s requires the existing item key to be present", record.Status)
		}
		return nil
	},
}

var guardManualReset = Guard{
	Name: "manual-reset-required",
	Check: func(record *records.Record, target records.Status, tctx Context) error {
		if _, ok := tctx.(Manual); !ok {
			return fmt.Errorf("re-arming a failed record requires an explicit operator action")
		}
		return nil
	},
}

var guardExhaustedLastTier = Guard{
	Name: "exhausted-requires-last-tier",
	Check: func(record *records.Record, target records.Status, tctx Context) error {
		failure, ok := tctx.(Failure)
		if !ok {
			return fmt.Errorf("entering exhausted requires a failure context")
		}
		if !failure.LastTier {
			return fmt.Errorf("entering exhausted requires the last strategy tier to have failed")
		}
		return nil
	},
}

// GuardsFor returns the guards attached to an edge, in evaluation order.
// The first guard that refuses wins.
func GuardsFor(from, to records.Status) []Guard {
	var guards []Guard

	if records.IsProcessing(to) {
		guards = append(guards, guardManualOnlyIntent, guardIgnoreAutoIntent)
	}
	switch to {
	case records.StatusStored, records.StatusStoredIncomplete:
		guards = append(guards, guardItemKeyRequired)
	case records.StatusAwaitingSelection:
		guards = append(guards, guardCandidatesRequired)
	case records.StatusExhausted:
		guards = append(guards, guardExhaustedLastTier)
	}
	if to == records.StatusProcessingExternal &&
		(from == records.StatusStored || from == records.StatusStoredIncomplete) {
		guards = append(guards, guardReplacementCarriesKey)
	}
	if from == records.StatusFailed && to == records.StatusNotStarted {
		guards = append(guards, guardManualReset)
	}
	return guards
}
