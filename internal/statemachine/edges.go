package statemachine

import "citetrack/internal/records"

// adjacency is the complete edge set. A transition absent from this table is
// rejected no matter what context accompanies it.
var adjacency = map[records.Status][]records.Status{
	records.StatusNotStarted: {
		records.StatusProcessingContent,
		records.StatusProcessingExternal,
		records.StatusIgnored,
		records.StatusArchived,
	},
	records.StatusProcessingContent: {
		records.StatusExtractingIdentifiers,
		records.StatusFailed,
	},
	records.StatusExtractingIdentifiers: {
		records.StatusAwaitingSelection,
		records.StatusProcessingExternal,
		records.StatusFailed,
	},
	records.StatusAwaitingSelection: {
		records.StatusProcessingExternal,
		records.StatusIgnored,
		records.StatusArchived,
	},
	records.StatusProcessingExternal: {
		records.StatusStored,
		records.StatusStoredIncomplete,
		records.StatusAwaitingApproval,
		records.StatusFailed,
	},
	records.StatusAwaitingApproval: {
		records.StatusStored,
		records.StatusStoredIncomplete,
		records.StatusFailed,
		records.StatusIgnored,
		records.StatusArchived,
	},
	records.StatusStored: {
		records.StatusProcessingExternal,
		records.StatusArchived,
	},
	records.StatusStoredIncomplete: {
		records.StatusProcessingExternal,
		records.StatusArchived,
	},
	records.StatusFailed: {
		records.StatusNotStarted,
		records.StatusProcessingContent,
		records.StatusProcessingExternal,
		records.StatusExhausted,
		records.StatusIgnored,
		records.StatusArchived,
	},
	records.StatusExhausted: {
		records.StatusProcessingExternal,
		records.StatusIgnored,
		records.StatusArchived,
	},
	records.StatusIgnored: {
		records.StatusNotStarted,
		records.StatusArchived,
	},
	records.StatusArchived: {},
}

// CanTransition reports whether the edge from → to exists.
func CanTransition(from, to records.Status) bool {
	for _, target := range adjacency[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Targets returns the statuses reachable from the given status.
func Targets(from records.Status) []records.Status {
	targets := adjacency[from]
	cp := make([]records.Status, len(targets))
	copy(cp, targets)
	return cp
}
