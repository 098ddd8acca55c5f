package statemachine

// Context carries the data a transition needs to be judged by guards and
// applied to the record. The set of implementations is closed; guards
// type-assert the concrete struct they expect.
type Context interface {
	transitionContext()
}

// Automated accompanies automation-driven entry into a processing state.
type Automated struct {
	// Forced marks an explicit operator trigger, which overrides the
	// manual-only and ignore-auto intent guards.
	Forced     bool
	Candidates []string
}

// Completion accompanies entry into stored or stored_incomplete.
type Completion struct {
	ItemKey       string
	MissingFields []string
	// ReplacedKey is the old item key when this completion ends a
	// replacement attempt. Recorded in attempt metadata by the caller.
	ReplacedKey string
}

// Failure accompanies entry into failed or exhausted.
type Failure struct {
	Category  string
	Message   string
	Retryable bool
	// LastTier marks that no strategy tier remains; required to enter
	// exhausted.
	LastTier bool
}

// Selection accompanies entry into awaiting_selection.
type Selection struct {
	Candidates []string
}

// Manual accompanies operator-driven edges (ignore, archive, re-arm).
type Manual struct {
	Reason string
	Forced bool
}

func (Automated) transitionContext()  {}
func (Completion) transitionContext() {}
func (Failure) transitionContext()    {}
func (Selection) transitionContext()  {}
func (Manual) transitionContext()     {}
