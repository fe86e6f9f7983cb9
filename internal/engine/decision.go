package engine

import "github.com/roach88/safeprop/internal/safety"

// Action is what the engine proposes for a declaration.
type Action string

const (
	ActionNone     Action = "none"
	ActionAnnotate Action = "annotate"
)

// Reason explains a decision. It is carried for logging and tests only.
type Reason string

const (
	ReasonTestCode        Reason = "test_code"
	ReasonAnonymous       Reason = "anonymous"
	ReasonVoid            Reason = "void"
	ReasonSynthetic       Reason = "synthetic"
	ReasonDeclared        Reason = "declared"
	ReasonAbstract        Reason = "abstract"
	ReasonNoReturns       Reason = "no_returns"
	ReasonCovered         Reason = "covered"
	ReasonInsufficient    Reason = "insufficient"
	ReasonNeverSafe       Reason = "never_safe"
	ReasonMoreRestrictive Reason = "more_restrictive"
)

// Decision is the outcome for one declaration.
type Decision struct {
	Action   Action       `json:"action"`
	Reason   Reason       `json:"reason"`
	Existing safety.Level `json:"existing"`
	Computed safety.Level `json:"computed"`
}

// Annotates reports whether the decision proposes an edit.
func (d Decision) Annotates() bool { return d.Action == ActionAnnotate }

func skip(reason Reason) Decision {
	return Decision{Action: ActionNone, Reason: reason}
}

// Decide compares the label a declaration already carries with the level
// computed for it. Only DO_NOT_LOG and UNSAFE are ever proposed: the engine
// does not claim SAFE on anyone's behalf, and it leaves an existing label in
// place whenever that label already covers the computed level.
func Decide(existing, computed safety.Level) Decision {
	d := Decision{Action: ActionNone, Existing: existing, Computed: computed}
	if existing != safety.Unknown && safety.Allows(existing, computed) {
		d.Reason = ReasonCovered
		return d
	}
	switch computed {
	case safety.Unknown:
		d.Reason = ReasonInsufficient
	case safety.Safe:
		d.Reason = ReasonNeverSafe
	case safety.DoNotLog, safety.Unsafe:
		d.Action = ActionAnnotate
		d.Reason = ReasonMoreRestrictive
	}
	return d
}
