package harness

import "github.com/roach88/safeprop/internal/store"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and principle held.
	Pass bool `json:"pass"`

	// RunID identifies the run in the scenario's in-memory history.
	RunID string `json:"run_id"`

	// Proposals are read back from the store, in proposal order.
	Proposals []store.Proposal `json:"proposals"`

	// Sources holds the rewritten text of every unit that had edits.
	Sources map[string]string `json:"sources,omitempty"`

	// Edited lists the units that had edits, sorted.
	Edited []string `json:"edited,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Proposals: []store.Proposal{},
		Sources:   map[string]string{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Proposal returns the proposal for target, if any. When unit is set the
// proposal must also come from that unit.
func (r *Result) Proposal(unit, target string) (store.Proposal, bool) {
	for _, p := range r.Proposals {
		if p.Target == target && (unit == "" || p.Unit == unit) {
			return p, true
		}
	}
	return store.Proposal{}, false
}
