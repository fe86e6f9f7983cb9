package harness

import (
	"fmt"

	"github.com/roach88/safeprop/internal/safety"
)

// Principle is a property every analysis result must have, whatever the
// program.
type Principle struct {
	Name  string
	Check func(*Result) []string
}

// Principles are checked after every scenario.
var Principles = []Principle{
	{Name: "restrictive_only", Check: checkRestrictiveOnly},
	{Name: "never_lowers", Check: checkNeverLowers},
	{Name: "one_label_per_target", Check: checkOneLabelPerTarget},
	{Name: "stable_order", Check: checkStableOrder},
}

// CheckPrinciples runs every principle and prefixes failures with its name.
func CheckPrinciples(result *Result) []string {
	var errs []string
	for _, p := range Principles {
		for _, msg := range p.Check(result) {
			errs = append(errs, fmt.Sprintf("principle %s: %s", p.Name, msg))
		}
	}
	return errs
}

// checkRestrictiveOnly: only DO_NOT_LOG and UNSAFE are ever written.
func checkRestrictiveOnly(r *Result) []string {
	var errs []string
	for _, p := range r.Proposals {
		if p.Level != safety.DoNotLog && p.Level != safety.Unsafe {
			errs = append(errs, fmt.Sprintf("%s proposed at %s", p.Target, p.Level))
		}
	}
	return errs
}

// checkNeverLowers: a proposal replaces an existing label only with a
// strictly more restrictive one.
func checkNeverLowers(r *Result) []string {
	var errs []string
	for _, p := range r.Proposals {
		if p.Existing != safety.Unknown && safety.Allows(p.Existing, p.Level) {
			errs = append(errs, fmt.Sprintf("%s: %s replaced by %s", p.Target, p.Existing, p.Level))
		}
	}
	return errs
}

func checkOneLabelPerTarget(r *Result) []string {
	var errs []string
	seen := map[string]bool{}
	for _, p := range r.Proposals {
		key := p.Unit + "\x00" + p.Target
		if seen[key] {
			errs = append(errs, fmt.Sprintf("%s proposed more than once", p.Target))
		}
		seen[key] = true
	}
	return errs
}

func checkStableOrder(r *Result) []string {
	for i, p := range r.Proposals {
		if p.Seq != i {
			return []string{fmt.Sprintf("proposal %d has seq %d", i, p.Seq)}
		}
	}
	return nil
}
