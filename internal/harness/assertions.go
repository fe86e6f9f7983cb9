package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/safeprop/internal/store"
)

// AssertionError is returned when an expectation fails.
// It includes the run's proposals to help debug the failure.
type AssertionError struct {
	Type      string // Expectation kind for categorization
	Expected  string // Human-readable expected outcome
	Actual    string // Human-readable actual outcome
	Proposals []store.Proposal
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nProposals:\n")
	if len(e.Proposals) == 0 {
		fmt.Fprintf(&buf, "  (none)\n")
	}
	for _, p := range e.Proposals {
		fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", p.Seq, p.Target, p.Existing, p.Level)
	}
	return buf.String()
}

// Expectation kinds.
const (
	ExpectKindProposal   = "expect_proposals"
	ExpectKindNoProposal = "expect_no_proposal"
	ExpectKindSource     = "expect_source"
	ExpectKindExact      = "exact"
)

// EvaluateExpectations checks a scenario's expectations against a result
// and returns one message per failure.
func EvaluateExpectations(result *Result, s *Scenario) []string {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	for _, e := range s.ExpectProposals {
		add(assertProposes(result, e))
	}
	for _, target := range s.ExpectNoProposal {
		add(assertNoProposal(result, target))
	}
	for _, e := range s.ExpectSource {
		add(assertSource(result, e))
	}
	if s.Exact {
		add(assertExact(result, s.ExpectProposals))
	}
	return errs
}

func assertProposes(result *Result, e ExpectProposal) error {
	p, ok := result.Proposal(e.Unit, e.Target)
	if !ok {
		return &AssertionError{
			Type:      ExpectKindProposal,
			Expected:  fmt.Sprintf("%s proposed at %s", e.Target, e.Level),
			Actual:    "no proposal",
			Proposals: result.Proposals,
		}
	}
	if p.Level != e.Level {
		return &AssertionError{
			Type:      ExpectKindProposal,
			Expected:  fmt.Sprintf("%s proposed at %s", e.Target, e.Level),
			Actual:    fmt.Sprintf("proposed at %s", p.Level),
			Proposals: result.Proposals,
		}
	}
	return nil
}

func assertNoProposal(result *Result, target string) error {
	if p, ok := result.Proposal("", target); ok {
		return &AssertionError{
			Type:      ExpectKindNoProposal,
			Expected:  fmt.Sprintf("no proposal for %s", target),
			Actual:    fmt.Sprintf("proposed at %s", p.Level),
			Proposals: result.Proposals,
		}
	}
	return nil
}

func assertSource(result *Result, e ExpectSource) error {
	src, ok := result.Sources[e.Unit]
	if !ok {
		return &AssertionError{
			Type:      ExpectKindSource,
			Expected:  fmt.Sprintf("source text for %s", e.Unit),
			Actual:    "unit has no source",
			Proposals: result.Proposals,
		}
	}
	if e.Unchanged && slices.Contains(result.Edited, e.Unit) {
		return &AssertionError{
			Type:      ExpectKindSource,
			Expected:  fmt.Sprintf("%s unchanged", e.Unit),
			Actual:    fmt.Sprintf("edited:\n%s", src),
			Proposals: result.Proposals,
		}
	}
	for _, want := range e.Contains {
		if !strings.Contains(src, want) {
			return &AssertionError{
				Type:      ExpectKindSource,
				Expected:  fmt.Sprintf("%s contains %q", e.Unit, want),
				Actual:    src,
				Proposals: result.Proposals,
			}
		}
	}
	for _, unwanted := range e.NotContains {
		if strings.Contains(src, unwanted) {
			return &AssertionError{
				Type:      ExpectKindSource,
				Expected:  fmt.Sprintf("%s does not contain %q", e.Unit, unwanted),
				Actual:    src,
				Proposals: result.Proposals,
			}
		}
	}
	return nil
}

// assertExact checks that no proposal was made beyond those expected.
func assertExact(result *Result, expected []ExpectProposal) error {
	var extra []string
	for _, p := range result.Proposals {
		listed := slices.ContainsFunc(expected, func(e ExpectProposal) bool {
			return e.Target == p.Target && (e.Unit == "" || e.Unit == p.Unit)
		})
		if !listed {
			extra = append(extra, p.Target)
		}
	}
	if len(extra) > 0 {
		return &AssertionError{
			Type:      ExpectKindExact,
			Expected:  fmt.Sprintf("exactly %d proposals", len(expected)),
			Actual:    fmt.Sprintf("unexpected proposals for %s", strings.Join(extra, ", ")),
			Proposals: result.Proposals,
		}
	}
	return nil
}
