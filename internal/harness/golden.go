package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/safeprop/internal/ir"
)

// Snapshot is the golden form of a scenario run: the proposals in canonical
// JSON, with content-addressed IDs so a change in any hashed input shows up.
type Snapshot struct {
	ScenarioName string
	RunID        string
	Result       *Result
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	proposals := make([]any, len(s.Result.Proposals))
	for i, p := range s.Result.Proposals {
		proposals[i] = map[string]any{
			"id":       p.ID,
			"seq":      p.Seq,
			"unit":     p.Unit,
			"target":   p.Target,
			"kind":     p.Kind,
			"existing": p.Existing.String(),
			"level":    p.Level.String(),
			"label":    p.Label,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"proposals":     proposals,
	}
}

// RunWithGolden executes a scenario and compares its proposals against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario could not run. A golden mismatch fails
// t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	data, err := SnapshotBytes(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// SnapshotBytes renders the golden form of a result.
func SnapshotBytes(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: name, RunID: result.RunID, Result: result}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
