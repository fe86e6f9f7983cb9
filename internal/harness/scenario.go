package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/safeprop/internal/config"
	"github.com/roach88/safeprop/internal/safety"
)

// Scenario is one conformance case: a declaration-graph program and what
// the analyzer must propose for it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path of a CUE declaration-graph document, relative to
	// the scenario file.
	Program string `yaml:"program,omitempty"`

	// Document is an inline CUE document, used instead of Program.
	Document string `yaml:"document,omitempty"`

	// Config overlays the default configuration for this scenario only.
	// Store and workers are ignored: scenarios always run in memory.
	Config config.Config `yaml:"config,omitempty"`

	// ExpectProposals must each match a proposal of the run.
	ExpectProposals []ExpectProposal `yaml:"expect_proposals,omitempty"`

	// ExpectNoProposal lists targets that must not be proposed.
	ExpectNoProposal []string `yaml:"expect_no_proposal,omitempty"`

	// ExpectSource checks rewritten unit text.
	ExpectSource []ExpectSource `yaml:"expect_source,omitempty"`

	// Exact requires ExpectProposals to list every proposal of the run.
	Exact bool `yaml:"exact,omitempty"`

	// baseDir resolves source_file references in the program.
	baseDir string
}

// ExpectProposal matches a proposal by target and level.
type ExpectProposal struct {
	Target string       `yaml:"target"`
	Level  safety.Level `yaml:"level"`

	// Unit narrows the match when the same target name appears in several
	// units.
	Unit string `yaml:"unit,omitempty"`
}

// ExpectSource checks a unit's text after all edits are applied.
type ExpectSource struct {
	Unit        string   `yaml:"unit"`
	Contains    []string `yaml:"contains,omitempty"`
	NotContains []string `yaml:"not_contains,omitempty"`

	// Unchanged requires that no edit touched the unit.
	Unchanged bool `yaml:"unchanged,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Program paths are
// resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML. baseDir resolves relative paths.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.baseDir = baseDir
	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(baseDir, scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	var out []*Scenario
	names := map[string]string{}
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("scenario name %q used by both %s and %s", s.Name, prev, p)
		}
		names[s.Name] = p
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Program == "" && s.Document == "":
		return fmt.Errorf("one of program or document is required")
	case s.Program != "" && s.Document != "":
		return fmt.Errorf("program and document are mutually exclusive")
	case s.Program != "":
		if _, err := os.Stat(s.Program); os.IsNotExist(err) {
			return fmt.Errorf("program file not found: %s", s.Program)
		}
	}

	if len(s.ExpectProposals) == 0 && len(s.ExpectNoProposal) == 0 && len(s.ExpectSource) == 0 && !s.Exact {
		return fmt.Errorf("at least one expectation is required")
	}

	for i, e := range s.ExpectProposals {
		if e.Target == "" {
			return fmt.Errorf("expect_proposals[%d]: target is required", i)
		}
		if e.Level == safety.Unknown || e.Level == safety.Safe {
			return fmt.Errorf("expect_proposals[%d]: %s is never proposed", i, e.Level)
		}
	}
	for i, target := range s.ExpectNoProposal {
		if target == "" {
			return fmt.Errorf("expect_no_proposal[%d]: target is required", i)
		}
	}
	for i, e := range s.ExpectSource {
		if e.Unit == "" {
			return fmt.Errorf("expect_source[%d]: unit is required", i)
		}
		if len(e.Contains) == 0 && len(e.NotContains) == 0 && !e.Unchanged {
			return fmt.Errorf("expect_source[%d]: contains, not_contains or unchanged is required", i)
		}
	}
	return nil
}
