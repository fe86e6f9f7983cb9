package store

import (
	"fmt"
	"time"

	"github.com/roach88/safeprop/internal/engine"
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// Run is one invocation of the analyzer over a set of documents.
type Run struct {
	ID            string        `json:"id"`
	Root          string        `json:"root"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	EngineVersion string        `json:"engine_version"`
	IRVersion     string        `json:"ir_version"`
	Labels        safety.Labels `json:"labels"`
	Units         int           `json:"units"`
	Proposals     int           `json:"proposals"`
	Applied       bool          `json:"applied"`
}

// Proposal is one "annotate target with label" decision recorded in a run.
type Proposal struct {
	RunID      string       `json:"run_id"`
	ID         string       `json:"id"`
	Seq        int          `json:"seq"`
	Unit       string       `json:"unit"`
	Target     string       `json:"target"`
	Kind       string       `json:"kind"`
	Existing   safety.Level `json:"existing"`
	Level      safety.Level `json:"level"`
	Label      string       `json:"label"`
	SourceHash string       `json:"source_hash"`
	Applied    bool         `json:"applied"`
}

// NewProposal records f, the seq-th finding of run, against unit u. The
// proposal ID covers the unit's source text, so it changes when the source
// does.
func NewProposal(run string, seq int, u *ir.Unit, f engine.Finding, labels safety.Labels) (Proposal, error) {
	label := labels.WithDefaults().Name(f.Level)
	if label == "" {
		return Proposal{}, fmt.Errorf("new proposal: no label for level %s", f.Level)
	}
	hash := ir.SourceHash(u.Source)
	id, err := ir.ProposalID(u.Path, f.Target, label, hash)
	if err != nil {
		return Proposal{}, fmt.Errorf("new proposal: %w", err)
	}
	return Proposal{
		RunID:      run,
		ID:         id,
		Seq:        seq,
		Unit:       u.Path,
		Target:     f.Target,
		Kind:       string(f.Kind),
		Existing:   f.Existing,
		Level:      f.Level,
		Label:      label,
		SourceHash: hash,
	}, nil
}
