package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/safeprop/internal/safety"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

const runColumns = `id, root, started_at, finished_at, engine_version, ir_version, labels, units, proposals, applied`

// ReadRun returns one run by ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadProposals returns a run's proposals in the order they were made.
func (s *Store) ReadProposals(ctx context.Context, runID string) ([]Proposal, error) {
	return s.queryProposals(ctx, `
		SELECT run_id, id, seq, unit, target, kind, existing, level, label, source_hash, applied
		FROM proposals
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
}

// ProposalHistory returns every recorded instance of a proposal ID, oldest
// run first.
func (s *Store) ProposalHistory(ctx context.Context, id string) ([]Proposal, error) {
	return s.queryProposals(ctx, `
		SELECT p.run_id, p.id, p.seq, p.unit, p.target, p.kind, p.existing, p.level, p.label, p.source_hash, p.applied
		FROM proposals p
		JOIN runs r ON r.id = p.run_id
		WHERE p.id = ?
		ORDER BY r.started_at ASC, r.id COLLATE BINARY ASC
	`, id)
}

func (s *Store) queryProposals(ctx context.Context, query string, args ...any) ([]Proposal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read proposals: %w", err)
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		var p Proposal
		var existing, level string
		var applied int
		if err := rows.Scan(&p.RunID, &p.ID, &p.Seq, &p.Unit, &p.Target, &p.Kind, &existing, &level, &p.Label, &p.SourceHash, &applied); err != nil {
			return nil, fmt.Errorf("read proposals: scan: %w", err)
		}
		if p.Existing, err = safety.Parse(existing); err != nil {
			return nil, fmt.Errorf("read proposals: %w", err)
		}
		if p.Level, err = safety.Parse(level); err != nil {
			return nil, fmt.Errorf("read proposals: %w", err)
		}
		p.Applied = applied != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read proposals: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var started, labels string
	var finished sql.NullString
	var applied int
	err := row.Scan(&run.ID, &run.Root, &started, &finished, &run.EngineVersion, &run.IRVersion, &labels, &run.Units, &run.Proposals, &applied)
	if err != nil {
		return Run{}, err
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return Run{}, err
		}
		run.FinishedAt = &t
	}
	if run.Labels, err = unmarshalLabels(labels); err != nil {
		return Run{}, err
	}
	run.Applied = applied != 0
	return run, nil
}
