package store

import (
	"context"
	"fmt"
	"time"
)

// WriteRun inserts a run record. Uses ON CONFLICT(id) DO NOTHING, so
// writing the same run twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	labels, err := marshalLabels(run.Labels)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	var finished any
	if run.FinishedAt != nil {
		finished = formatTime(*run.FinishedAt)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, root, started_at, finished_at, engine_version, ir_version, labels, units, proposals, applied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Root,
		formatTime(run.StartedAt),
		finished,
		run.EngineVersion,
		run.IRVersion,
		labels,
		run.Units,
		run.Proposals,
		boolInt(run.Applied),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun stamps a run's end time and proposal count.
func (s *Store) FinishRun(ctx context.Context, id string, at time.Time, applied bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?,
		    applied = ?,
		    proposals = (SELECT COUNT(*) FROM proposals WHERE run_id = ?)
		WHERE id = ?
	`, formatTime(at), boolInt(applied), id, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// WriteProposal inserts a proposal and reports whether it was new.
// Uses ON CONFLICT(run_id, id) DO NOTHING: the same content-addressed
// proposal is recorded once per run.
//
// Note: the run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteProposal(ctx context.Context, p Proposal) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals
		(run_id, id, seq, unit, target, kind, existing, level, label, source_hash, applied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`,
		p.RunID,
		p.ID,
		p.Seq,
		p.Unit,
		p.Target,
		p.Kind,
		p.Existing.String(),
		p.Level.String(),
		p.Label,
		p.SourceHash,
		boolInt(p.Applied),
	)
	if err != nil {
		return false, fmt.Errorf("write proposal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write proposal: rows affected: %w", err)
	}
	return n > 0, nil
}

// WriteProposals writes a run's proposals in one transaction.
func (s *Store) WriteProposals(ctx context.Context, ps []Proposal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write proposals: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO proposals
		(run_id, id, seq, unit, target, kind, existing, level, label, source_hash, applied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write proposals: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range ps {
		_, err := stmt.ExecContext(ctx,
			p.RunID, p.ID, p.Seq, p.Unit, p.Target, p.Kind,
			p.Existing.String(), p.Level.String(), p.Label, p.SourceHash, boolInt(p.Applied),
		)
		if err != nil {
			return fmt.Errorf("write proposals: %s: %w", p.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write proposals: commit: %w", err)
	}
	return nil
}
