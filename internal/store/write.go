package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/ir"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var _ engine.Journal = (*Store)(nil)

// BeginRun records a new run in the running state. Config is the YAML form
// of the configuration the run uses.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("begin run: empty run id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, model, backend, flow, config, status, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Model,
		run.Backend,
		run.Flow,
		run.Config,
		StatusRunning,
		ir.EngineVersion,
		ir.IRVersion,
	)
	return errors.Wrapf(err, "begin run %s", run.ID)
}

// RecordPass appends one pass event. Implements engine.Journal.
// Uses ON CONFLICT DO NOTHING so a replayed event is ignored.
func (s *Store) RecordPass(ctx context.Context, runID string, ev engine.PassEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pass_events
		(run_id, seq, flow, pass, node, changed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		ev.Seq,
		ev.Flow,
		ev.Pass,
		ev.Node,
		boolToInt(ev.Changed),
	)
	return errors.Wrapf(err, "record pass %s", ev.Pass)
}

// FinishRun closes a run. On success the lowered layers of m are
// snapshotted together with the model digest and stamp; on failure only
// the error text is kept.
func (s *Store) FinishRun(ctx context.Context, runID string, m *ir.Model, runErr error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "finish run: begin tx")
	}
	defer tx.Rollback() // No-op if committed

	if runErr != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET status = ?, error = ? WHERE id = ? AND status = ?
		`, StatusFailed, runErr.Error(), runID, StatusRunning)
		if err != nil {
			return errors.Wrapf(err, "finish run %s", runID)
		}
		if err := expectOneRow(res, runID); err != nil {
			return err
		}
		return errors.Wrap(tx.Commit(), "finish run: commit")
	}

	digest, err := ir.Digest(m)
	if err != nil {
		return errors.Wrapf(err, "finish run %s", runID)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, digest = ?, stamp = ? WHERE id = ? AND status = ?
	`, StatusSucceeded, digest, m.Stamp, runID, StatusRunning)
	if err != nil {
		return errors.Wrapf(err, "finish run %s", runID)
	}
	if err := expectOneRow(res, runID); err != nil {
		return err
	}

	for _, n := range m.Nodes {
		attrs, err := marshalAttributes(n)
		if err != nil {
			return err
		}
		layerDigest, err := ir.LayerDigest(n)
		if err != nil {
			return errors.Wrapf(err, "finish run %s", runID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO layers (run_id, idx, name, kind, digest, attributes)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, n.Index, n.Name, string(n.Kind), layerDigest, attrs); err != nil {
			return errors.Wrapf(err, "snapshot layer %s", n.Name)
		}
	}
	return errors.Wrap(tx.Commit(), "finish run: commit")
}

func expectOneRow(res interface{ RowsAffected() (int64, error) }, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "finish run %s", runID)
	}
	if n != 1 {
		return &RunNotFoundError{ID: runID, Running: true}
	}
	return nil
}
