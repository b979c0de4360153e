package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/engine"
)

// Run is one journaled lowering run.
type Run struct {
	ID            string
	Model         string
	Backend       string
	Flow          string
	Config        string
	Status        string
	Error         string
	Digest        string
	Stamp         string
	EngineVersion string
	IRVersion     string
}

// Layer is the snapshot of one lowered layer.
type Layer struct {
	Index      int
	Name       string
	Kind       string
	Digest     string
	Attributes map[string]any
}

// RunNotFoundError is returned when a run id is unknown, or, with Running
// set, when it is not in the running state.
type RunNotFoundError struct {
	ID      string
	Running bool
}

func (e *RunNotFoundError) Error() string {
	if e.Running {
		return fmt.Sprintf("run %s not found or already finished", e.ID)
	}
	return fmt.Sprintf("run %s not found", e.ID)
}

// IsRunNotFoundError reports whether err is a RunNotFoundError.
func IsRunNotFoundError(err error) bool {
	var nf *RunNotFoundError
	return errors.As(err, &nf)
}

const runColumns = `id, model, backend, flow, config, status, error, digest, stamp, engine_version, ir_version`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Model, &r.Backend, &r.Flow, &r.Config, &r.Status, &r.Error,
		&r.Digest, &r.Stamp, &r.EngineVersion, &r.IRVersion)
	return r, err
}

// ReadRun returns one run.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, &RunNotFoundError{ID: id}
	}
	if err != nil {
		return Run{}, errors.Wrapf(err, "read run %s", id)
	}
	return r, nil
}

// ListRuns returns all runs in insertion order.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY rowid ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return runs, nil
}

// ReadPassEvents returns the events of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run recorded no events.
func (s *Store) ReadPassEvents(ctx context.Context, runID string) ([]engine.PassEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, flow, pass, node, changed
		FROM pass_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query pass events")
	}
	defer rows.Close()

	events := []engine.PassEvent{}
	for rows.Next() {
		var ev engine.PassEvent
		var changed int
		if err := rows.Scan(&ev.Seq, &ev.Flow, &ev.Pass, &ev.Node, &changed); err != nil {
			return nil, errors.Wrap(err, "scan pass event")
		}
		ev.Changed = changed != 0
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate pass events")
	}
	return events, nil
}

// PassSummary counts the events and changes of one pass in a run.
type PassSummary struct {
	Pass    string
	Events  int
	Changes int
}

// SummarizePasses aggregates the events of a run per pass, ordered by the
// first event of each pass.
func (s *Store) SummarizePasses(ctx context.Context, runID string) ([]PassSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pass, COUNT(*), SUM(changed)
		FROM pass_events
		WHERE run_id = ?
		GROUP BY pass
		ORDER BY MIN(seq) ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query pass summary")
	}
	defer rows.Close()

	out := []PassSummary{}
	for rows.Next() {
		var ps PassSummary
		if err := rows.Scan(&ps.Pass, &ps.Events, &ps.Changes); err != nil {
			return nil, errors.Wrap(err, "scan pass summary")
		}
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate pass summary")
	}
	return out, nil
}

// ReadLayers returns the layer snapshots of a finished run in graph order.
func (s *Store) ReadLayers(ctx context.Context, runID string) ([]Layer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, name, kind, digest, attributes
		FROM layers
		WHERE run_id = ?
		ORDER BY idx ASC, name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query layers")
	}
	defer rows.Close()

	layers := []Layer{}
	for rows.Next() {
		var l Layer
		var attrs string
		if err := rows.Scan(&l.Index, &l.Name, &l.Kind, &l.Digest, &attrs); err != nil {
			return nil, errors.Wrap(err, "scan layer")
		}
		if l.Attributes, err = unmarshalAttributes(attrs); err != nil {
			return nil, errors.Wrapf(err, "layer %s", l.Name)
		}
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate layers")
	}
	return layers, nil
}
