package cli

import (
	"context"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/store"
)

// countingJournal counts pass events and forwards them to next, if set.
type countingJournal struct {
	next    engine.Journal
	events  int
	changes int
}

func (j *countingJournal) RecordPass(ctx context.Context, runID string, ev engine.PassEvent) error {
	j.events++
	if ev.Changed {
		j.changes++
	}
	if j.next == nil {
		return nil
	}
	return j.next.RecordPass(ctx, runID, ev)
}

// runJournal is the journal of one command invocation. Without a
// database it only counts events.
type runJournal struct {
	st      *store.Store
	runID   string
	counter *countingJournal
}

// openJournal opens the database named by opts, if any, and begins a run.
func openJournal(ctx context.Context, opts *ModelOptions, m *ir.Model, cfg *config.Config, backendName, flowName string) (*runJournal, error) {
	j := &runJournal{counter: &countingJournal{}}
	if opts.Database == "" {
		return j, nil
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, err
	}
	gen := opts.RunIDs
	if gen == nil {
		gen = engine.UUIDv7Generator{}
	}
	cfgYAML, err := cfg.Marshal()
	if err != nil {
		st.Close()
		return nil, err
	}
	runID := gen.Generate()
	if err := st.BeginRun(ctx, store.Run{
		ID: runID, Model: m.Name, Backend: backendName, Flow: flowName, Config: string(cfgYAML),
	}); err != nil {
		st.Close()
		return nil, err
	}

	j.st = st
	j.runID = runID
	j.counter.next = st
	return j, nil
}

// option attaches the journal to an engine run.
func (j *runJournal) option() engine.EngineOption {
	return engine.WithJournal(j.counter, j.runID)
}

// finish records the outcome of the run.
func (j *runJournal) finish(ctx context.Context, m *ir.Model, runErr error) error {
	if j.st == nil {
		return nil
	}
	return j.st.FinishRun(ctx, j.runID, m, runErr)
}

func (j *runJournal) Close() error {
	if j.st == nil {
		return nil
	}
	return j.st.Close()
}
