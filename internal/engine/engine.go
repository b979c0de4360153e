package engine

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/flow"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/pass"
)

// DefaultMaxSteps is the default maximum number of changes per flow.
const DefaultMaxSteps = 1000

// PassEvent is one executed transform, as reported to a Journal.
type PassEvent struct {
	Seq     int64
	Flow    string
	Pass    string
	Node    string // empty for model passes
	Changed bool
}

// Journal receives pass events. Implemented by store.Store.
type Journal interface {
	RecordPass(ctx context.Context, runID string, ev PassEvent) error
}

// Engine resolves flows and runs their passes over a model.
//
// INVARIANTS:
//   - Passes run one at a time on the caller's goroutine
//   - Flows run in resolved order, each at most once per model
//   - Every change counts against the flow's step quota
type Engine struct {
	passes   *pass.Registry
	flows    *flow.Registry
	clock    *Clock
	journal  Journal
	runID    string
	maxSteps int
	logger   *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxSteps sets the maximum number of changes per flow.
//
// Default: 1000 steps (DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithJournal reports pass events under runID.
func WithJournal(j Journal, runID string) EngineOption {
	return func(e *Engine) {
		e.journal = j
		e.runID = runID
	}
}

// WithClock uses a pre-configured clock, e.g. to continue numbering.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine over the given registries.
func New(passes *pass.Registry, flows *flow.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		passes:   passes,
		flows:    flows,
		clock:    NewClock(),
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxSteps returns the per-flow step quota.
func (e *Engine) MaxSteps() int { return e.maxSteps }

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock { return e.clock }

// Apply runs flowName and every flow it requires on pc.Model. Flows
// already recorded in Model.AppliedFlows are skipped. The first error
// aborts the run; no partial recovery is attempted.
func (e *Engine) Apply(ctx context.Context, pc *pass.Context, flowName string) error {
	flows, err := e.flows.ResolveFlows(flowName)
	if err != nil {
		return err
	}
	if pc.Model.AppliedFlows == nil {
		pc.Model.AppliedFlows = make(map[string]bool)
	}
	if pc.Logger == nil {
		pc.Logger = e.logger
	}

	for _, f := range flows {
		if pc.Model.AppliedFlows[f.Name] {
			e.logger.Debug("flow already applied", "flow", f.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runFlow(ctx, pc, f); err != nil {
			return errors.Wrapf(err, "flow %s", f.Name)
		}
		pc.Model.AppliedFlows[f.Name] = true
	}
	return nil
}

// scheduled is a pass under the qualified name its flow lists it by.
type scheduled struct {
	name string
	pass pass.Pass
}

func (e *Engine) resolvePasses(f *flow.Flow) ([]scheduled, error) {
	names := f.Passes()
	out := make([]scheduled, 0, len(names))
	for _, name := range names {
		p, ok := e.passes.Get(name)
		if !ok {
			return nil, &flow.UnknownPassError{Flow: f.Name, Pass: name}
		}
		out = append(out, scheduled{name: name, pass: p})
	}
	return out, nil
}

// runFlow sweeps the flow's passes until a sweep changes nothing.
func (e *Engine) runFlow(ctx context.Context, pc *pass.Context, f *flow.Flow) error {
	passes, err := e.resolvePasses(f)
	if err != nil {
		return err
	}
	if len(passes) == 0 {
		return nil
	}
	e.logger.Debug("running flow", "flow", f.Name, "passes", len(passes))

	quota := NewQuotaEnforcer(e.maxSteps)
	modelDone := make(map[string]bool)

	for {
		restart, err := e.sweep(ctx, pc, f, passes, modelDone, quota)
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}
	}
}

// sweep makes one pass over the flow. It returns true when a node pass
// changed the graph and the flow must start over.
func (e *Engine) sweep(
	ctx context.Context,
	pc *pass.Context,
	f *flow.Flow,
	passes []scheduled,
	modelDone map[string]bool,
	quota *QuotaEnforcer,
) (bool, error) {
	for _, sp := range passes {
		name := sp.name
		switch p := sp.pass.(type) {
		case pass.ModelPass:
			if modelDone[name] {
				continue
			}
			changed, err := p.TransformModel(ctx, pc)
			if err != nil {
				return false, errors.Wrapf(err, "pass %s", name)
			}
			if err := e.record(ctx, f.Name, name, "", changed); err != nil {
				return false, err
			}
			if changed {
				modelDone[name] = true
				if err := quota.Check(f.Name, name); err != nil {
					return false, err
				}
			}

		case pass.NodePass:
			// Snapshot: a transform may edit the node list.
			nodes := append([]*ir.LayerNode(nil), pc.Model.Nodes...)
			for _, node := range nodes {
				if !p.Match(node) {
					continue
				}
				changed, err := p.Transform(ctx, pc, node)
				if err != nil {
					return false, errors.Wrapf(err, "pass %s on layer %s", name, node.Name)
				}
				if err := e.record(ctx, f.Name, name, node.Name, changed); err != nil {
					return false, err
				}
				if changed {
					if err := quota.Check(f.Name, name); err != nil {
						return false, err
					}
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func (e *Engine) record(ctx context.Context, flowName, passName, node string, changed bool) error {
	ev := PassEvent{
		Seq:     e.clock.Next(),
		Flow:    flowName,
		Pass:    passName,
		Node:    node,
		Changed: changed,
	}
	e.logger.Debug("pass executed", "seq", ev.Seq, "flow", flowName, "pass", passName, "layer", node, "changed", changed)
	if e.journal == nil {
		return nil
	}
	if err := e.journal.RecordPass(ctx, e.runID, ev); err != nil {
		return errors.Wrap(err, "record pass event")
	}
	return nil
}
