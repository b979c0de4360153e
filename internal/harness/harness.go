package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"github.com/roach88/fpgalower/internal/backend"
	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/flow"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/loader"
	"github.com/roach88/fpgalower/internal/lowering"
	"github.com/roach88/fpgalower/internal/schema"
	"github.com/roach88/fpgalower/internal/store"
	"github.com/roach88/fpgalower/internal/testutil"
)

// errorClasses maps expect_error values to error predicates.
var errorClasses = map[string]func(error) bool{
	"config":            config.IsConfigError,
	"shape":             lowering.IsShapeError,
	"missing_attribute": lowering.IsMissingAttributeError,
	"unknown_attribute": func(err error) bool {
		var e *ir.UnknownAttributeError
		return errors.As(err, &e)
	},
	"invalid_value": func(err error) bool {
		var e *schema.InvalidValueError
		return errors.As(err, &e)
	},
	"steps_exceeded": engine.IsStepsExceededError,
	"unknown_flow":   flow.IsUnknownFlowError,
	"load":           loader.IsLoadError,
}

// ErrorClasses returns the accepted expect_error values, sorted.
func ErrorClasses() []string {
	out := make([]string, 0, len(errorClasses))
	for k := range errorClasses {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Option configures a scenario run.
type Option func(*runOptions)

type runOptions struct {
	logger   *slog.Logger
	maxSteps int
}

// WithLogger sets the logger passed to the backend. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// WithMaxSteps sets the engine step quota.
func WithMaxSteps(n int) Option {
	return func(o *runOptions) { o.maxSteps = n }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal and filesystem.
// A returned error means the harness itself could not run; lowering
// failures are reported in the result.
//
// Execution flow:
//  1. Load the model and configuration
//  2. Apply the flow with the journal attached
//  3. Compare the outcome with expect_error
//  4. Evaluate assertions against the lowered model and trace
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxSteps: engine.DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&o)
	}
	ctx := context.Background()
	result := NewResult()

	m, cfg, err := loadInputs(scenario)
	if err != nil {
		checkOutcome(result, scenario, err)
		return result, nil
	}
	result.Model = m

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	b, err := backend.NewOneAPI(
		backend.WithLogger(o.logger),
		backend.WithFs(afero.NewMemMapFs()),
		backend.WithStampGenerator(testutil.NewFixedStampGenerator("")),
		backend.WithMaxSteps(o.maxSteps),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	flowName := scenario.Flow
	if flowName == "" {
		flowName = b.DefaultFlow()
	}
	cfgYAML, err := cfg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	runID := scenario.Name
	if err := st.BeginRun(ctx, store.Run{
		ID: runID, Model: m.Name, Backend: b.Name(), Flow: flowName, Config: string(cfgYAML),
	}); err != nil {
		return nil, err
	}

	lowerErr := b.Run(ctx, m, cfg, flowName, engine.WithJournal(st, runID))
	if err := st.FinishRun(ctx, runID, m, lowerErr); err != nil {
		return nil, err
	}
	if result.Trace, err = st.ReadPassEvents(ctx, runID); err != nil {
		return nil, err
	}
	// A digest is only meaningful for a scenario that expects to lower.
	if lowerErr == nil && scenario.ExpectError == "" {
		run, err := st.ReadRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		result.Digest = run.Digest
	}

	checkOutcome(result, scenario, lowerErr)
	if lowerErr == nil {
		for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
			result.AddError(msg)
		}
	}
	return result, nil
}

func loadInputs(scenario *Scenario) (*ir.Model, *config.Config, error) {
	m, err := loader.New(nil).LoadModel(scenario.Model)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.New(scenario.Config)
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// checkOutcome compares err with the scenario's expect_error.
func checkOutcome(result *Result, scenario *Scenario, err error) {
	switch {
	case scenario.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("lowering failed: %v", err))
	case scenario.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("expected %s error, lowering succeeded", scenario.ExpectError))
	case scenario.ExpectError != "" && !errorClasses[scenario.ExpectError](err):
		result.AddError(fmt.Sprintf("expected %s error, got: %v", scenario.ExpectError, err))
	}
}
