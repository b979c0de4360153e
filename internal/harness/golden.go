package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fpgalower/internal/ir"
)

// GoldenDir is where RunWithGolden keeps its golden files.
const GoldenDir = "testdata/golden"

// TraceSnapshot is the golden form of a scenario run: the pass trace and
// the digest of the lowered model.
type TraceSnapshot struct {
	ScenarioName string
	Result       *Result
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	trace := make([]any, len(s.Result.Trace))
	for i, ev := range s.Result.Trace {
		event := map[string]any{
			"seq":     ev.Seq,
			"flow":    ev.Flow,
			"pass":    ev.Pass,
			"changed": ev.Changed,
		}
		if ev.Node != "" {
			event["node"] = ev.Node
		}
		trace[i] = event
	}
	snapshot := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
	if s.Result.Digest != "" {
		snapshot["digest"] = s.Result.Digest
	}
	return ir.MarshalCanonical(snapshot)
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, GoldenDir, scenario.Name, result)
}

// AssertGolden compares a result's trace against the golden file name in
// dir.
func AssertGolden(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := (&TraceSnapshot{ScenarioName: name, Result: result}).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// UpdateGolden writes result as the golden file name in dir.
func UpdateGolden(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := (&TraceSnapshot{ScenarioName: name, Result: result}).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	return g.Update(t, name, data)
}
