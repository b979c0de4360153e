package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fpgalower/internal/engine"
)

func TestTraceSnapshot_Marshal(t *testing.T) {
	r := NewResult()
	r.Trace = []engine.PassEvent{
		{Seq: 1, Flow: "optimize", Pass: "eliminate_linear_activation", Node: "act", Changed: true},
		{Seq: 2, Flow: "oneapi:write", Pass: "make_stamp"},
	}
	r.Digest = "abc"

	data, err := (&TraceSnapshot{ScenarioName: "s", Result: r}).Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "s", decoded["scenario_name"])
	assert.Equal(t, "abc", decoded["digest"])
	trace := decoded["trace"].([]any)
	require.Len(t, trace, 2)
	assert.Equal(t, "act", trace[0].(map[string]any)["node"])
	assert.NotContains(t, trace[1].(map[string]any), "node", "model passes have no node")
}

func TestTraceSnapshot_OmitsEmptyDigest(t *testing.T) {
	data, err := (&TraceSnapshot{ScenarioName: "s", Result: NewResult()}).Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "digest")
}

// Two runs of the same scenario must produce byte-identical snapshots.
func TestGolden_TraceIsDeterministic(t *testing.T) {
	for _, path := range []string{
		"testdata/scenarios/mlp_resource.yaml",
		"testdata/scenarios/conv_winograd.yaml",
		"testdata/scenarios/softmax_rank.yaml",
	} {
		s, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(s.Name, func(t *testing.T) {
			dir := t.TempDir()

			first, err := Run(s)
			require.NoError(t, err)
			require.True(t, first.Pass, "errors: %v", first.Errors)
			require.NoError(t, UpdateGolden(t, dir, s.Name, first))

			second, err := Run(s)
			require.NoError(t, err)
			require.NoError(t, AssertGolden(t, dir, s.Name, second))
		})
	}
}
