package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_RecordsTraceAndDigest(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/mlp_resource.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NotEmpty(t, result.Trace)
	passes := map[string]bool{}
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
		passes[ev.Pass] = true
	}
	assert.True(t, passes["oneapi:init_base_layer"], "trace carries qualified pass names")
	assert.False(t, passes["init_base_layer"])
	assert.NotEmpty(t, result.Digest)
	require.NotNil(t, result.Model)
	assert.True(t, result.Model.AppliedFlows["oneapi:ip"])
}

func TestRun_FailedAssertionIsReported(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/mlp_resource.yaml")
	require.NoError(t, err)
	s.Assertions = []Assertion{{Type: AssertAttribute, Layer: "fc1", Attr: "reuse_factor", Equals: 3}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "fc1.reuse_factor = 3")
	assert.Contains(t, result.Errors[0], "Actual: 12")
}

func TestRun_UnexpectedSuccess(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/mlp_resource.yaml")
	require.NoError(t, err)
	s.ExpectError = "shape"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected shape error, lowering succeeded")
	assert.Empty(t, result.Digest)
}

func TestRun_WrongErrorClass(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/softmax_rank.yaml")
	require.NoError(t, err)
	s.ExpectError = "config"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected config error, got:")
}

func TestRun_StepQuota(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/linear_removed.yaml")
	require.NoError(t, err)
	s.ExpectError = "steps_exceeded"

	result, err := Run(s, WithMaxSteps(0))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownFlow(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/mlp_resource.yaml")
	require.NoError(t, err)
	s.Flow = "oneapi:nope"
	s.ExpectError = "unknown_flow"

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ConfigErrorBeforeLowering(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/mlp_resource.yaml")
	require.NoError(t, err)
	s.Config.IOType = "io_serial"
	s.ExpectError = "config"

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Model)
	assert.Empty(t, result.Trace)
}
