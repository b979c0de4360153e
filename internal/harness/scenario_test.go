package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.cue"), []byte(`name: "m"`), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/mlp_resource.yaml")
	require.NoError(t, err)

	assert.Equal(t, "mlp_resource", s.Name)
	assert.Equal(t, filepath.Join("testdata", "models", "mlp.cue"), s.Model)
	assert.Equal(t, "io_parallel", s.Config.IOType)
	assert.Equal(t, 10, s.Config.HLSConfig.LayerName["fc1"]["ReuseFactor"])
	require.Len(t, s.Assertions, 5)
	assert.Equal(t, AssertWeightShape, s.Assertions[3].Type)
	assert.Equal(t, []int{12, 8}, s.Assertions[3].Shape)
}

func TestLoadScenario_ExpectErrorWithoutAssertions(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/softmax_rank.yaml")
	require.NoError(t, err)
	assert.Equal(t, "shape", s.ExpectError)
	assert.Empty(t, s.Assertions)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown field",
			body: "name: x\ndescription: d\nmodel: model.cue\nassertion: []\n",
			want: "field assertion not found",
		},
		{
			name: "missing name",
			body: "description: d\nmodel: model.cue\n",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: x\nmodel: model.cue\n",
			want: "description is required",
		},
		{
			name: "missing model",
			body: "name: x\ndescription: d\n",
			want: "model is required",
		},
		{
			name: "model not found",
			body: "name: x\ndescription: d\nmodel: nope.cue\nexpect_error: shape\n",
			want: "model file not found",
		},
		{
			name: "unknown error class",
			body: "name: x\ndescription: d\nmodel: model.cue\nexpect_error: bogus\n",
			want: `unknown error class "bogus"`,
		},
		{
			name: "no assertions",
			body: "name: x\ndescription: d\nmodel: model.cue\n",
			want: "assertions list is required",
		},
		{
			name: "assertion without type",
			body: "name: x\ndescription: d\nmodel: model.cue\nassertions:\n  - layer: fc1\n",
			want: "assertions[0]: type is required",
		},
		{
			name: "unknown assertion type",
			body: "name: x\ndescription: d\nmodel: model.cue\nassertions:\n  - type: bogus\n",
			want: `unknown assertion type "bogus"`,
		},
		{
			name: "attribute without equals",
			body: "name: x\ndescription: d\nmodel: model.cue\nassertions:\n  - type: attribute\n    layer: fc1\n    attr: strategy\n",
			want: "equals is required",
		},
		{
			name: "weight_shape without weight",
			body: "name: x\ndescription: d\nmodel: model.cue\nassertions:\n  - type: weight_shape\n    layer: fc1\n",
			want: "layer and weight are required",
		},
		{
			name: "pass_order without passes",
			body: "name: x\ndescription: d\nmodel: model.cue\nassertions:\n  - type: pass_order\n",
			want: "passes list is required",
		},
		{
			name: "pass_count negative",
			body: "name: x\ndescription: d\nmodel: model.cue\nassertions:\n  - type: pass_count\n    pass: p\n    count: -1\n",
			want: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does_not_exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestErrorClasses_Sorted(t *testing.T) {
	classes := ErrorClasses()
	assert.IsNonDecreasing(t, classes)
	assert.Contains(t, classes, "shape")
	assert.Contains(t, classes, "steps_exceeded")
	assert.Contains(t, classes, "load")
}
