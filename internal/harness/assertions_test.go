package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/testutil"
)

func loweredResult(t *testing.T) *Result {
	t.Helper()
	m := testutil.NewModel("m", 8).Dense("fc1", 8, 4).MustBuild()
	fc := m.Node("fc1")
	require.NoError(t, fc.SetAttr("strategy", ir.StringAttr("resource")))
	require.NoError(t, fc.SetAttr("reuse_factor", ir.IntAttr(4)))
	require.NoError(t, fc.SetAttr("result_t", ir.NewNamedTypeAttr("fc1_result_t", ir.MustParsePrecision("fixed<16,6>"))))

	r := NewResult()
	r.Model = m
	r.Trace = []engine.PassEvent{
		{Seq: 1, Flow: "optimize", Pass: "eliminate_linear_activation", Node: "act", Changed: true},
		{Seq: 2, Flow: "oneapi:init_layers", Pass: "oneapi:init_dense", Node: "fc1"},
		{Seq: 3, Flow: "oneapi:apply_templates", Pass: "oneapi:dense_config_template", Node: "fc1", Changed: false},
		{Seq: 4, Flow: "oneapi:init_layers", Pass: "oneapi:init_dense", Node: "fc2"},
	}
	return r
}

func TestEvaluateAssertions_AllHold(t *testing.T) {
	r := loweredResult(t)
	failures := EvaluateAssertions(r, []Assertion{
		{Type: AssertAttribute, Layer: "fc1", Attr: "strategy", Equals: "resource"},
		{Type: AssertAttribute, Layer: "fc1", Attr: "reuse_factor", Equals: 4},
		{Type: AssertAttribute, Layer: "fc1", Attr: "result_t", Equals: "fixed<16,6>"},
		{Type: AssertWeightShape, Layer: "fc1", Weight: "weight", Shape: []int{8, 4}},
		{Type: AssertLayerAbsent, Layer: "act"},
		{Type: AssertPassOrder, Passes: []string{"eliminate_linear_activation", "oneapi:init_dense", "oneapi:dense_config_template"}},
		{Type: AssertPassCount, Pass: "oneapi:init_dense", Count: 2},
		{Type: AssertPassCount, Pass: "oneapi:init_dense", Count: 0, Changed: true},
		{Type: AssertPassCount, Pass: "eliminate_linear_activation", Count: 1, Changed: true},
	})
	assert.Empty(t, failures)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "attribute mismatch",
			assertion: Assertion{Type: AssertAttribute, Layer: "fc1", Attr: "strategy", Equals: "latency"},
			want:      "Actual: resource",
		},
		{
			name:      "attribute unset",
			assertion: Assertion{Type: AssertAttribute, Layer: "fc1", Attr: "template", Equals: "dense_config"},
			want:      "attribute not set",
		},
		{
			name:      "layer missing",
			assertion: Assertion{Type: AssertAttribute, Layer: "nope", Attr: "strategy", Equals: "x"},
			want:      "layer not found",
		},
		{
			name:      "weight shape",
			assertion: Assertion{Type: AssertWeightShape, Layer: "fc1", Weight: "weight", Shape: []int{4, 8}},
			want:      "Actual: [8 4]",
		},
		{
			name:      "weight missing",
			assertion: Assertion{Type: AssertWeightShape, Layer: "fc1", Weight: "recurrent_weight", Shape: []int{1}},
			want:      "weight not found",
		},
		{
			name:      "layer present",
			assertion: Assertion{Type: AssertLayerAbsent, Layer: "fc1"},
			want:      "layer present",
		},
		{
			name:      "pass missing",
			assertion: Assertion{Type: AssertPassOrder, Passes: []string{"oneapi:init_dense", "oneapi:write_hls"}},
			want:      "missing pass: oneapi:write_hls",
		},
		{
			name:      "pass out of order",
			assertion: Assertion{Type: AssertPassOrder, Passes: []string{"oneapi:dense_config_template", "oneapi:init_dense"}},
			want:      "should be before",
		},
		{
			name:      "pass count",
			assertion: Assertion{Type: AssertPassCount, Pass: "oneapi:init_dense", Count: 1},
			want:      "Actual: 2 events",
		},
		{
			name:      "pass change count",
			assertion: Assertion{Type: AssertPassCount, Pass: "oneapi:init_dense", Count: 1, Changed: true},
			want:      "Actual: 0 changes",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "bogus"},
			want:      `unknown assertion type "bogus"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(loweredResult(t), []Assertion{tt.assertion})
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], "assertions[0]")
			assert.Contains(t, failures[0], tt.want)
		})
	}
}

func TestEvaluateAssertions_NoModel(t *testing.T) {
	failures := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertAttribute, Layer: "fc1", Attr: "strategy", Equals: "resource"},
		{Type: AssertLayerAbsent, Layer: "fc1"},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "no model")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertPassCount, Expected: "p: 1 events", Actual: "2 events"}
	assert.Equal(t, "Assertion failed: pass_count\n  Expected: p: 1 events\n  Actual: 2 events", err.Error())
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
