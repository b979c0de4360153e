package loader

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/ir"
)

func TestLoadModel_MLP(t *testing.T) {
	m, err := New(afero.NewOsFs()).LoadModel("testdata/mlp.cue")
	require.NoError(t, err)

	assert.Equal(t, "mlp", m.Name)
	require.Len(t, m.Nodes, 4)
	assert.Equal(t, []string{"softmax"}, m.Outputs)

	fc := m.Node("fc1")
	require.NotNil(t, fc)
	assert.Equal(t, 1, fc.Index)
	assert.Equal(t, ir.KindDense, fc.Kind)
	assert.Equal(t, []string{"input"}, fc.Inputs)
	assert.Equal(t, [][]int{{8}}, fc.InputShapes)
	assert.Equal(t, 8, fc.IntAttr("n_in", 0))

	w, ok := fc.Weight("weight")
	require.True(t, ok)
	assert.Equal(t, []int{8, 12}, w.Data.Shape)
	assert.Equal(t, 95.0, w.Data.At(7, 11))
	assert.Equal(t, "w1", w.ResolvedVarName(fc.Index))

	b, ok := fc.Weight("bias")
	require.True(t, ok)
	assert.True(t, b.Data.Equal(ir.Zeros(12)))

	assert.Equal(t, "relu", m.Node("relu1").StringAttr("activation", ""))
}

func TestParseModel_AttributeValues(t *testing.T) {
	src := `
name: "m"
layers: [
	{name: "input", kind: "Input", output_shape: [4]},
	{
		name: "fc", kind: "Dense", inputs: ["input"], output_shape: [2]
		attrs: {
			n_in:      4
			epsilon:   0.5
			trace:     true
			strategy:  "latency"
			accum_t:   "fixed<20,8>"
			target:    [1, 2]
		}
		weights: weight: {
			shape: [4, 2]
			data: [0, 1, 2, 3, 4, 5, 6, 7.5]
			quantizer: {name: "quantized_bits(4,1)", bits: 4, integer: 1}
		}
	},
]
outputs: []
`
	m, err := ParseModel("inline.cue", []byte(src))
	require.NoError(t, err)

	fc := m.Node("fc")
	assert.Equal(t, 4, fc.IntAttr("n_in", 0))
	assert.Equal(t, 0.5, fc.FloatAttr("epsilon", 0))
	assert.True(t, fc.BoolAttr("trace", false))
	assert.Equal(t, "latency", fc.StringAttr("strategy", ""))

	accum, ok := fc.TypeAttr("accum_t")
	require.True(t, ok)
	assert.Equal(t, ir.NewFixed(20, 8), accum.Precision)

	target, ok := fc.Attr("target")
	require.True(t, ok)
	assert.Equal(t, ir.ShapeAttr{1, 2}, target)

	q := fc.Quantizer("weight_quantizer")
	require.NotNil(t, q)
	assert.Equal(t, 4, q.Bits)
	assert.True(t, q.Signed)

	w, _ := fc.Weight("weight")
	assert.Equal(t, 7.5, w.Data.At(3, 1))
	assert.Equal(t, "weight{index}", w.VarName)

	assert.Equal(t, []string{"fc"}, m.Outputs, "last layer is the default output")
}

func TestParseModel_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown kind",
			src:  `name: "m", layers: [{name: "a", kind: "Transformer"}], outputs: []`,
			want: "unknown layer kind",
		},
		{
			name: "input declared later",
			src: `name: "m", layers: [
				{name: "a", kind: "Dense", inputs: ["b"]},
				{name: "b", kind: "Input"},
			], outputs: []`,
			want: "unknown or later layer",
		},
		{
			name: "data does not fill shape",
			src:  `name: "m", layers: [{name: "a", kind: "Dense", weights: weight: {shape: [2, 2], data: [1, 2, 3]}}], outputs: []`,
			want: "needs 4 elements",
		},
		{
			name: "unknown output",
			src:  `name: "m", layers: [{name: "a", kind: "Input"}], outputs: ["z"]`,
			want: "unknown layer",
		},
		{
			name: "duplicate layer",
			src:  `name: "m", layers: [{name: "a", kind: "Input"}, {name: "a", kind: "Input"}], outputs: []`,
			want: "duplicate layer name",
		},
		{
			name: "no layers",
			src:  `name: "m", layers: [], outputs: []`,
			want: "at least one layer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, IsLoadError(err), "got %T: %v", err, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseModel_SchemaViolationHasPosition(t *testing.T) {
	src := "name: \"m\"\nlayers: [{name: \"a\", kind: \"Input\", output_shape: [-1]}]\noutputs: []\n"
	_, err := ParseModel("bad.cue", []byte(src))
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.True(t, le.Pos.IsValid())
}

func TestParseModel_SyntaxError(t *testing.T) {
	_, err := ParseModel("broken.cue", []byte("name: \"m\"\nlayers: [\n"))
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}

func TestLoadModel_MissingFile(t *testing.T) {
	_, err := New(afero.NewMemMapFs()).LoadModel("nope.cue")
	require.Error(t, err)
	assert.False(t, IsLoadError(err))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := New(nil).LoadConfig("testdata/mlp.yaml")
	require.NoError(t, err)
	assert.Equal(t, "mlp", cfg.ProjectName())
	assert.Equal(t, "mlp-prj", cfg.OutputDir())

	n := ir.NewLayerNode(1, ir.KindDense, "fc1")
	assert.Equal(t, 10, cfg.LayerInt(n, "ReuseFactor", 0))
}

func TestLoadConfig_Invalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("IOType: io_serial\n"), 0o644))

	_, err := New(fs).LoadConfig("bad.yaml")
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}
