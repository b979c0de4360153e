package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keySet map[string]bool

func (k keySet) Allows(key string) bool { return k[key] }

func chainModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel("chain")
	in := NewLayerNode(0, KindInput, "input")
	dense := NewLayerNode(1, KindDense, "dense")
	dense.Inputs = []string{"input"}
	act := NewLayerNode(2, KindActivation, "act")
	act.Inputs = []string{"dense"}
	for _, n := range []*LayerNode{in, dense, act} {
		require.NoError(t, m.Add(n))
	}
	m.Outputs = []string{"act"}
	return m
}

func TestModel_AddDuplicate(t *testing.T) {
	m := chainModel(t)
	err := m.Add(NewLayerNode(9, KindDense, "dense"))
	assert.Error(t, err)
}

func TestModel_Remove_RewiresConsumersAndOutputs(t *testing.T) {
	m := chainModel(t)
	require.NoError(t, m.Remove("act"))
	assert.Nil(t, m.Node("act"))
	assert.Equal(t, []string{"dense"}, m.Outputs)

	require.NoError(t, m.Remove("dense"))
	assert.Equal(t, []string{"input"}, m.Outputs)

	assert.Error(t, m.Remove("input"), "source nodes have no single input")
	assert.Error(t, m.Remove("missing"))
}

func TestModel_InsertAfter(t *testing.T) {
	m := chainModel(t)
	clone := NewLayerNode(m.NextIndex(), KindClone, "clone_dense")
	clone.Inputs = []string{"dense"}
	require.NoError(t, m.InsertAfter("dense", clone))
	m.Rewire("dense", "clone_dense", m.Node("act"))

	assert.Equal(t, 3, clone.Index)
	assert.Equal(t, "clone_dense", m.Nodes[2].Name)
	assert.Equal(t, []string{"clone_dense"}, m.Node("act").Inputs)
	assert.Len(t, m.Consumers("dense"), 1)

	assert.Error(t, m.InsertAfter("nope", NewLayerNode(7, KindClone, "x")))
}

func TestLayerNode_SetAttr_Unbound(t *testing.T) {
	n := NewLayerNode(0, KindDense, "d")
	require.NoError(t, n.SetAttr("anything", IntAttr(1)))
	assert.Equal(t, 1, n.IntAttr("anything", 0))
}

func TestLayerNode_SetAttr_RejectsUnknownKey(t *testing.T) {
	n := NewLayerNode(0, KindDense, "d")
	require.NoError(t, n.Bind(keySet{"n_in": true}))
	require.NoError(t, n.SetAttr("n_in", IntAttr(8)))

	err := n.SetAttr("bogus", IntAttr(1))
	var ua *UnknownAttributeError
	require.ErrorAs(t, err, &ua)
	assert.Equal(t, "bogus", ua.Key)
	assert.Equal(t, KindDense, ua.Kind)
}

func TestLayerNode_Bind_ChecksExistingKeys(t *testing.T) {
	n := NewLayerNode(0, KindDense, "d")
	require.NoError(t, n.SetAttr("stray", BoolAttr(true)))
	err := n.Bind(keySet{"n_in": true})
	require.Error(t, err)
	assert.False(t, n.Bound())
}

func TestLayerNode_LastWriteWins(t *testing.T) {
	n := NewLayerNode(0, KindDense, "d")
	require.NoError(t, n.SetAttr("strategy", StringAttr("latency")))
	require.NoError(t, n.SetAttr("strategy", StringAttr("resource")))
	assert.Equal(t, "resource", n.StringAttr("strategy", ""))
}

func TestLayerNode_Accessors(t *testing.T) {
	n := NewLayerNode(4, KindDense, "d")
	require.NoError(t, n.SetAttr("epsilon", FloatAttr(0.5)))
	require.NoError(t, n.SetAttr("n_out", IntAttr(3)))
	require.NoError(t, n.SetAttr("index_t", NewNamedTypeAttr("layer4_index", NewInteger(1, false))))

	assert.Equal(t, 0.5, n.FloatAttr("epsilon", 0))
	assert.Equal(t, 3.0, n.FloatAttr("n_out", 0))
	assert.Equal(t, 7, n.IntAttr("missing", 7))
	nt, ok := n.TypeAttr("index_t")
	require.True(t, ok)
	assert.Equal(t, "layer4_index", nt.Name)
	assert.Equal(t, []string{"epsilon", "index_t", "n_out"}, n.AttrKeys())
	assert.Equal(t, "d(Dense#4)", n.String())
}

func TestLayerNode_AddWeightReplaces(t *testing.T) {
	n := NewLayerNode(2, KindDense, "d")
	n.AddWeight(&WeightVariable{Name: "weight", VarName: "w{index}", Data: Zeros(2, 2)})
	n.AddWeight(&WeightVariable{Name: "bias", VarName: "b{index}", Data: Zeros(2)})
	n.AddWeight(&WeightVariable{Name: "weight", VarName: "w{index}", Data: Zeros(4, 2)})

	ws := n.Weights()
	require.Len(t, ws, 2)
	assert.Equal(t, []int{4, 2}, ws[0].Data.Shape)
	assert.Equal(t, "w2", ws[0].ResolvedVarName(n.Index))
}
