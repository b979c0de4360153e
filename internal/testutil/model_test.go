package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fpgalower/internal/ir"
)

func TestModelBuilder_Sequential(t *testing.T) {
	m, err := NewModel("mlp", 8).
		Dense("fc1", 8, 12).
		Activation("relu1", "relu").
		Softmax("softmax").
		Build()
	require.NoError(t, err)

	require.Len(t, m.Nodes, 4)
	assert.Equal(t, []string{"softmax"}, m.Outputs)
	fc := m.Node("fc1")
	assert.Equal(t, 1, fc.Index)
	assert.Equal(t, []string{"input"}, fc.Inputs)
	assert.Equal(t, [][]int{{8}}, fc.InputShapes)
	w, ok := fc.Weight("weight")
	require.True(t, ok)
	assert.Equal(t, []int{8, 12}, w.Data.Shape)

	sm := m.Node("softmax")
	assert.Equal(t, [][]int{{12}}, sm.InputShapes)
}

func TestModelBuilder_DuplicateName(t *testing.T) {
	_, err := NewModel("m", 4).Dense("fc", 4, 4).Dense("fc", 4, 4).Build()
	assert.Error(t, err)
}

func TestModelBuilder_Attr(t *testing.T) {
	m := NewModel("m", 4).Embedding("embed", 0, 10, 3).Attr("trace", ir.BoolAttr(true)).MustBuild()
	n := m.Node("embed")
	assert.False(t, n.HasAttr("n_in"))
	assert.True(t, n.BoolAttr("trace", false))
}
