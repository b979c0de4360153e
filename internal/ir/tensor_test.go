package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTensor_SizeMismatch(t *testing.T) {
	_, err := NewTensor([]int{2, 3}, make([]float64, 5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs 6 elements")
}

func TestTensor_AtSet(t *testing.T) {
	x := Arange(2, 3)
	assert.Equal(t, 4.0, x.At(1, 1))
	x.Set(-1, 0, 2)
	assert.Equal(t, -1.0, x.Data[2])
}

func TestTensor_ExpandDims(t *testing.T) {
	x := Arange(3, 4)

	y, err := x.ExpandDims(0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4}, y.Shape)

	z, err := x.ExpandDims(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 3, 4}, z.Shape)
	assert.Equal(t, x.Data, z.Data)

	_, err = x.ExpandDims(5)
	assert.Error(t, err)
}

func TestTensor_Slice(t *testing.T) {
	x := Arange(2, 8)
	s, err := x.Slice(Range{0, 2}, Range{2, 4})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, s.Shape)
	assert.Equal(t, []float64{2, 3, 10, 11}, s.Data)

	_, err = x.Slice(Range{0, 3}, Range{0, 1})
	assert.Error(t, err, "range past the end must fail")

	_, err = x.Slice(Range{0, 1})
	assert.Error(t, err, "wrong number of ranges must fail")
}

func TestTensor_Transpose(t *testing.T) {
	x := Arange(2, 3)
	tr := x.Transpose()
	assert.Equal(t, []int{3, 2}, tr.Shape)
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, tr.Data)
	assert.True(t, tr.Transpose().Equal(x))
}

func TestConcat_ReconstructsSlices(t *testing.T) {
	x := Arange(3, 8)
	var parts []*Tensor
	for i := 0; i < 4; i++ {
		p, err := x.Slice(Range{0, 3}, Range{i * 2, (i + 1) * 2})
		require.NoError(t, err)
		parts = append(parts, p)
	}
	joined, err := Concat(1, parts...)
	require.NoError(t, err)
	assert.True(t, joined.Equal(x))
}

func TestConcat_Errors(t *testing.T) {
	_, err := Concat(0)
	assert.Error(t, err)

	_, err = Concat(1, Zeros(2, 2), Zeros(3, 2))
	assert.Error(t, err, "mismatched non-concat axis")

	_, err = Concat(2, Zeros(2, 2))
	assert.Error(t, err, "axis out of range")
}

func TestTensor_Reshape(t *testing.T) {
	x := Arange(2, 6)
	y, err := x.Reshape(3, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, y.Shape)

	_, err = x.Reshape(5, 2)
	assert.Error(t, err)
}
