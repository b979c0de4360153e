package ir

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Tensor is a dense row-major buffer with a shape.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor validates that data fills shape exactly.
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, errors.Newf("negative dimension in shape %v", shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, errors.Newf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}, nil
}

// Zeros returns a zero-filled tensor.
func Zeros(shape ...int) *Tensor {
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float64, product(shape))}
}

// Arange returns a tensor holding 0, 1, 2, ... in row-major order.
func Arange(shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.Data {
		t.Data[i] = float64(i)
	}
	return t
}

// Rank is the number of dimensions.
func (t *Tensor) Rank() int { return len(t.Shape) }

// Size is the number of elements.
func (t *Tensor) Size() int { return len(t.Data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// Equal reports whether both tensors have identical shape and data.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	return slices.Equal(t.Shape, o.Shape) && slices.Equal(t.Data, o.Data)
}

// strides returns row-major strides for the shape.
func (t *Tensor) strides() []int {
	s := make([]int, len(t.Shape))
	acc := 1
	for i := len(t.Shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= t.Shape[i]
	}
	return s
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float64 {
	off := 0
	for i, s := range t.strides() {
		off += idx[i] * s
	}
	return t.Data[off]
}

// Set stores v at the given multi-index.
func (t *Tensor) Set(v float64, idx ...int) {
	off := 0
	for i, s := range t.strides() {
		off += idx[i] * s
	}
	t.Data[off] = v
}

// Reshape returns a view-copy with a new shape of the same size.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	return NewTensor(shape, slices.Clone(t.Data))
}

// ExpandDims inserts singleton axes at the given positions of the result,
// following numpy.expand_dims semantics.
func (t *Tensor) ExpandDims(axes ...int) (*Tensor, error) {
	rank := t.Rank() + len(axes)
	insert := make([]bool, rank)
	for _, a := range axes {
		if a < 0 {
			a += rank
		}
		if a < 0 || a >= rank || insert[a] {
			return nil, errors.Newf("invalid expand axis %d for rank %d", a, t.Rank())
		}
		insert[a] = true
	}
	shape := make([]int, 0, rank)
	src := 0
	for i := 0; i < rank; i++ {
		if insert[i] {
			shape = append(shape, 1)
			continue
		}
		shape = append(shape, t.Shape[src])
		src++
	}
	return &Tensor{Shape: shape, Data: slices.Clone(t.Data)}, nil
}

// Range is a half-open interval [Start, End) along one axis.
type Range struct {
	Start, End int
}

// Slice extracts a sub-tensor. ranges has one entry per axis; the result
// keeps the rank of t.
func (t *Tensor) Slice(ranges ...Range) (*Tensor, error) {
	if len(ranges) != t.Rank() {
		return nil, errors.Newf("slice needs %d ranges, got %d", t.Rank(), len(ranges))
	}
	shape := make([]int, t.Rank())
	for i, r := range ranges {
		if r.Start < 0 || r.End > t.Shape[i] || r.Start > r.End {
			return nil, errors.Newf("range [%d,%d) out of bounds for axis %d of size %d",
				r.Start, r.End, i, t.Shape[i])
		}
		shape[i] = r.End - r.Start
	}
	out := Zeros(shape...)
	if out.Size() == 0 {
		return out, nil
	}

	idx := make([]int, t.Rank())
	for i := range out.Data {
		// Decompose i into the output multi-index.
		rem := i
		for ax := t.Rank() - 1; ax >= 0; ax-- {
			idx[ax] = rem%shape[ax] + ranges[ax].Start
			rem /= shape[ax]
		}
		out.Data[i] = t.At(idx...)
	}
	return out, nil
}

// Transpose reverses the axis order, like numpy.transpose without arguments.
func (t *Tensor) Transpose() *Tensor {
	rank := t.Rank()
	shape := make([]int, rank)
	for i := range shape {
		shape[i] = t.Shape[rank-1-i]
	}
	out := Zeros(shape...)
	src := make([]int, rank)
	for i := range out.Data {
		rem := i
		for ax := rank - 1; ax >= 0; ax-- {
			src[rank-1-ax] = rem % shape[ax]
			rem /= shape[ax]
		}
		out.Data[i] = t.At(src...)
	}
	return out
}

// Concat joins tensors along axis. All other dimensions must agree.
func Concat(axis int, ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, errors.New("concat of zero tensors")
	}
	rank := ts[0].Rank()
	if axis < 0 || axis >= rank {
		return nil, errors.Newf("invalid concat axis %d for rank %d", axis, rank)
	}
	shape := slices.Clone(ts[0].Shape)
	shape[axis] = 0
	for _, x := range ts {
		if x.Rank() != rank {
			return nil, errors.Newf("concat rank mismatch: %v vs %v", ts[0].Shape, x.Shape)
		}
		for ax := range rank {
			if ax != axis && x.Shape[ax] != ts[0].Shape[ax] {
				return nil, errors.Newf("concat shape mismatch on axis %d: %v vs %v", ax, ts[0].Shape, x.Shape)
			}
		}
		shape[axis] += x.Shape[axis]
	}

	out := Zeros(shape...)
	// outer = product of dims before axis, each tensor contributes
	// contiguous chunks of Shape[axis]*inner elements per outer index.
	outer := product(shape[:axis])
	inner := product(shape[axis+1:])
	pos := 0
	for o := 0; o < outer; o++ {
		for _, x := range ts {
			chunk := x.Shape[axis] * inner
			copy(out.Data[pos:pos+chunk], x.Data[o*chunk:(o+1)*chunk])
			pos += chunk
		}
	}
	return out, nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
