package testutil

import (
	"github.com/roach88/fpgalower/internal/ir"
)

// ModelBuilder builds small sequential models for tests. Each layer reads
// the previous one; weights hold 0, 1, 2, ... so slices are recognizable.
type ModelBuilder struct {
	m    *ir.Model
	last *ir.LayerNode
	err  error
}

// NewModel starts a model with a single input layer of the given shape.
func NewModel(name string, inputShape ...int) *ModelBuilder {
	b := &ModelBuilder{m: ir.NewModel(name)}
	in := ir.NewLayerNode(0, ir.KindInput, "input")
	in.OutputShape = inputShape
	b.add(in)
	return b
}

func (b *ModelBuilder) add(n *ir.LayerNode) *ir.LayerNode {
	if b.err != nil {
		return n
	}
	if b.last != nil {
		n.Inputs = []string{b.last.Name}
		n.InputShapes = [][]int{append([]int(nil), b.last.OutputShape...)}
	}
	if err := b.m.Add(n); err != nil {
		b.err = err
		return n
	}
	b.last = n
	return n
}

func (b *ModelBuilder) attr(n *ir.LayerNode, key string, v ir.AttrValue) {
	if b.err == nil {
		b.err = n.SetAttr(key, v)
	}
}

func (b *ModelBuilder) node(kind ir.LayerKind, name string, outShape ...int) *ir.LayerNode {
	n := ir.NewLayerNode(b.m.NextIndex(), kind, name)
	n.OutputShape = outShape
	return b.add(n)
}

// Dense appends a fully connected layer with an (nIn, nOut) weight and a
// bias.
func (b *ModelBuilder) Dense(name string, nIn, nOut int) *ModelBuilder {
	n := b.node(ir.KindDense, name, nOut)
	b.attr(n, "n_in", ir.IntAttr(nIn))
	b.attr(n, "n_out", ir.IntAttr(nOut))
	n.AddWeight(&ir.WeightVariable{Name: "weight", VarName: "w{index}", Data: ir.Arange(nIn, nOut)})
	n.AddWeight(&ir.WeightVariable{Name: "bias", VarName: "b{index}", Data: ir.Zeros(nOut)})
	return b
}

// Activation appends an activation layer.
func (b *ModelBuilder) Activation(name, activation string) *ModelBuilder {
	n := b.node(ir.KindActivation, name, b.lastShape()...)
	b.attr(n, "activation", ir.StringAttr(activation))
	return b
}

// Softmax appends a softmax layer.
func (b *ModelBuilder) Softmax(name string) *ModelBuilder {
	n := b.node(ir.KindSoftmax, name, b.lastShape()...)
	b.attr(n, "activation", ir.StringAttr("softmax"))
	return b
}

// Conv1D appends a convolution with a (filtWidth, nChan, nFilt) kernel and
// "same" output width.
func (b *ModelBuilder) Conv1D(name string, filtWidth, nChan, nFilt int) *ModelBuilder {
	width := 1
	if s := b.lastShape(); len(s) > 0 {
		width = s[0]
	}
	n := b.node(ir.KindConv1D, name, width, nFilt)
	for k, v := range map[string]int{
		"in_width": width, "out_width": width, "n_chan": nChan, "n_filt": nFilt,
		"filt_width": filtWidth, "stride_width": 1,
	} {
		b.attr(n, k, ir.IntAttr(v))
	}
	n.AddWeight(&ir.WeightVariable{Name: "weight", VarName: "w{index}", Data: ir.Arange(filtWidth, nChan, nFilt)})
	n.AddWeight(&ir.WeightVariable{Name: "bias", VarName: "b{index}", Data: ir.Zeros(nFilt)})
	return b
}

// LSTM appends an LSTM with nOut units over nIn features.
func (b *ModelBuilder) LSTM(name string, nIn, nOut int) *ModelBuilder {
	n := b.node(ir.KindLSTM, name, nOut)
	b.attr(n, "n_in", ir.IntAttr(nIn))
	b.attr(n, "n_out", ir.IntAttr(nOut))
	b.attr(n, "activation", ir.StringAttr("tanh"))
	b.attr(n, "recurrent_activation", ir.StringAttr("sigmoid"))
	n.AddWeight(&ir.WeightVariable{Name: "weight", VarName: "w{index}", Data: ir.Arange(nIn, 4*nOut)})
	n.AddWeight(&ir.WeightVariable{Name: "recurrent_weight", VarName: "wr{index}", Data: ir.Arange(nOut, 4*nOut)})
	n.AddWeight(&ir.WeightVariable{Name: "bias", VarName: "b{index}", Data: ir.Arange(4 * nOut)})
	return b
}

// Embedding appends an embedding layer. A zero nIn leaves n_in unset.
func (b *ModelBuilder) Embedding(name string, nIn, vocab, nOut int) *ModelBuilder {
	n := b.node(ir.KindEmbedding, name, nIn, nOut)
	if nIn > 0 {
		b.attr(n, "n_in", ir.IntAttr(nIn))
	}
	b.attr(n, "vocab_size", ir.IntAttr(vocab))
	n.AddWeight(&ir.WeightVariable{Name: "embeddings", VarName: "e{index}", Data: ir.Arange(vocab, nOut)})
	return b
}

// Attr sets an attribute on the most recently added layer.
func (b *ModelBuilder) Attr(key string, v ir.AttrValue) *ModelBuilder {
	if b.last != nil {
		b.attr(b.last, key, v)
	}
	return b
}

func (b *ModelBuilder) lastShape() []int {
	if b.last == nil {
		return nil
	}
	return append([]int(nil), b.last.OutputShape...)
}

// Build marks the last layer as the output and returns the model.
func (b *ModelBuilder) Build() (*ir.Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.m.Outputs = []string{b.last.Name}
	return b.m, nil
}

// MustBuild is like Build but panics on error.
func (b *ModelBuilder) MustBuild() *ir.Model {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
