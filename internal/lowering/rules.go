// Package lowering holds the per-kind initialization rules of the oneAPI
// backend.
//
// Each rule is keyed by one layer kind and runs once per matching node in
// the init_layers flow, after the base rule. Rules read the immutable
// configuration snapshot, never modify it, and write derived attributes
// and re-partitioned weights onto the node.
package lowering

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/pass"
)

// Convolution implementations accepted by the Implementation key.
const (
	ImplIm2col      = "im2col"
	ImplWinograd    = "winograd"
	ImplCombination = "combination"
)

// Strategy tags recorded on multiply layers.
const (
	StrategyResource   = "resource"
	StrategyCompressed = "compressed"
)

// LSTMGates is the fixed gate order of split LSTM weights.
var LSTMGates = []string{"i", "f", "c", "o"}

// Rule lowers one node of Kind.
type Rule struct {
	Name string
	Kind ir.LayerKind
	Fn   func(ctx context.Context, pc *pass.Context, n *ir.LayerNode) error
}

// Rules returns the initialization rules, base rule first.
func Rules() []Rule {
	return []Rule{
		{"init_base_layer", ir.KindLayer, initBaseLayer},
		{"init_dense", ir.KindDense, initDense},
		{"init_activation", ir.KindActivation, initActivation},
		{"init_softmax", ir.KindSoftmax, initSoftmax},
		{"init_embed", ir.KindEmbedding, initEmbed},
		{"init_gru", ir.KindGRU, initGRU},
		{"init_conv1d", ir.KindConv1D, initConv1D},
		{"init_conv2d", ir.KindConv2D, initConv2D},
		{"init_lstm", ir.KindLSTM, initLSTM},
		{"init_simple_rnn", ir.KindSimpleRNN, initSimpleRNN},
	}
}

// Register adds every rule to reg under backend and returns the qualified
// pass names in rule order.
func Register(reg *pass.Registry, backend string) ([]string, error) {
	var names []string
	for _, r := range Rules() {
		fn := r.Fn
		p := pass.NodeFunc(r.Name, pass.MatchKind(r.Kind),
			func(ctx context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
				return false, fn(ctx, pc, n)
			})
		name, err := reg.Register(backend, p)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func initBaseLayer(_ context.Context, pc *pass.Context, n *ir.LayerNode) error {
	return set(n).
		int("reuse_factor", pc.Config.ReuseFactor(n)).
		int("target_cycles", pc.Config.TargetCycles(n)).
		err
}

func initDense(_ context.Context, pc *pass.Context, n *ir.LayerNode) error {
	var indexT ir.PrecisionType = ir.NewInteger(1, false)

	s := set(n).int("rfpad", 0).int("bfpad", 0)
	if s.err != nil {
		return s.err
	}

	compression := pc.Config.Compression(n)
	if compression {
		if err := n.SetAttr("strategy", ir.StringAttr(StrategyCompressed)); err != nil {
			return err
		}
	} else {
		nIn, nOut, err := layerMultSize(n, "weight")
		if err != nil {
			return err
		}
		if err := setClosestReuseFactor(pc.Log(), n, nIn, nOut, "reuse_factor"); err != nil {
			return err
		}
		if err := n.SetAttr("strategy", ir.StringAttr(StrategyResource)); err != nil {
			return err
		}
	}

	if compression && pc.Config.IsResourceStrategy(n) {
		w, ok := n.Weight("weight")
		if !ok {
			return &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "weight",
				Reason: "compressed weights need an index precision"}
		}
		if w.IndexPrecision != nil {
			indexT = w.IndexPrecision
		}
	}
	return n.SetAttr("index_t", ir.NewNamedTypeAttr(indexName(n), indexT))
}

func indexName(n *ir.LayerNode) string {
	return fmt.Sprintf("layer%d_index", n.Index)
}

func initActivation(_ context.Context, _ *pass.Context, n *ir.LayerNode) error {
	for _, key := range []string{"activation", "recurrent_activation"} {
		if n.StringAttr(key, "") == "tanh" {
			if err := n.SetAttr(key, ir.StringAttr("dense_tanh")); err != nil {
				return err
			}
		}
	}
	return nil
}

func initSoftmax(_ context.Context, pc *pass.Context, n *ir.LayerNode) error {
	if pc.Config.IOType() != config.IOParallel {
		return nil
	}
	if shape := n.InputShape(); len(shape) != 1 {
		return shapeErrorf(n, "softmax with io_parallel cannot be used on multidimensional tensors (input shape %v)", shape)
	}
	return nil
}

func initEmbed(_ context.Context, _ *pass.Context, n *ir.LayerNode) error {
	if !n.HasAttr("n_in") {
		return &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "n_in",
			Reason: "the input length of an embedding layer must be specified"}
	}
	return nil
}

// initRecurrentMultiply fits forward and recurrent reuse factors and
// forces the resource strategy, the only one this backend implements
// for recurrent layers.
func initRecurrentMultiply(pc *pass.Context, n *ir.LayerNode) error {
	nIn, nOut, err := layerMultSize(n, "weight")
	if err != nil {
		return err
	}
	nInRecr, nOutRecr, err := recurrentMultSize(n)
	if err != nil {
		return err
	}
	if err := setClosestReuseFactor(pc.Log(), n, nIn, nOut, "reuse_factor"); err != nil {
		return err
	}
	if err := setClosestReuseFactor(pc.Log(), n, nInRecr, nOutRecr, "recurrent_reuse_factor"); err != nil {
		return err
	}
	return n.SetAttr("strategy", ir.StringAttr(StrategyResource))
}

func recurrentMultSize(n *ir.LayerNode) (int, int, error) {
	if w, ok := n.Weight("recurrent_weight"); ok && w.Data != nil {
		nIn, nOut := multShape(w.Data)
		if nIn > 0 && nOut > 0 {
			return nIn, nOut, nil
		}
		return 0, 0, shapeErrorf(n, "recurrent weight has degenerate shape %v", w.Data.Shape)
	}
	return 0, 0, &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "recurrent_weight"}
}

func initGRU(_ context.Context, pc *pass.Context, n *ir.LayerNode) error {
	s := set(n).
		int("recurrent_reuse_factor", pc.Config.ReuseFactor(n)).
		int("rfpad", 0).
		int("bfpad", 0)
	if !n.HasAttr("table_t") {
		s.attr("table_t", ir.NewNamedTypeAttr(n.Name+"_table_t", ir.NewFixed(18, 8)))
	}
	if !n.HasAttr("table_size") {
		s.int("table_size", 1024)
	}
	if s.err != nil {
		return s.err
	}
	if err := initRecurrentMultiply(pc, n); err != nil {
		return err
	}
	return n.SetAttr("index_t", ir.NewNamedTypeAttr(indexName(n), ir.NewInteger(1, false)))
}

func initLSTM(_ context.Context, pc *pass.Context, n *ir.LayerNode) error {
	s := set(n).
		int("recurrent_reuse_factor", pc.Config.ReuseFactor(n)).
		int("rfpad", 0).
		int("bfpad", 0).
		attr("index_t", ir.NewNamedTypeAttr(indexName(n), ir.NewInteger(1, false)))
	if s.err != nil {
		return s.err
	}
	if err := initRecurrentMultiply(pc, n); err != nil {
		return err
	}
	return splitLSTMWeights(n)
}

// splitLSTMWeights partitions weight, recurrent_weight and bias into one
// contiguous slice per gate along the output axis.
func splitLSTMWeights(n *ir.LayerNode) error {
	w, okW := n.Weight("weight")
	rw, okR := n.Weight("recurrent_weight")
	b, okB := n.Weight("bias")
	switch {
	case !okW:
		return &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "weight"}
	case !okR:
		return &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "recurrent_weight"}
	case !okB:
		return &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "bias"}
	}
	if w.Data.Rank() != 2 || rw.Data.Rank() != 2 || b.Data.Rank() != 1 {
		return shapeErrorf(n, "lstm weights must be rank 2, 2, 1; got %v, %v, %v",
			w.Data.Shape, rw.Data.Shape, b.Data.Shape)
	}

	nIn := n.IntAttr("n_in", w.Data.Shape[0])
	nOut := n.IntAttr("n_out", w.Data.Shape[1]/len(LSTMGates))
	quantizer := n.Quantizer("weight_quantizer")

	for i, gate := range LSTMGates {
		cols := ir.Range{Start: i * nOut, End: (i + 1) * nOut}
		wd, err := w.Data.Slice(ir.Range{Start: 0, End: nIn}, cols)
		if err != nil {
			return shapeErrorf(n, "slice weight for gate %s: %v", gate, err)
		}
		rd, err := rw.Data.Slice(ir.Range{Start: 0, End: nOut}, cols)
		if err != nil {
			return shapeErrorf(n, "slice recurrent weight for gate %s: %v", gate, err)
		}
		bd, err := b.Data.Slice(cols)
		if err != nil {
			return shapeErrorf(n, "slice bias for gate %s: %v", gate, err)
		}
		n.AddWeight(gateWeight("weight_"+gate, "kernel_"+gate+"_{index}", wd, w, quantizer))
		n.AddWeight(gateWeight("recurrent_weight_"+gate, "recurrent_kernel_"+gate+"_{index}", rd, rw, quantizer))
		n.AddWeight(gateWeight("bias_"+gate, "bias_"+gate+"_{index}", bd, b, quantizer))
	}
	return nil
}

func gateWeight(name, varName string, data *ir.Tensor, src *ir.WeightVariable, q *ir.Quantizer) *ir.WeightVariable {
	t := src.Type
	if t.Name != "" {
		t.Name = strings.Replace(t.Name, src.Name, name, 1)
	}
	return &ir.WeightVariable{
		Name:      name,
		VarName:   varName,
		Data:      data,
		Type:      t,
		Quantizer: q,
	}
}

func initSimpleRNN(_ context.Context, pc *pass.Context, n *ir.LayerNode) error {
	// Reuse factor fitting is not applied to SimpleRNN yet.
	return n.SetAttr("recurrent_reuse_factor", ir.IntAttr(pc.Config.ReuseFactor(n)))
}

func initConv1D(ctx context.Context, pc *pass.Context, n *ir.LayerNode) error {
	return initConv(ctx, pc, n, []int{0})
}

func initConv2D(ctx context.Context, pc *pass.Context, n *ir.LayerNode) error {
	return initConv(ctx, pc, n, []int{0, 1})
}

// initConv lowers Conv1D and Conv2D. expand lists the axes inserted into a
// rank-2 weight reused from a Dense layer for a 1x1 convolution.
func initConv(_ context.Context, pc *pass.Context, n *ir.LayerNode, expand []int) error {
	w, ok := n.Weight("weight")
	if !ok || w.Data == nil {
		return &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "weight"}
	}
	if w.Data.Rank() == 2 {
		reshaped, err := w.Data.ExpandDims(expand...)
		if err != nil {
			return shapeErrorf(n, "expand 1x1 weight: %v", err)
		}
		w.Data = reshaped
	}
	if want := len(expand) + 2; w.Data.Rank() != want {
		return shapeErrorf(n, "weight must have rank %d, got shape %v", want, w.Data.Shape)
	}

	s := set(n).int("rfpad", 0).int("bfpad", 0).str("strategy", StrategyResource)
	if s.err != nil {
		return s.err
	}

	nIn, nOut, err := layerMultSize(n, "weight")
	if err != nil {
		return err
	}
	if err := setTargetReuseFactor(pc.Log(), n, nIn, nOut); err != nil {
		return err
	}

	impl := strings.ToLower(pc.Config.LayerString(n, "Implementation", ImplIm2col))
	switch impl {
	case ImplIm2col, ImplWinograd, ImplCombination:
	default:
		return &config.ConfigError{
			Key:     "Implementation",
			Message: fmt.Sprintf("layer %s: unknown convolution implementation %q", n.Name, impl),
		}
	}

	rank := w.Data.Rank()
	s = set(n).
		int("parallelization", n.IntAttr("parallelization_factor", pc.Config.LayerInt(n, "ParallelizationFactor", 1))).
		int("impl_filt_width", n.IntAttr("filt_width", w.Data.Shape[rank-3])).
		str("implementation", impl).
		int("n_partitions", 1)
	if n.Kind == ir.KindConv2D {
		s.int("impl_filt_height", n.IntAttr("filt_height", w.Data.Shape[0]))
	}
	return s.err
}
