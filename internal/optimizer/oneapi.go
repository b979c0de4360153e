package optimizer

import (
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/lowering"
	"github.com/roach88/fpgalower/internal/pass"
)

// cloneOutput gives every output read by several consumers its own Clone
// layer under io_stream, where a stream can be read only once.
func cloneOutput(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	if !pc.Config.IsStreaming() || n.Kind == ir.KindClone {
		return false, nil
	}
	consumers := pc.Model.Consumers(n.Name)
	if len(consumers) < 2 {
		return false, nil
	}

	clone := ir.NewLayerNode(pc.Model.NextIndex(), ir.KindClone, "clone_"+n.Name)
	clone.Inputs = []string{n.Name}
	clone.InputShapes = [][]int{slices.Clone(n.OutputShape)}
	clone.OutputShape = slices.Clone(n.OutputShape)
	if err := clone.SetAttr("n_clones", ir.IntAttr(len(consumers))); err != nil {
		return false, err
	}
	if t, ok := n.TypeAttr("result_t"); ok {
		if err := clone.SetAttr("result_t", ir.NewNamedTypeAttr(clone.Name+"_result_t", t.Precision)); err != nil {
			return false, err
		}
	}
	if err := pc.BindNode(clone); err != nil {
		return false, err
	}
	if err := pc.Model.InsertAfter(n.Name, clone); err != nil {
		return false, err
	}
	pc.Model.Rewire(n.Name, clone.Name, consumers...)
	pc.Log().Debug("inserted clone", "layer", n.Name, "clones", len(consumers))
	return true, nil
}

// registerBRAMWeights assigns weights larger than the configured BRAM
// factor to block RAM. A zero factor keeps everything in registers.
func registerBRAMWeights(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	factor := pc.Config.BramFactor()
	for _, w := range n.Weights() {
		if w.Storage != "" || w.Data == nil {
			continue
		}
		w.Storage = ir.StorageRegister
		if factor > 0 && w.Data.Size() > factor {
			w.Storage = ir.StorageBRAM
		}
	}
	return false, nil
}

func isResourceMultiply(n *ir.LayerNode) bool {
	switch n.Kind {
	case ir.KindDense, ir.KindLSTM, ir.KindGRU, ir.KindSimpleRNN:
	default:
		return false
	}
	return n.StringAttr("strategy", "") == lowering.StrategyResource && !n.BoolAttr("weights_transposed", false)
}

// applyResourceStrategy stores multiply weights output-major, the layout
// the resource-strategy kernels stream from.
func applyResourceStrategy(_ context.Context, _ *pass.Context, n *ir.LayerNode) (bool, error) {
	for _, w := range n.Weights() {
		if w.Data == nil || w.Data.Rank() != 2 {
			continue
		}
		if !strings.HasPrefix(w.Name, "weight") && !strings.HasPrefix(w.Name, "recurrent_weight") {
			continue
		}
		w.Data = w.Data.Transpose()
	}
	return false, n.SetAttr("weights_transposed", ir.BoolAttr(true))
}

func isPooling(n *ir.LayerNode) bool {
	return n.Kind == ir.KindPooling1D || n.Kind == ir.KindPooling2D
}

// xnorPooling keeps max pooling over binary inputs binary.
func xnorPooling(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	if !strings.EqualFold(n.StringAttr("pool_op", ""), "max") {
		return false, nil
	}
	if _, ok := resultPrecision(inputNode(pc.Model, n)).(ir.XnorPrecisionType); !ok {
		return false, nil
	}
	for _, key := range []string{"result_t", "accum_t"} {
		t, ok := n.TypeAttr(key)
		if !ok {
			continue
		}
		if _, isXnor := t.Precision.(ir.XnorPrecisionType); isXnor {
			continue
		}
		t.Precision = ir.XnorPrecisionType{}
		t.Definition = ""
		if err := n.SetAttr(key, ir.TypeAttr(t)); err != nil {
			return false, err
		}
	}
	return false, nil
}

// removeFinalReshape drops a reshape that produces a model output under
// io_parallel, where it would only copy the array.
func removeFinalReshape(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	if pc.Config.IOType() != config.IOParallel || !pc.Model.IsOutput(n.Name) || len(n.Inputs) != 1 {
		return false, nil
	}
	pc.Log().Warn("final reshape is not needed with io_parallel, removing it", "layer", n.Name)
	if err := pc.Model.Remove(n.Name); err != nil {
		return false, err
	}
	return true, nil
}

func skipSoftmax(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	if !n.BoolAttr("skip", false) || len(n.Inputs) != 1 {
		return false, nil
	}
	if err := pc.Model.Remove(n.Name); err != nil {
		return false, err
	}
	pc.Log().Debug("skipped softmax", "layer", n.Name)
	return true, nil
}

// fixSoftmaxTableSize shrinks the softmax tables to what the input
// precision can address.
func fixSoftmaxTableSize(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	in := resultPrecision(inputNode(pc.Model, n))
	if in == nil {
		return false, nil
	}
	width := in.Bits()
	if width <= 0 || width >= 31 {
		return false, nil
	}
	tableSize := n.IntAttr("table_size", 1024)
	if limit := 1 << width; limit < tableSize {
		pc.Log().Warn("softmax table size exceeds what the input precision can address, shrinking it",
			"layer", n.Name, "table_size", tableSize, "input_bits", width, "new_size", limit)
		return false, n.SetAttr("table_size", ir.IntAttr(limit))
	}
	return false, nil
}

// writeHLS hands the lowered model to the emitter.
func writeHLS(ctx context.Context, pc *pass.Context) (bool, error) {
	if pc.Emitter == nil {
		return false, errors.New("no emitter configured")
	}
	return false, pc.Emitter.Emit(ctx, pc.Model, pc.Config)
}
