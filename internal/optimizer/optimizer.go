// Package optimizer holds the graph and type passes that run around the
// per-kind initialization rules.
//
// Generic passes are registered without a backend prefix and may be shared
// by several backends. The oneAPI passes specialize the IR for the oneAPI
// code templates.
package optimizer

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/pass"
)

// Generic pass names.
const (
	EliminateLinearActivation = "eliminate_linear_activation"
	FuseBatchNormalization    = "fuse_consecutive_batch_normalization"
	InferPrecisionTypes       = "infer_precision_types"
	MakeStamp                 = "make_stamp"
)

// oneAPI pass names, unqualified.
const (
	CloneOutput            = "clone_output"
	TransformTypes         = "transform_types"
	RegisterBRAMWeights    = "register_bram_weights"
	ApplyResourceStrategy  = "apply_resource_strategy"
	ApplyWinograd          = "apply_winograd_kernel_transformation"
	XnorPooling            = "xnor_pooling"
	RemoveFinalReshape     = "remove_final_reshape"
	SkipSoftmax            = "skip_softmax"
	FixSoftmaxTableSize    = "fix_softmax_table_size"
	WriteHLS               = "write_hls"
	templatePassNameSuffix = "_config_template"
)

// Generic returns the backend-independent passes.
func Generic() []pass.Pass {
	return []pass.Pass{
		pass.NodeFunc(EliminateLinearActivation, isLinearActivation, eliminateLinearActivation),
		pass.NodeFunc(FuseBatchNormalization, pass.MatchKind(ir.KindBatchNormalization), fuseBatchNormalization),
		pass.NodeFunc(InferPrecisionTypes, pass.MatchKind(ir.KindLayer), inferPrecisionTypes),
		pass.ModelFunc(MakeStamp, makeStamp),
	}
}

// OneAPI returns the oneAPI-specific passes, templates excluded.
func OneAPI() []pass.Pass {
	return []pass.Pass{
		pass.NodeFunc(CloneOutput, pass.MatchKind(ir.KindLayer), cloneOutput),
		pass.NodeFunc(TransformTypes, pass.MatchKind(ir.KindLayer), transformTypes),
		pass.NodeFunc(RegisterBRAMWeights, hasWeights, registerBRAMWeights),
		pass.NodeFunc(ApplyResourceStrategy, isResourceMultiply, applyResourceStrategy),
		pass.NodeFunc(ApplyWinograd, isWinogradCandidate, applyWinograd),
		pass.NodeFunc(XnorPooling, isPooling, xnorPooling),
		pass.NodeFunc(RemoveFinalReshape, pass.MatchKind(ir.KindReshape), removeFinalReshape),
		pass.NodeFunc(SkipSoftmax, pass.MatchKind(ir.KindSoftmax), skipSoftmax),
		pass.NodeFunc(FixSoftmaxTableSize, pass.MatchKind(ir.KindSoftmax), fixSoftmaxTableSize),
		pass.ModelFunc(WriteHLS, writeHLS),
	}
}

// Register adds passes under backend and returns their qualified names in
// order.
func Register(reg *pass.Registry, backend string, passes []pass.Pass) ([]string, error) {
	names := make([]string, 0, len(passes))
	for _, p := range passes {
		name, err := reg.Register(backend, p)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func hasWeights(n *ir.LayerNode) bool { return len(n.Weights()) > 0 }

// inputNode returns the producer of the node's first input.
func inputNode(m *ir.Model, n *ir.LayerNode) *ir.LayerNode {
	if len(n.Inputs) == 0 {
		return nil
	}
	return m.Node(n.Inputs[0])
}

// resultPrecision returns the output precision of n, nil when unknown.
func resultPrecision(n *ir.LayerNode) ir.PrecisionType {
	if n == nil {
		return nil
	}
	t, ok := n.TypeAttr("result_t")
	if !ok || t.Precision == nil || ir.IsUnspecified(t.Precision) {
		return nil
	}
	return t.Precision
}

func errShape(t *ir.Tensor, want string) error {
	return errors.Newf("kernel shape %v, want %s", t.Shape, want)
}
