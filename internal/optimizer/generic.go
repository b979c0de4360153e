package optimizer

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/pass"
)

func isLinearActivation(n *ir.LayerNode) bool {
	return n.Kind == ir.KindActivation && n.StringAttr("activation", "") == "linear" && len(n.Inputs) == 1
}

// eliminateLinearActivation removes identity activations, rewiring their
// consumers to the activation's input.
func eliminateLinearActivation(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	if err := pc.Model.Remove(n.Name); err != nil {
		return false, err
	}
	pc.Log().Debug("removed linear activation", "layer", n.Name)
	return true, nil
}

// fuseBatchNormalization folds a batch normalization into the one feeding
// it when that one has no other consumer:
//
//	y = s2*(s1*x + b1) + b2 = (s1*s2)*x + (b1*s2 + b2)
func fuseBatchNormalization(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	prev := inputNode(pc.Model, n)
	if prev == nil || prev.Kind != ir.KindBatchNormalization {
		return false, nil
	}
	if len(pc.Model.Consumers(prev.Name)) != 1 || pc.Model.IsOutput(prev.Name) {
		return false, nil
	}

	s1, b1, ok1 := scaleBias(prev)
	s2, b2, ok2 := scaleBias(n)
	if !ok1 || !ok2 {
		return false, nil
	}
	if len(s1.Data) != len(s2.Data) || len(b1.Data) != len(b2.Data) || len(s1.Data) != len(b1.Data) {
		return false, errors.Newf("cannot fuse %s into %s: parameter sizes %d and %d differ",
			prev.Name, n.Name, len(s1.Data), len(s2.Data))
	}

	scale := s2.Clone()
	bias := b2.Clone()
	for i := range scale.Data {
		scale.Data[i] = s1.Data[i] * s2.Data[i]
		bias.Data[i] = b1.Data[i]*s2.Data[i] + b2.Data[i]
	}
	sw, _ := n.Weight("scale")
	bw, _ := n.Weight("bias")
	sw.Data, bw.Data = scale, bias

	n.InputShapes = prev.InputShapes
	if err := pc.Model.Remove(prev.Name); err != nil {
		return false, err
	}
	pc.Log().Debug("fused batch normalization", "removed", prev.Name, "into", n.Name)
	return true, nil
}

func scaleBias(n *ir.LayerNode) (scale, bias *ir.Tensor, ok bool) {
	s, okS := n.Weight("scale")
	b, okB := n.Weight("bias")
	if !okS || !okB || s.Data == nil || b.Data == nil {
		return nil, nil, false
	}
	return s.Data, b.Data, true
}

// makeStamp assigns the model a build stamp once.
func makeStamp(_ context.Context, pc *pass.Context) (bool, error) {
	if pc.Model.Stamp != "" {
		return false, nil
	}
	if pc.Stamper == nil {
		return false, errors.New("no stamp generator configured")
	}
	pc.Model.Stamp = pc.Stamper()
	pc.Log().Debug("stamped model", "stamp", pc.Model.Stamp)
	return true, nil
}
