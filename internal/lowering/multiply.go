package lowering

import (
	"log/slog"

	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/reuse"
)

// multShape derives the multiply shape of a weight tensor: n_out is the
// last dimension, n_in the product of the others.
func multShape(t *ir.Tensor) (nIn, nOut int) {
	if t == nil || t.Rank() == 0 {
		return 0, 0
	}
	nOut = t.Shape[t.Rank()-1]
	nIn = 1
	for _, d := range t.Shape[:t.Rank()-1] {
		nIn *= d
	}
	return nIn, nOut
}

// layerMultSize returns the multiply shape of role's weight, falling back
// to the n_in/n_out attributes when the layer has no such weight.
func layerMultSize(n *ir.LayerNode, role string) (int, int, error) {
	if w, ok := n.Weight(role); ok && w.Data != nil {
		nIn, nOut := multShape(w.Data)
		if nIn > 0 && nOut > 0 {
			return nIn, nOut, nil
		}
		return 0, 0, shapeErrorf(n, "weight %q has degenerate shape %v", role, w.Data.Shape)
	}
	nIn, nOut := n.IntAttr("n_in", 0), n.IntAttr("n_out", 0)
	if nIn <= 0 {
		return 0, 0, &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "n_in",
			Reason: "no " + role + " tensor to derive the multiply shape from"}
	}
	if nOut <= 0 {
		return 0, 0, &MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: "n_out",
			Reason: "no " + role + " tensor to derive the multiply shape from"}
	}
	return nIn, nOut, nil
}

// setClosestReuseFactor replaces the factor stored under attr with the
// closest valid one, warning when it differs from the request.
func setClosestReuseFactor(log *slog.Logger, n *ir.LayerNode, nIn, nOut int, attr string) error {
	return snapReuseFactor(log, n, nIn, nOut, attr, float64(n.IntAttr(attr, 1)))
}

func snapReuseFactor(log *slog.Logger, n *ir.LayerNode, nIn, nOut int, attr string, requested float64) error {
	rf, err := reuse.ClosestTo(nIn, nOut, requested)
	if err != nil {
		return shapeErrorf(n, "%v", err)
	}
	if float64(rf) != requested {
		log.Warn("invalid reuse factor, using closest valid value",
			"layer", n.Name, "attribute", attr, "requested", requested, "chosen", rf,
			"valid", reuse.Divisors(nIn*nOut))
	}
	return n.SetAttr(attr, ir.IntAttr(rf))
}

// setTargetReuseFactor resolves reuse_factor against the multiply shape,
// using the cycle budget as the request when one is configured.
func setTargetReuseFactor(log *slog.Logger, n *ir.LayerNode, nIn, nOut int) error {
	target := n.IntAttr("target_cycles", 0)
	if target <= 0 {
		return setClosestReuseFactor(log, n, nIn, nOut, "reuse_factor")
	}
	km := 1
	switch n.Kind {
	case ir.KindConv1D:
		km = n.IntAttr("out_width", 1)
	case ir.KindConv2D:
		km = n.IntAttr("out_height", 1) * n.IntAttr("out_width", 1)
	}
	requested, ok := reuse.Target(target, km)
	if !ok {
		log.Warn("latency target cannot be achieved",
			"layer", n.Name, "target_cycles", target, "minimum", reuse.ShuffleCycles*km+1)
		return setClosestReuseFactor(log, n, nIn, nOut, "reuse_factor")
	}
	return snapReuseFactor(log, n, nIn, nOut, "reuse_factor", requested)
}
