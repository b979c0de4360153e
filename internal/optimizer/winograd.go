package optimizer

import (
	"context"

	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/lowering"
	"github.com/roach88/fpgalower/internal/pass"
)

// WinogradG is the kernel transform of Winograd F(2,3).
var WinogradG = [4][3]float64{
	{1, 0, 0},
	{0.5, 0.5, 0.5},
	{0.5, -0.5, 0.5},
	{0, 0, 1},
}

func isWinogradCandidate(n *ir.LayerNode) bool {
	if n.Kind != ir.KindConv1D && n.Kind != ir.KindConv2D {
		return false
	}
	switch n.StringAttr("implementation", "") {
	case lowering.ImplWinograd, lowering.ImplCombination:
	default:
		return false
	}
	if n.IntAttr("impl_filt_width", 0) != 3 || n.IntAttr("stride_width", 1) != 1 {
		return false
	}
	if n.Kind == ir.KindConv2D {
		return n.IntAttr("impl_filt_height", 0) == 3 && n.IntAttr("stride_height", 1) == 1
	}
	return true
}

// applyWinograd replaces 3-tap kernels g with U = G·g (Conv1D) or
// U = G·g·Gᵀ (Conv2D) and widens the implementation filter to 4.
func applyWinograd(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	w, ok := n.Weight("weight")
	if !ok || w.Data == nil {
		return false, nil
	}
	var (
		u   *ir.Tensor
		err error
	)
	if n.Kind == ir.KindConv1D {
		u, err = WinogradKernel1D(w.Data)
	} else {
		u, err = WinogradKernel2D(w.Data)
	}
	if err != nil {
		pc.Log().Warn("winograd transform not applicable, keeping im2col kernel", "layer", n.Name, "error", err)
		return false, nil
	}
	w.Data = u

	if err := n.SetAttr("impl_filt_width", ir.IntAttr(4)); err != nil {
		return false, err
	}
	if n.Kind == ir.KindConv2D {
		return false, n.SetAttr("impl_filt_height", ir.IntAttr(4))
	}
	return false, nil
}

// WinogradKernel1D transforms a (3, C, F) kernel into (4, C, F).
func WinogradKernel1D(g *ir.Tensor) (*ir.Tensor, error) {
	if g.Rank() != 3 || g.Shape[0] != 3 {
		return nil, errShape(g, "(3, C, F)")
	}
	c, f := g.Shape[1], g.Shape[2]
	u := ir.Zeros(4, c, f)
	for i := range 4 {
		for ch := range c {
			for fl := range f {
				var sum float64
				for k := range 3 {
					sum += WinogradG[i][k] * g.At(k, ch, fl)
				}
				u.Set(sum, i, ch, fl)
			}
		}
	}
	return u, nil
}

// WinogradKernel2D transforms a (3, 3, C, F) kernel into (4, 4, C, F).
func WinogradKernel2D(g *ir.Tensor) (*ir.Tensor, error) {
	if g.Rank() != 4 || g.Shape[0] != 3 || g.Shape[1] != 3 {
		return nil, errShape(g, "(3, 3, C, F)")
	}
	c, f := g.Shape[2], g.Shape[3]
	u := ir.Zeros(4, 4, c, f)
	for ch := range c {
		for fl := range f {
			// tmp = G·g, then U = tmp·Gᵀ
			var tmp [4][3]float64
			for i := range 4 {
				for l := range 3 {
					for k := range 3 {
						tmp[i][l] += WinogradG[i][k] * g.At(k, l, ch, fl)
					}
				}
			}
			for i := range 4 {
				for j := range 4 {
					var sum float64
					for l := range 3 {
						sum += tmp[i][l] * WinogradG[j][l]
					}
					u.Set(sum, i, j, ch, fl)
				}
			}
		}
	}
	return u, nil
}
