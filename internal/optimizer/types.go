package optimizer

import (
	"context"
	"fmt"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/pass"
)

// inferPrecisionTypes replaces "auto" precisions. Multiply layers widen
// the accumulator to hold the full dot product; other layers take their
// input's precision; anything still unknown gets the model precision.
func inferPrecisionTypes(_ context.Context, pc *pass.Context, n *ir.LayerNode) (bool, error) {
	for _, key := range n.AttrKeys() {
		t, ok := n.TypeAttr(key)
		if !ok || t.Precision == nil || !ir.IsUnspecified(t.Precision) {
			continue
		}
		p := inferPrecision(pc, n, key)
		t.Precision = p
		if err := n.SetAttr(key, ir.TypeAttr(t)); err != nil {
			return false, err
		}
		pc.Log().Debug("inferred precision", "layer", n.Name, "attribute", key, "precision", p.String())
	}
	for _, w := range n.Weights() {
		if t, ok := n.TypeAttr(w.Name + "_t"); ok {
			w.Type = t
		}
	}
	return false, nil
}

func inferPrecision(pc *pass.Context, n *ir.LayerNode, key string) ir.PrecisionType {
	in := resultPrecision(inputNode(pc.Model, n))
	switch n.Kind {
	case ir.KindDense, ir.KindConv1D, ir.KindConv2D:
		if key == "accum_t" || key == "result_t" {
			if p := accumPrecision(n, in); p != nil {
				return p
			}
		}
	}
	if key == "result_t" && in != nil {
		return in
	}
	return pc.Config.DefaultPrecision()
}

// accumPrecision sizes a dot product accumulator: input bits plus weight
// bits plus log2 of the number of terms.
func accumPrecision(n *ir.LayerNode, in ir.PrecisionType) ir.PrecisionType {
	inFixed, ok := asFixed(in)
	if !ok {
		return nil
	}
	wt, ok := n.TypeAttr("weight_t")
	if !ok {
		return nil
	}
	wFixed, ok := asFixed(wt.Precision)
	if !ok {
		return nil
	}
	terms := 1
	if w, ok := n.Weight("weight"); ok && w.Data != nil && w.Data.Rank() > 0 {
		for _, d := range w.Data.Shape[:w.Data.Rank()-1] {
			terms *= d
		}
	}
	extra := bits.Len(uint(max(terms-1, 0)))
	return ir.FixedPrecisionType{
		Width:   inFixed.Width + wFixed.Width + extra,
		Integer: inFixed.Integer + wFixed.Integer + extra,
		Signed:  inFixed.Signed || wFixed.Signed,
	}
}

func asFixed(p ir.PrecisionType) (ir.FixedPrecisionType, bool) {
	switch v := p.(type) {
	case ir.FixedPrecisionType:
		return v, true
	case ir.IntegerPrecisionType:
		return ir.FixedPrecisionType{Width: v.Width, Integer: v.Width, Signed: v.Signed}, true
	}
	return ir.FixedPrecisionType{}, false
}

// transformTypes fills in the oneAPI spelling of every named type on the
// node and its weights.
func transformTypes(_ context.Context, _ *pass.Context, n *ir.LayerNode) (bool, error) {
	for _, key := range n.AttrKeys() {
		t, ok := n.TypeAttr(key)
		if !ok || t.Definition != "" || t.Precision == nil {
			continue
		}
		def, err := ACDefinition(t.Precision)
		if err != nil {
			return false, errors.Wrapf(err, "layer %s attribute %s", n.Name, key)
		}
		t.Definition = def
		if err := n.SetAttr(key, ir.TypeAttr(t)); err != nil {
			return false, err
		}
	}
	for _, w := range n.Weights() {
		if w.Type.Definition != "" || w.Type.Precision == nil {
			continue
		}
		def, err := ACDefinition(w.Type.Precision)
		if err != nil {
			return false, errors.Wrapf(err, "layer %s weight %s", n.Name, w.Name)
		}
		w.Type.Definition = def
	}
	return false, nil
}

// ACDefinition spells p as an Algorithmic C type.
func ACDefinition(p ir.PrecisionType) (string, error) {
	switch v := p.(type) {
	case ir.FixedPrecisionType:
		if v.Rounding == "" && v.Saturation == "" {
			return fmt.Sprintf("ac_fixed<%d,%d,%t>", v.Width, v.Integer, v.Signed), nil
		}
		return fmt.Sprintf("ac_fixed<%d,%d,%t,%s,%s>", v.Width, v.Integer, v.Signed,
			acMode(v.Rounding, "AC_TRN"), acMode(v.Saturation, "AC_WRAP")), nil
	case ir.IntegerPrecisionType:
		return fmt.Sprintf("ac_int<%d,%t>", v.Width, v.Signed), nil
	case ir.XnorPrecisionType:
		return "ac_int<1,false>", nil
	case ir.UnspecifiedPrecisionType:
		return "", errors.New("precision was not inferred before type transformation")
	}
	return "", errors.Newf("unsupported precision %v", p)
}

func acMode(mode, def string) string {
	if mode == "" {
		return def
	}
	mode = strings.ToUpper(mode)
	if strings.HasPrefix(mode, "AC_") {
		return mode
	}
	return "AC_" + mode
}
