package lowering

import (
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/schema"
)

// Attributes returns the attributes this backend adds to the base schema
// of each kind.
func Attributes() map[ir.LayerKind][]schema.Attribute {
	rnn := []schema.Attribute{
		schema.Configurable("recurrent_reuse_factor", ir.IntAttr(1),
			"The reuse factor of the recurrent weight multiplication."),
		schema.Configurable("table_size", ir.IntAttr(1024),
			"The number of entries of the activation lookup tables."),
		schema.Type("table", ir.NewFixed(18, 8), "The precision of the activation lookup tables."),
	}
	conv := []schema.Attribute{
		schema.Configurable("parallelization_factor", ir.IntAttr(1),
			"The number of output pixels computed in parallel."),
	}
	return map[ir.LayerKind][]schema.Attribute{
		ir.KindConv1D:    conv,
		ir.KindConv2D:    conv,
		ir.KindLSTM:      rnn,
		ir.KindGRU:       rnn,
		ir.KindSimpleRNN: rnn,
	}
}

// ExtendSchema installs Attributes under backend.
func ExtendSchema(reg *schema.Registry, backend string) error {
	attrs := Attributes()
	for _, kind := range ir.ValidKinds {
		if extra, ok := attrs[kind]; ok {
			if err := reg.Extend(backend, kind, extra...); err != nil {
				return err
			}
		}
	}
	return nil
}
