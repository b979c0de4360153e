package optimizer

import (
	"context"

	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/lowering"
	"github.com/roach88/fpgalower/internal/pass"
)

// layerTemplate lists what the code template of one kind reads.
type layerTemplate struct {
	kind    ir.LayerKind
	name    string
	attrs   []string
	weights []string
}

var recurrentTemplateAttrs = []string{"reuse_factor", "recurrent_reuse_factor", "strategy", "index_t", "table_size", "table_t"}

var layerTemplates = []layerTemplate{
	{kind: ir.KindDense, name: "dense",
		attrs: []string{"reuse_factor", "strategy", "index_t", "accum_t", "result_t", "rfpad", "bfpad"}, weights: []string{"weight"}},
	{kind: ir.KindConv1D, name: "conv1d",
		attrs: []string{"reuse_factor", "strategy", "parallelization", "implementation", "impl_filt_width", "n_partitions"}, weights: []string{"weight"}},
	{kind: ir.KindConv2D, name: "conv2d",
		attrs: []string{"reuse_factor", "strategy", "parallelization", "implementation", "impl_filt_width", "impl_filt_height", "n_partitions"}, weights: []string{"weight"}},
	{kind: ir.KindLSTM, name: "lstm", attrs: recurrentTemplateAttrs,
		weights: []string{"weight_i", "weight_f", "weight_c", "weight_o"}},
	{kind: ir.KindGRU, name: "gru", attrs: recurrentTemplateAttrs, weights: []string{"weight", "recurrent_weight"}},
	{kind: ir.KindSimpleRNN, name: "simple_rnn", attrs: []string{"recurrent_reuse_factor", "table_size", "table_t"}},
	{kind: ir.KindActivation, name: "activation", attrs: []string{"activation", "table_size", "table_t"}},
	{kind: ir.KindSoftmax, name: "softmax", attrs: []string{"implementation", "table_size", "exp_table_t", "inv_table_t"}},
	{kind: ir.KindEmbedding, name: "embedding", attrs: []string{"n_in"}, weights: []string{"embeddings"}},
	{kind: ir.KindBatchNormalization, name: "batch_normalization", weights: []string{"scale", "bias"}},
	{kind: ir.KindPooling1D, name: "pooling1d", attrs: []string{"pool_op"}},
	{kind: ir.KindPooling2D, name: "pooling2d", attrs: []string{"pool_op"}},
	{kind: ir.KindClone, name: "clone", attrs: []string{"n_clones"}},
}

// Templates returns one config template pass per templated kind. Each
// checks that the attributes its template reads are resolved and records
// the template name on the node.
func Templates() []pass.Pass {
	out := make([]pass.Pass, 0, len(layerTemplates))
	for _, lt := range layerTemplates {
		match := func(n *ir.LayerNode) bool { return n.Kind == lt.kind }
		out = append(out, pass.NodeFunc(lt.name+templatePassNameSuffix, match,
			func(_ context.Context, _ *pass.Context, n *ir.LayerNode) (bool, error) {
				return false, lt.apply(n)
			}))
	}
	return out
}

// TemplateNames returns the qualified names of the template passes.
func TemplateNames(backend string) []string {
	out := make([]string, 0, len(layerTemplates))
	for _, lt := range layerTemplates {
		out = append(out, pass.Qualify(backend, lt.name+templatePassNameSuffix))
	}
	return out
}

func (lt layerTemplate) apply(n *ir.LayerNode) error {
	for _, key := range lt.attrs {
		if !n.HasAttr(key) {
			return &lowering.MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: key,
				Reason: "read by the " + lt.name + " template"}
		}
	}
	for _, role := range lt.weights {
		if _, ok := n.Weight(role); !ok {
			return &lowering.MissingAttributeError{Layer: n.Name, Kind: n.Kind, Attribute: role,
				Reason: "weight read by the " + lt.name + " template"}
		}
	}
	return n.SetAttr("template", ir.StringAttr(lt.name+"_config"))
}
