package schema

import "github.com/roach88/fpgalower/internal/ir"

// Descriptions shared by several kinds.
const (
	descReuseFactor = "The number of times each multiplier is used by the layer. " +
		"Must divide the total number of multiplications of the layer."
	descStrategy    = "The implementation strategy of the layer's core operation."
	descTrace       = "Whether the layer output is captured for tracing."
	descTableSize   = "The number of entries of the lookup table approximating the activation."
	descTableType   = "The precision of the lookup table entries."
	descAccumType   = "The precision of the accumulator."
	descResultType  = "The precision of the layer output."
	descImpl        = "Convolution implementation: im2col, winograd or combination."
	descPF          = "The number of output pixels computed in parallel."
	descSkipSoftmax = "Skip the softmax and pass logits through unchanged."
)

// layerBase is the schema shared by every kind.
func layerBase() []Attribute {
	return []Attribute{
		Plain("n_in", "int"),
		Plain("n_out", "int"),
		Plain("target_cycles", "int"),
		Plain("template", "string"),
		Configurable("reuse_factor", ir.IntAttr(1), descReuseFactor),
		Configurable("trace", ir.BoolAttr(false), descTrace),
		Type("result", nil, descResultType),
	}
}

func multiplyBase() []Attribute {
	return []Attribute{
		Plain("rfpad", "int"),
		Plain("bfpad", "int"),
		Plain("weights_transposed", "bool"),
		Plain("weight_quantizer", "quantizer"),
		Plain("bias_quantizer", "quantizer"),
		Configurable("strategy", ir.StringAttr("latency"), descStrategy),
		Weight("weight"),
		Weight("bias"),
		Type("weight", nil, "The precision of the weights."),
		Type("bias", nil, "The precision of the biases."),
		Type("accum", nil, descAccumType),
		Type("index", ir.NewInteger(1, false), "The precision of compressed weight indices."),
	}
}

func convBase() []Attribute {
	attrs := multiplyBase()
	return append(attrs,
		Plain("in_width", "int"),
		Plain("out_width", "int"),
		Plain("n_chan", "int"),
		Plain("n_filt", "int"),
		Plain("filt_width", "int"),
		Plain("stride_width", "int"),
		Plain("pad_left", "int"),
		Plain("pad_right", "int"),
		Plain("impl_filt_width", "int"),
		Plain("parallelization", "int"),
		Plain("n_partitions", "int"),
		Configurable("implementation", ir.StringAttr("im2col"), descImpl),
	)
}

func recurrentBase() []Attribute {
	attrs := multiplyBase()
	return append(attrs,
		Plain("n_timesteps", "int"),
		Plain("return_sequences", "bool"),
		Plain("return_state", "bool"),
		Plain("activation", "string"),
		Plain("recurrent_activation", "string"),
		Plain("recurrent_weight_quantizer", "quantizer"),
		Weight("recurrent_weight"),
		Weight("recurrent_bias"),
		Type("recurrent_weight", nil, "The precision of the recurrent weights."),
		Type("recurrent_bias", nil, "The precision of the recurrent biases."),
	)
}

func activationBase() []Attribute {
	return []Attribute{
		Plain("activation", "string"),
		Plain("recurrent_activation", "string"),
		Configurable("table_size", ir.IntAttr(1024), descTableSize),
		Type("table", ir.NewFixed(18, 8), descTableType),
	}
}

func poolingBase() []Attribute {
	return []Attribute{
		Plain("pool_op", "string"),
		Plain("in_width", "int"),
		Plain("out_width", "int"),
		Plain("n_filt", "int"),
		Plain("pool_width", "int"),
		Plain("stride_width", "int"),
		Type("accum", nil, descAccumType),
	}
}

// baseSchemas lists the attributes each kind declares itself. Inherited
// attributes are added by inheritedBase.
func baseSchemas() map[ir.LayerKind][]Attribute {
	return map[ir.LayerKind][]Attribute{
		ir.KindLayer: layerBase(),
		ir.KindInput: nil,
		ir.KindDense: multiplyBase(),
		ir.KindConv1D: convBase(),
		ir.KindConv2D: append(convBase(),
			Plain("in_height", "int"),
			Plain("out_height", "int"),
			Plain("filt_height", "int"),
			Plain("stride_height", "int"),
			Plain("pad_top", "int"),
			Plain("pad_bottom", "int"),
			Plain("impl_filt_height", "int"),
		),
		ir.KindLSTM:       recurrentBase(),
		ir.KindGRU:        recurrentBase(),
		ir.KindSimpleRNN:  recurrentBase(),
		ir.KindActivation: activationBase(),
		ir.KindSoftmax: {
			Configurable("implementation", ir.StringAttr("stable"), "Softmax implementation: latency, stable or argmax."),
			Configurable("skip", ir.BoolAttr(false), descSkipSoftmax),
			Plain("axis", "int"),
			Type("exp_table", ir.NewFixed(18, 8), "The precision of the exponent table."),
			Type("inv_table", ir.NewFixed(18, 8), "The precision of the inverse table."),
		},
		ir.KindEmbedding: {
			Plain("vocab_size", "int"),
			Weight("embeddings"),
			Type("embeddings", nil, "The precision of the embedding table."),
		},
		ir.KindBatchNormalization: {
			Plain("n_filt", "int"),
			Plain("epsilon", "float"),
			Weight("scale"),
			Weight("bias"),
			Type("scale", nil, "The precision of the scale."),
			Type("bias", nil, "The precision of the bias."),
		},
		ir.KindReshape: {
			Plain("target_shape", "shape"),
		},
		ir.KindPooling1D: poolingBase(),
		ir.KindPooling2D: append(poolingBase(),
			Plain("in_height", "int"),
			Plain("out_height", "int"),
			Plain("pool_height", "int"),
			Plain("stride_height", "int"),
		),
		ir.KindClone: {
			Plain("n_clones", "int"),
		},
	}
}

// inheritedBase returns the base schema of kind with its ancestors'
// attributes first, root of the hierarchy first.
func inheritedBase(own map[ir.LayerKind][]Attribute, kind ir.LayerKind) []Attribute {
	lineage := kind.Lineage()
	var out []Attribute
	for i := len(lineage) - 1; i >= 0; i-- {
		out = append(out, own[lineage[i]]...)
	}
	return out
}
