package ir

// LayerKind classifies the computation performed by a layer node.
type LayerKind string

// Layer kinds understood by the lowering engine.
const (
	KindLayer              LayerKind = "Layer" // root of the hierarchy, matches every node
	KindInput              LayerKind = "Input"
	KindDense              LayerKind = "Dense"
	KindConv1D             LayerKind = "Conv1D"
	KindConv2D             LayerKind = "Conv2D"
	KindLSTM               LayerKind = "LSTM"
	KindGRU                LayerKind = "GRU"
	KindSimpleRNN          LayerKind = "SimpleRNN"
	KindActivation         LayerKind = "Activation"
	KindSoftmax            LayerKind = "Softmax"
	KindEmbedding          LayerKind = "Embedding"
	KindBatchNormalization LayerKind = "BatchNormalization"
	KindReshape            LayerKind = "Reshape"
	KindPooling1D          LayerKind = "Pooling1D"
	KindPooling2D          LayerKind = "Pooling2D"
	KindClone              LayerKind = "Clone"
)

// kindParents records the single-inheritance hierarchy between kinds.
// Kinds not listed descend directly from KindLayer.
var kindParents = map[LayerKind]LayerKind{
	KindSoftmax: KindActivation,
}

// ValidKinds lists every concrete kind in declaration order.
var ValidKinds = []LayerKind{
	KindInput,
	KindDense,
	KindConv1D,
	KindConv2D,
	KindLSTM,
	KindGRU,
	KindSimpleRNN,
	KindActivation,
	KindSoftmax,
	KindEmbedding,
	KindBatchNormalization,
	KindReshape,
	KindPooling1D,
	KindPooling2D,
	KindClone,
}

// IsValid reports whether k is a concrete kind.
func (k LayerKind) IsValid() bool {
	for _, v := range ValidKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Parent returns the kind k inherits from. KindLayer has no parent.
func (k LayerKind) Parent() (LayerKind, bool) {
	if k == KindLayer {
		return "", false
	}
	if p, ok := kindParents[k]; ok {
		return p, true
	}
	return KindLayer, true
}

// Lineage returns k followed by its ancestors, ending with KindLayer.
func (k LayerKind) Lineage() []LayerKind {
	lineage := []LayerKind{k}
	for cur := k; ; {
		p, ok := cur.Parent()
		if !ok {
			return lineage
		}
		lineage = append(lineage, p)
		cur = p
	}
}

// KindMatches reports whether a node of kind k is handled by a rule keyed
// by target, i.e. target is k or one of its ancestors.
func KindMatches(k, target LayerKind) bool {
	for _, l := range k.Lineage() {
		if l == target {
			return true
		}
	}
	return false
}
