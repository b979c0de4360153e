package ir

import (
	"fmt"
	"slices"
)

// AttrChecker decides whether a key belongs to a node's attribute schema.
// It is provided by the schema registry when a node is bound to a backend.
type AttrChecker interface {
	Allows(key string) bool
}

// UnknownAttributeError is returned when a write names a key that is not
// part of the node's schema.
type UnknownAttributeError struct {
	Node string
	Kind LayerKind
	Key  string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("layer %s (%s): attribute %q is not declared for this kind", e.Node, e.Kind, e.Key)
}

// LayerNode is one layer of the model graph.
//
// Nodes are owned by their Model and mutated in place by whichever pass
// currently holds the traversal. There is no internal locking.
type LayerNode struct {
	Index       int
	Kind        LayerKind
	Name        string
	Inputs      []string // producer node names, ordered
	InputShapes [][]int
	OutputShape []int

	attrs   map[string]AttrValue
	weights []*WeightVariable
	checker AttrChecker
}

// NewLayerNode creates an unbound node with no attributes.
func NewLayerNode(index int, kind LayerKind, name string) *LayerNode {
	return &LayerNode{
		Index: index,
		Kind:  kind,
		Name:  name,
		attrs: make(map[string]AttrValue),
	}
}

// Bind attaches the schema checker used to validate attribute writes.
// Attributes already present are checked against it.
func (n *LayerNode) Bind(c AttrChecker) error {
	for _, k := range sortedKeys(n.attrs) {
		if !c.Allows(k) {
			return &UnknownAttributeError{Node: n.Name, Kind: n.Kind, Key: k}
		}
	}
	n.checker = c
	return nil
}

// Bound reports whether a schema checker is attached.
func (n *LayerNode) Bound() bool { return n.checker != nil }

// SetAttr writes an attribute. The key must be declared by the bound schema;
// unbound nodes accept any key (graph construction time).
func (n *LayerNode) SetAttr(key string, v AttrValue) error {
	if n.checker != nil && !n.checker.Allows(key) {
		return &UnknownAttributeError{Node: n.Name, Kind: n.Kind, Key: key}
	}
	n.attrs[key] = v
	return nil
}

// Attr returns the attribute value for key.
func (n *LayerNode) Attr(key string) (AttrValue, bool) {
	v, ok := n.attrs[key]
	return v, ok
}

// HasAttr reports whether key is set.
func (n *LayerNode) HasAttr(key string) bool {
	_, ok := n.attrs[key]
	return ok
}

// IntAttr returns an integer attribute, or def when absent or not an integer.
func (n *LayerNode) IntAttr(key string, def int) int {
	if v, ok := n.attrs[key].(IntAttr); ok {
		return int(v)
	}
	return def
}

// StringAttr returns a string attribute, or def when absent.
func (n *LayerNode) StringAttr(key, def string) string {
	if v, ok := n.attrs[key].(StringAttr); ok {
		return string(v)
	}
	return def
}

// BoolAttr returns a boolean attribute, or def when absent.
func (n *LayerNode) BoolAttr(key string, def bool) bool {
	if v, ok := n.attrs[key].(BoolAttr); ok {
		return bool(v)
	}
	return def
}

// FloatAttr returns a float attribute (integers are widened), or def.
func (n *LayerNode) FloatAttr(key string, def float64) float64 {
	switch v := n.attrs[key].(type) {
	case FloatAttr:
		return float64(v)
	case IntAttr:
		return float64(v)
	}
	return def
}

// TypeAttr returns a named type attribute.
func (n *LayerNode) TypeAttr(key string) (NamedType, bool) {
	v, ok := n.attrs[key].(TypeAttr)
	return NamedType(v), ok
}

// Quantizer returns the quantizer stored under key, nil if none.
func (n *LayerNode) Quantizer(key string) *Quantizer {
	if v, ok := n.attrs[key].(QuantizerAttr); ok {
		return v.Quantizer
	}
	return nil
}

// AttrKeys returns attribute keys in canonical order.
func (n *LayerNode) AttrKeys() []string {
	return sortedKeys(n.attrs)
}

// Weights returns weight variables in insertion order.
func (n *LayerNode) Weights() []*WeightVariable {
	return slices.Clone(n.weights)
}

// Weight looks up a weight variable by role name.
func (n *LayerNode) Weight(name string) (*WeightVariable, bool) {
	for _, w := range n.weights {
		if w.Name == name {
			return w, true
		}
	}
	return nil, false
}

// AddWeight attaches a weight variable, replacing one with the same name.
func (n *LayerNode) AddWeight(w *WeightVariable) {
	for i, cur := range n.weights {
		if cur.Name == w.Name {
			n.weights[i] = w
			return
		}
	}
	n.weights = append(n.weights, w)
}

// InputShape returns the shape of the first input, nil for source nodes.
func (n *LayerNode) InputShape() []int {
	if len(n.InputShapes) == 0 {
		return nil
	}
	return n.InputShapes[0]
}

func (n *LayerNode) String() string {
	return fmt.Sprintf("%s(%s#%d)", n.Name, n.Kind, n.Index)
}
