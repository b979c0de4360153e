package ir

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Model is the layer graph being lowered. Nodes are kept in topological order.
type Model struct {
	Name    string
	Nodes   []*LayerNode
	Outputs []string

	// AppliedFlows records flows already run on this model so dependent
	// flows (e.g. the write flow) do not re-run their prerequisites.
	AppliedFlows map[string]bool

	// Stamp identifies one lowering/build of the model. Set by make_stamp.
	Stamp string
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, AppliedFlows: make(map[string]bool)}
}

// Add appends a node. Names must be unique.
func (m *Model) Add(n *LayerNode) error {
	if m.Node(n.Name) != nil {
		return errors.Newf("duplicate layer name %q", n.Name)
	}
	m.Nodes = append(m.Nodes, n)
	return nil
}

// Node returns the node with the given name, nil if absent.
func (m *Model) Node(name string) *LayerNode {
	for _, n := range m.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// NextIndex returns an index not used by any node.
func (m *Model) NextIndex() int {
	next := 0
	for _, n := range m.Nodes {
		next = max(next, n.Index+1)
	}
	return next
}

// Consumers returns the nodes reading the output of name, in graph order.
func (m *Model) Consumers(name string) []*LayerNode {
	var out []*LayerNode
	for _, n := range m.Nodes {
		if slices.Contains(n.Inputs, name) {
			out = append(out, n)
		}
	}
	return out
}

// IsOutput reports whether name is a model output.
func (m *Model) IsOutput(name string) bool {
	return slices.Contains(m.Outputs, name)
}

// InsertAfter places n directly after the node named after in graph order.
func (m *Model) InsertAfter(after string, n *LayerNode) error {
	if m.Node(n.Name) != nil {
		return errors.Newf("duplicate layer name %q", n.Name)
	}
	for i, cur := range m.Nodes {
		if cur.Name == after {
			m.Nodes = slices.Insert(m.Nodes, i+1, n)
			return nil
		}
	}
	return errors.Newf("layer %q not found", after)
}

// Remove deletes a single-input node and rewires its consumers (and the
// model outputs) to its input.
func (m *Model) Remove(name string) error {
	idx := slices.IndexFunc(m.Nodes, func(n *LayerNode) bool { return n.Name == name })
	if idx < 0 {
		return errors.Newf("layer %q not found", name)
	}
	node := m.Nodes[idx]
	if len(node.Inputs) != 1 {
		return errors.Newf("layer %q has %d inputs, only single-input layers can be removed", name, len(node.Inputs))
	}
	src := node.Inputs[0]
	for _, c := range m.Consumers(name) {
		for i, in := range c.Inputs {
			if in == name {
				c.Inputs[i] = src
			}
		}
	}
	for i, out := range m.Outputs {
		if out == name {
			m.Outputs[i] = src
		}
	}
	m.Nodes = slices.Delete(m.Nodes, idx, idx+1)
	return nil
}

// Rewire points the consumers listed in consumers from old to replacement.
func (m *Model) Rewire(old, replacement string, consumers ...*LayerNode) {
	for _, c := range consumers {
		for i, in := range c.Inputs {
			if in == old {
				c.Inputs[i] = replacement
			}
		}
	}
}
