package lowering

import "github.com/roach88/fpgalower/internal/ir"

// attrSetter writes attributes to one node and keeps the first error, so
// a rule can issue a run of writes and check once.
type attrSetter struct {
	node *ir.LayerNode
	err  error
}

func set(n *ir.LayerNode) *attrSetter { return &attrSetter{node: n} }

func (s *attrSetter) attr(key string, v ir.AttrValue) *attrSetter {
	if s.err == nil {
		s.err = s.node.SetAttr(key, v)
	}
	return s
}

func (s *attrSetter) int(key string, v int) *attrSetter {
	return s.attr(key, ir.IntAttr(v))
}

func (s *attrSetter) str(key, v string) *attrSetter {
	return s.attr(key, ir.StringAttr(v))
}
