package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, empty when all hold.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertAttribute:
			err = assertAttribute(result.Model, a)
		case AssertWeightShape:
			err = assertWeightShape(result.Model, a)
		case AssertLayerAbsent:
			err = assertLayerAbsent(result.Model, a)
		case AssertPassOrder:
			err = assertPassOrder(result.Trace, a)
		case AssertPassCount:
			err = assertPassCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func layer(m *ir.Model, typ, name string) (*ir.LayerNode, error) {
	if m == nil {
		return nil, &AssertionError{Type: typ, Expected: "a lowered model", Actual: "no model"}
	}
	n := m.Node(name)
	if n == nil {
		return nil, &AssertionError{Type: typ, Expected: fmt.Sprintf("layer %s", name), Actual: "layer not found"}
	}
	return n, nil
}

// attrString renders an attribute for comparison. Type attributes render
// as their precision.
func attrString(v ir.AttrValue) string {
	if t, ok := v.(ir.TypeAttr); ok && t.Precision != nil {
		return t.Precision.String()
	}
	return ir.ValueString(v)
}

func assertAttribute(m *ir.Model, a Assertion) error {
	n, err := layer(m, AssertAttribute, a.Layer)
	if err != nil {
		return err
	}
	want := fmt.Sprint(a.Equals)
	v, ok := n.Attr(a.Attr)
	if !ok {
		return &AssertionError{
			Type:     AssertAttribute,
			Expected: fmt.Sprintf("%s.%s = %s", a.Layer, a.Attr, want),
			Actual:   "attribute not set",
		}
	}
	if got := attrString(v); got != want {
		return &AssertionError{
			Type:     AssertAttribute,
			Expected: fmt.Sprintf("%s.%s = %s", a.Layer, a.Attr, want),
			Actual:   got,
		}
	}
	return nil
}

func assertWeightShape(m *ir.Model, a Assertion) error {
	n, err := layer(m, AssertWeightShape, a.Layer)
	if err != nil {
		return err
	}
	w, ok := n.Weight(a.Weight)
	if !ok || w.Data == nil {
		return &AssertionError{
			Type:     AssertWeightShape,
			Expected: fmt.Sprintf("weight %s.%s", a.Layer, a.Weight),
			Actual:   "weight not found",
		}
	}
	if !slices.Equal(w.Data.Shape, a.Shape) {
		return &AssertionError{
			Type:     AssertWeightShape,
			Expected: fmt.Sprintf("%s.%s shape %v", a.Layer, a.Weight, a.Shape),
			Actual:   fmt.Sprintf("%v", w.Data.Shape),
		}
	}
	return nil
}

func assertLayerAbsent(m *ir.Model, a Assertion) error {
	if m != nil && m.Node(a.Layer) != nil {
		return &AssertionError{
			Type:     AssertLayerAbsent,
			Expected: fmt.Sprintf("layer %s removed", a.Layer),
			Actual:   "layer present",
		}
	}
	return nil
}

// assertPassOrder checks that passes first ran in the listed order.
// Other passes may run in between.
func assertPassOrder(trace []engine.PassEvent, a Assertion) error {
	first := make(map[string]int)
	for i, ev := range trace {
		if _, seen := first[ev.Pass]; !seen {
			first[ev.Pass] = i
		}
	}
	for _, p := range a.Passes {
		if _, ok := first[p]; !ok {
			return &AssertionError{
				Type:     AssertPassOrder,
				Expected: fmt.Sprintf("all passes present: %v", a.Passes),
				Actual:   fmt.Sprintf("missing pass: %s", p),
			}
		}
	}
	for i := 1; i < len(a.Passes); i++ {
		prev, cur := a.Passes[i-1], a.Passes[i]
		if first[prev] >= first[cur] {
			return &AssertionError{
				Type:     AssertPassOrder,
				Expected: fmt.Sprintf("passes in order: %v", a.Passes),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, first[prev], cur, first[cur]),
			}
		}
	}
	return nil
}

// assertPassCount checks how many events a pass produced.
func assertPassCount(trace []engine.PassEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Pass == a.Pass && (!a.Changed || ev.Changed) {
			count++
		}
	}
	if count != a.Count {
		what := "events"
		if a.Changed {
			what = "changes"
		}
		return &AssertionError{
			Type:     AssertPassCount,
			Expected: fmt.Sprintf("%s: %d %s", a.Pass, a.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
		}
	}
	return nil
}
