package ir

import (
	"fmt"
	"slices"
	"unicode/utf16"
)

// AttrValue is a sealed interface representing the values an attribute may hold.
// Only the types in this file implement it.
type AttrValue interface {
	attrValue() // Sealed - only these types implement it
}

// IntAttr is an integer scalar (sizes, factors, counts).
type IntAttr int64

func (IntAttr) attrValue() {}

// FloatAttr is a floating point scalar (epsilon, momentum, ...).
type FloatAttr float64

func (FloatAttr) attrValue() {}

// StringAttr is a string scalar (strategy, activation name, ...).
type StringAttr string

func (StringAttr) attrValue() {}

// BoolAttr is a boolean flag.
type BoolAttr bool

func (BoolAttr) attrValue() {}

// ShapeAttr is a list of dimensions, e.g. a reshape target.
type ShapeAttr []int

func (ShapeAttr) attrValue() {}

// TypeAttr holds a named precision type such as table_t or index_t.
type TypeAttr NamedType

func (TypeAttr) attrValue() {}

// TensorRef refers to a weight variable of the same node by role name.
type TensorRef string

func (TensorRef) attrValue() {}

// QuantizerAttr holds a quantizer description carried from the source model.
type QuantizerAttr struct {
	Quantizer *Quantizer
}

func (QuantizerAttr) attrValue() {}

// Quantizer describes how a tensor was quantized in the source model.
type Quantizer struct {
	Name    string `json:"name"`
	Bits    int    `json:"bits"`
	Integer int    `json:"integer"`
	Signed  bool   `json:"signed"`
}

// Precision returns the fixed-point type equivalent to the quantizer.
func (q *Quantizer) Precision() PrecisionType {
	if q.Bits == 1 {
		return XnorPrecisionType{}
	}
	return FixedPrecisionType{Width: q.Bits, Integer: q.Integer, Signed: q.Signed}
}

// NewNamedTypeAttr creates a TypeAttr.
func NewNamedTypeAttr(name string, p PrecisionType) TypeAttr {
	return TypeAttr(NewNamedType(name, p))
}

// ValueString renders an attribute value for logs and tables.
func ValueString(v AttrValue) string {
	switch val := v.(type) {
	case nil:
		return "<unset>"
	case IntAttr:
		return fmt.Sprintf("%d", int64(val))
	case FloatAttr:
		return fmt.Sprintf("%g", float64(val))
	case StringAttr:
		return string(val)
	case BoolAttr:
		return fmt.Sprintf("%t", bool(val))
	case ShapeAttr:
		return fmt.Sprintf("%v", []int(val))
	case TypeAttr:
		if val.Precision == nil {
			return val.Name
		}
		return fmt.Sprintf("%s=%s", val.Name, val.Precision.String())
	case TensorRef:
		return "@" + string(val)
	case QuantizerAttr:
		if val.Quantizer == nil {
			return "<no quantizer>"
		}
		return val.Quantizer.Name
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's default string ordering compares UTF-8 bytes, which differs for
// characters outside the BMP.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
