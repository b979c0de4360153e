package schema

import (
	"strings"

	"github.com/roach88/fpgalower/internal/ir"
)

// Category classifies how an attribute gets its value.
type Category int

const (
	// CategoryPlain attributes are set by the graph builder or by passes.
	CategoryPlain Category = iota
	// CategoryConfigurable attributes are read from layer configuration,
	// falling back to a default.
	CategoryConfigurable
	// CategoryType attributes hold a named precision type.
	CategoryType
	// CategoryWeight attributes name a weight role of the layer.
	CategoryWeight
)

func (c Category) String() string {
	switch c {
	case CategoryPlain:
		return "plain"
	case CategoryConfigurable:
		return "configurable"
	case CategoryType:
		return "type"
	case CategoryWeight:
		return "weight"
	default:
		return "unknown"
	}
}

// Attribute declares one key of a layer kind's schema.
type Attribute struct {
	Name     string
	Category Category
	// ValueType documents the expected value ("int", "string", "type", ...).
	ValueType string
	// Default is used by configurable attributes when the layer
	// configuration is silent. For type attributes it is a TypeAttr whose
	// Precision may be nil, meaning "use the model precision".
	Default     ir.AttrValue
	Description string
}

// Plain declares an attribute written by the graph builder or a pass.
func Plain(name, valueType string) Attribute {
	return Attribute{Name: name, Category: CategoryPlain, ValueType: valueType}
}

// Configurable declares an attribute read from layer configuration under
// its CamelCase key.
func Configurable(name string, def ir.AttrValue, description string) Attribute {
	return Attribute{
		Name:        name,
		Category:    CategoryConfigurable,
		ValueType:   valueTypeOf(def),
		Default:     def,
		Description: description,
	}
}

// Type declares a named type attribute. The schema key is name + "_t".
// A nil precision defers to the model default precision.
func Type(name string, def ir.PrecisionType, description string) Attribute {
	return Attribute{
		Name:        name + "_t",
		Category:    CategoryType,
		ValueType:   "type",
		Default:     ir.TypeAttr(ir.NamedType{Precision: def}),
		Description: description,
	}
}

// Weight declares a weight role of the layer.
func Weight(name string) Attribute {
	return Attribute{Name: name, Category: CategoryWeight, ValueType: "tensor"}
}

// ConfigKey returns the layer configuration key of a configurable
// attribute, e.g. reuse_factor -> ReuseFactor.
func (a Attribute) ConfigKey() string {
	return ConfigKey(a.Name)
}

// ConfigKey converts a snake_case attribute name into the CamelCase key
// used by layer configuration.
func ConfigKey(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func valueTypeOf(v ir.AttrValue) string {
	switch v.(type) {
	case ir.IntAttr:
		return "int"
	case ir.FloatAttr:
		return "float"
	case ir.StringAttr:
		return "string"
	case ir.BoolAttr:
		return "bool"
	case ir.ShapeAttr:
		return "shape"
	case ir.TypeAttr:
		return "type"
	case ir.TensorRef:
		return "tensor"
	case ir.QuantizerAttr:
		return "quantizer"
	default:
		return "any"
	}
}
