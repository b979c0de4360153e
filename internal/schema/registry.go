package schema

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/fpgalower/internal/ir"
)

// LayerConfig answers the per-layer configuration queries needed to bind a
// node. Implemented by config.Config.
type LayerConfig interface {
	// LayerValue looks up key (CamelCase) for the node: layer name
	// section first, then layer type, then model section.
	LayerValue(node *ir.LayerNode, key string) (any, bool)
	// LayerPrecision looks up a named precision ("result", "table", ...).
	LayerPrecision(node *ir.LayerNode, name string) (ir.PrecisionType, bool)
	// DefaultPrecision is the model-wide precision.
	DefaultPrecision() ir.PrecisionType
	// Compression reports whether weight compression applies to the node.
	Compression(node *ir.LayerNode) bool
}

// DefaultIndexPrecision is the index width of compressed weights when the
// configuration does not name one.
var DefaultIndexPrecision ir.PrecisionType = ir.NewInteger(16, false)

// InvalidValueError is returned when a configured value cannot be
// converted to the declared attribute type.
type InvalidValueError struct {
	Layer string
	Key   string
	Value any
	Want  string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("layer %s: configuration %s=%v is not a valid %s", e.Layer, e.Key, e.Value, e.Want)
}

// kindSchema is the accumulated schema of one kind under one backend.
// declared keeps every declaration in order, duplicates included;
// resolved maps each name to its last declaration at the position of
// its first one.
type kindSchema struct {
	declared []Attribute
	resolved *orderedmap.OrderedMap[string, Attribute]
}

func newKindSchema(attrs []Attribute) *kindSchema {
	ks := &kindSchema{resolved: orderedmap.New[string, Attribute]()}
	for _, a := range attrs {
		ks.add(a)
	}
	return ks
}

func (ks *kindSchema) add(a Attribute) {
	ks.declared = append(ks.declared, a)
	ks.resolved.Set(a.Name, a)
}

func (ks *kindSchema) list() []Attribute {
	out := make([]Attribute, 0, ks.resolved.Len())
	for pair := ks.resolved.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Allows implements ir.AttrChecker.
func (ks *kindSchema) Allows(key string) bool {
	_, ok := ks.resolved.Get(key)
	return ok
}

// Registry holds base schemas and per-backend extensions.
//
// Extensions are expected during backend construction only; the registry
// is read-only afterwards. The mutex guards against misuse from tests
// that build several backends in parallel.
type Registry struct {
	mu       sync.RWMutex
	base     map[ir.LayerKind][]Attribute
	backends map[string]map[ir.LayerKind]*kindSchema
}

// NewRegistry creates a registry seeded with the base schema of every kind.
func NewRegistry() *Registry {
	return &Registry{
		base:     baseSchemas(),
		backends: make(map[string]map[ir.LayerKind]*kindSchema),
	}
}

func backendKey(backend string) string { return strings.ToLower(backend) }

// kind returns the accumulated schema, seeding it from the base list.
// Caller must hold the write lock.
func (r *Registry) kind(backend string, kind ir.LayerKind) *kindSchema {
	b := backendKey(backend)
	kinds, ok := r.backends[b]
	if !ok {
		kinds = make(map[ir.LayerKind]*kindSchema)
		r.backends[b] = kinds
	}
	ks, ok := kinds[kind]
	if !ok {
		ks = newKindSchema(inheritedBase(r.base, kind))
		kinds[kind] = ks
	}
	return ks
}

// Extend appends attributes to kind's schema under backend. Previously
// declared attributes keep their position; a repeated name overrides the
// earlier declaration. Other backends are unaffected.
func (r *Registry) Extend(backend string, kind ir.LayerKind, attrs ...Attribute) error {
	if !kind.IsValid() {
		return errors.Newf("cannot extend schema of unknown kind %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ks := r.kind(backend, kind)
	for _, a := range attrs {
		ks.add(a)
	}
	return nil
}

// lookupSchema returns the accumulated schema without creating it.
func (r *Registry) lookupSchema(backend string, kind ir.LayerKind) *kindSchema {
	r.mu.RLock()
	ks, ok := r.backends[backendKey(backend)][kind]
	r.mu.RUnlock()
	if ok {
		return ks
	}
	return newKindSchema(inheritedBase(r.base, kind))
}

// Attributes returns kind's resolved schema under backend in declaration
// order, one entry per name.
func (r *Registry) Attributes(backend string, kind ir.LayerKind) []Attribute {
	return r.lookupSchema(backend, kind).list()
}

// Declarations returns every declaration for kind, duplicates included.
func (r *Registry) Declarations(backend string, kind ir.LayerKind) []Attribute {
	ks := r.lookupSchema(backend, kind)
	out := make([]Attribute, len(ks.declared))
	copy(out, ks.declared)
	return out
}

// Lookup returns the last declaration of name for kind under backend.
func (r *Registry) Lookup(backend string, kind ir.LayerKind, name string) (Attribute, bool) {
	return r.lookupSchema(backend, kind).resolved.Get(name)
}

// Checker returns the key checker nodes of kind are bound to.
func (r *Registry) Checker(backend string, kind ir.LayerKind) ir.AttrChecker {
	return r.lookupSchema(backend, kind)
}

// Bind attaches the node to its schema and initializes configurable and
// type attributes not already set. Weight variables pick up the type of
// their role and, under compression, an index precision.
func (r *Registry) Bind(backend string, node *ir.LayerNode, cfg LayerConfig) error {
	if !node.Kind.IsValid() {
		return errors.Newf("layer %s: unknown kind %q", node.Name, node.Kind)
	}
	ks := r.lookupSchema(backend, node.Kind)
	if err := node.Bind(ks); err != nil {
		return err
	}

	for _, a := range ks.list() {
		if node.HasAttr(a.Name) && a.Category != CategoryType {
			continue
		}
		var err error
		switch a.Category {
		case CategoryConfigurable:
			err = bindConfigurable(node, a, cfg)
		case CategoryType:
			err = bindType(node, a, cfg)
		case CategoryWeight:
			if _, ok := node.Weight(a.Name); ok {
				err = node.SetAttr(a.Name, ir.TensorRef(a.Name))
			}
		}
		if err != nil {
			return err
		}
	}

	compress := cfg.Compression(node)
	for _, w := range node.Weights() {
		if t, ok := node.TypeAttr(w.Name + "_t"); ok {
			w.Type = t
		}
		if compress && w.Name == "weight" {
			w.Compression = true
			w.IndexPrecision = DefaultIndexPrecision
			if p, ok := cfg.LayerPrecision(node, "index"); ok {
				w.IndexPrecision = p
			}
		}
	}
	return nil
}

func bindConfigurable(node *ir.LayerNode, a Attribute, cfg LayerConfig) error {
	raw, ok := cfg.LayerValue(node, a.ConfigKey())
	if !ok {
		if a.Default == nil {
			return nil
		}
		return node.SetAttr(a.Name, a.Default)
	}
	v, err := Coerce(a.Default, raw)
	if err != nil {
		return &InvalidValueError{Layer: node.Name, Key: a.ConfigKey(), Value: raw, Want: a.ValueType}
	}
	return node.SetAttr(a.Name, v)
}

// bindType fills a type attribute. An existing attribute keeps its
// precision but gets a name if it lacks one.
func bindType(node *ir.LayerNode, a Attribute, cfg LayerConfig) error {
	name := node.Name + "_" + a.Name
	if existing, ok := node.TypeAttr(a.Name); ok {
		if existing.Name != "" {
			return nil
		}
		existing.Name = name
		return node.SetAttr(a.Name, ir.TypeAttr(existing))
	}

	var p ir.PrecisionType
	if cp, ok := cfg.LayerPrecision(node, strings.TrimSuffix(a.Name, "_t")); ok {
		p = cp
	} else if def, ok := a.Default.(ir.TypeAttr); ok && def.Precision != nil {
		p = def.Precision
	} else {
		p = cfg.DefaultPrecision()
	}
	return node.SetAttr(a.Name, ir.NewNamedTypeAttr(name, p))
}

// Coerce converts a raw configuration value to the type of def.
func Coerce(def ir.AttrValue, raw any) (ir.AttrValue, error) {
	switch def.(type) {
	case ir.IntAttr:
		switch v := raw.(type) {
		case int:
			return ir.IntAttr(v), nil
		case int64:
			return ir.IntAttr(v), nil
		case float64:
			if v == float64(int64(v)) {
				return ir.IntAttr(int64(v)), nil
			}
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err == nil {
				return ir.IntAttr(n), nil
			}
		}
	case ir.FloatAttr:
		switch v := raw.(type) {
		case int:
			return ir.FloatAttr(v), nil
		case int64:
			return ir.FloatAttr(v), nil
		case float64:
			return ir.FloatAttr(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err == nil {
				return ir.FloatAttr(f), nil
			}
		}
	case ir.BoolAttr:
		switch v := raw.(type) {
		case bool:
			return ir.BoolAttr(v), nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err == nil {
				return ir.BoolAttr(b), nil
			}
		}
	case ir.StringAttr:
		switch v := raw.(type) {
		case string:
			return ir.StringAttr(v), nil
		case int, int64, float64, bool:
			return ir.StringAttr(fmt.Sprint(v)), nil
		}
	}
	return nil, errors.Newf("cannot convert %v (%T) to %T", raw, raw, def)
}
