// Package loader reads generic layer graphs described in CUE and model
// configurations in YAML.
//
// A model file is a CUE struct validated against the #Model definition in
// schema.cue:
//
//	name: "mlp"
//	layers: [
//		{name: "input", kind: "Input", output_shape: [8]},
//		{name: "fc1", kind: "Dense", inputs: ["input"], output_shape: [4],
//		 attrs: {n_in: 8, n_out: 4},
//		 weights: weight: {shape: [8, 4], init: "arange"}},
//	]
//	outputs: ["fc1"]
//
// Layers must be listed in topological order. Input shapes are derived
// from the producers' output shapes.
package loader

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// LoadError reports an invalid model description, with the CUE position
// of the offending value when known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsLoadError reports whether err is a LoadError.
// Uses errors.As to handle wrapped errors.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Loader reads models and configurations from a filesystem.
type Loader struct {
	fs afero.Fs
}

// New creates a loader over fs. A nil fs selects the OS filesystem.
func New(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs}
}

// LoadModel reads and decodes a CUE model file.
func (l *Loader) LoadModel(path string) (*ir.Model, error) {
	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read model %s", path)
	}
	return ParseModel(path, src)
}

// LoadConfig reads a YAML configuration file.
func (l *Loader) LoadConfig(path string) (*config.Config, error) {
	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := config.Parse(src)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// ParseModel decodes a CUE model description. filename is used in error
// positions only.
func ParseModel(filename string, src []byte) (*ir.Model, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, errors.Wrap(err, "compile model schema")
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v = schema.LookupPath(cue.ParsePath("#Model")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	return decodeModel(v)
}

func decodeModel(v cue.Value) (*ir.Model, error) {
	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m := ir.NewModel(name)

	iter, err := v.LookupPath(cue.ParsePath("layers")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		n, err := decodeLayer(m, iter.Value())
		if err != nil {
			return nil, err
		}
		if err := m.Add(n); err != nil {
			return nil, &LoadError{Field: "layers", Message: err.Error(), Pos: iter.Value().Pos()}
		}
	}
	if len(m.Nodes) == 0 {
		return nil, &LoadError{Field: "layers", Message: "at least one layer is required", Pos: v.Pos()}
	}

	outputs := v.LookupPath(cue.ParsePath("outputs"))
	if err := outputs.Decode(&m.Outputs); err != nil {
		return nil, formatCUEError(err)
	}
	if len(m.Outputs) == 0 {
		m.Outputs = []string{m.Nodes[len(m.Nodes)-1].Name}
	}
	for _, out := range m.Outputs {
		if m.Node(out) == nil {
			return nil, &LoadError{Field: "outputs", Message: fmt.Sprintf("unknown layer %q", out), Pos: outputs.Pos()}
		}
	}
	return m, nil
}

func decodeLayer(m *ir.Model, v cue.Value) (*ir.LayerNode, error) {
	var head struct {
		Name        string   `json:"name"`
		Kind        string   `json:"kind"`
		Inputs      []string `json:"inputs"`
		OutputShape []int    `json:"output_shape"`
	}
	if err := v.Decode(&head); err != nil {
		return nil, formatCUEError(err)
	}
	kind := ir.LayerKind(head.Kind)
	if !kind.IsValid() {
		return nil, &LoadError{
			Field:   "layers." + head.Name + ".kind",
			Message: fmt.Sprintf("unknown layer kind %q", head.Kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}

	n := ir.NewLayerNode(len(m.Nodes), kind, head.Name)
	n.Inputs = head.Inputs
	n.OutputShape = head.OutputShape
	for _, in := range head.Inputs {
		producer := m.Node(in)
		if producer == nil {
			return nil, &LoadError{
				Field:   "layers." + head.Name + ".inputs",
				Message: fmt.Sprintf("unknown or later layer %q", in),
				Pos:     v.LookupPath(cue.ParsePath("inputs")).Pos(),
			}
		}
		n.InputShapes = append(n.InputShapes, append([]int(nil), producer.OutputShape...))
	}

	if attrs := v.LookupPath(cue.ParsePath("attrs")); attrs.Exists() {
		if err := decodeAttrs(n, attrs); err != nil {
			return nil, err
		}
	}
	if weights := v.LookupPath(cue.ParsePath("weights")); weights.Exists() {
		if err := decodeWeights(n, weights); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func decodeAttrs(n *ir.LayerNode, v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		key := iter.Label()
		av, err := attrValue(key, iter.Value())
		if err != nil {
			return &LoadError{Field: "layers." + n.Name + ".attrs." + key, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		if err := n.SetAttr(key, av); err != nil {
			return err
		}
	}
	return nil
}

// attrValue converts a concrete CUE value. Strings under keys ending in
// "_t" are parsed as precisions; structs are quantizers.
func attrValue(key string, v cue.Value) (ir.AttrValue, error) {
	switch v.Kind() {
	case cue.IntKind:
		i, err := v.Int64()
		return ir.IntAttr(i), err
	case cue.FloatKind:
		f, err := v.Float64()
		return ir.FloatAttr(f), err
	case cue.BoolKind:
		b, err := v.Bool()
		return ir.BoolAttr(b), err
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(key, "_t") {
			p, err := ir.ParsePrecision(s)
			if err != nil {
				return nil, err
			}
			return ir.TypeAttr(ir.NamedType{Precision: p}), nil
		}
		return ir.StringAttr(s), nil
	case cue.ListKind:
		var shape []int
		if err := v.Decode(&shape); err != nil {
			return nil, errors.Wrap(err, "lists must hold integers")
		}
		return ir.ShapeAttr(shape), nil
	case cue.StructKind:
		var q quantizerSource
		if err := v.Decode(&q); err != nil {
			return nil, err
		}
		if q.Bits <= 0 {
			return nil, errors.New("quantizer needs positive bits")
		}
		return ir.QuantizerAttr{Quantizer: q.quantizer()}, nil
	}
	return nil, errors.Newf("unsupported value kind %s", v.Kind())
}

// quantizerSource is the CUE form of a quantizer. Signed defaults to true.
type quantizerSource struct {
	Name    string `json:"name"`
	Bits    int    `json:"bits"`
	Integer int    `json:"integer"`
	Signed  *bool  `json:"signed"`
}

func (q *quantizerSource) quantizer() *ir.Quantizer {
	signed := true
	if q.Signed != nil {
		signed = *q.Signed
	}
	return &ir.Quantizer{Name: q.Name, Bits: q.Bits, Integer: q.Integer, Signed: signed}
}

// quantizedRoles are the weight roles of multiplying layers whose
// quantizer is also exposed as a "<role>_quantizer" attribute.
var quantizedRoles = map[string]bool{"weight": true, "bias": true, "recurrent_weight": true}

func multiplies(k ir.LayerKind) bool {
	switch k {
	case ir.KindDense, ir.KindConv1D, ir.KindConv2D, ir.KindLSTM, ir.KindGRU, ir.KindSimpleRNN:
		return true
	}
	return false
}

type weightSource struct {
	Shape     []int            `json:"shape"`
	Data      []float64        `json:"data"`
	Init      string           `json:"init"`
	VarName   string           `json:"var_name"`
	Quantizer *quantizerSource `json:"quantizer"`
}

func decodeWeights(n *ir.LayerNode, v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		role := iter.Label()
		field := "layers." + n.Name + ".weights." + role
		var src weightSource
		if err := iter.Value().Decode(&src); err != nil {
			return formatCUEError(err)
		}

		var data *ir.Tensor
		switch {
		case src.Data != nil:
			data, err = ir.NewTensor(src.Shape, src.Data)
			if err != nil {
				return &LoadError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
			}
		case src.Init == "arange":
			data = ir.Arange(src.Shape...)
		default:
			data = ir.Zeros(src.Shape...)
		}

		varName := src.VarName
		if varName == "" {
			varName = role + "{index}"
		}
		wv := &ir.WeightVariable{Name: role, VarName: varName, Data: data}
		if src.Quantizer != nil {
			wv.Quantizer = src.Quantizer.quantizer()
		}
		if wv.Quantizer != nil && quantizedRoles[role] && multiplies(n.Kind) {
			if err := n.SetAttr(role+"_quantizer", ir.QuantizerAttr{Quantizer: wv.Quantizer}); err != nil {
				return err
			}
		}
		n.AddWeight(wv)
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
