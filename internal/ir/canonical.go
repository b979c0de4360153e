package ir

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for digests and manifests.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (RFC 8785 ordering)
//  2. No HTML escaping
//  3. Strings are NFC normalized
//  4. Floats use the shortest round-trip form; NaN and Inf are rejected
//  5. nil is rejected
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return errors.New("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return errors.Newf("non-finite float %v in canonical JSON", val)
		}
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []int:
		buf.WriteByte('[')
		for i, x := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(x))
		}
		buf.WriteByte(']')
	case []float64:
		arr := make([]any, len(val))
		for i, x := range val {
			arr[i] = x
		}
		return marshalCanonical(buf, arr)
	case []string:
		arr := make([]any, len(val))
		for i, x := range val {
			arr[i] = x
		}
		return marshalCanonical(buf, arr)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return errors.Wrapf(err, "array[%d]", i)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeys(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonicalString(buf, k); err != nil {
				return errors.Wrapf(err, "key %q", k)
			}
			buf.WriteByte(':')
			if err := marshalCanonical(buf, val[k]); err != nil {
				return errors.Wrapf(err, "value for key %q", k)
			}
		}
		buf.WriteByte('}')
	default:
		return errors.Newf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// marshalCanonicalString writes s NFC-normalized, escaping only what JSON
// requires. U+2028 and U+2029 are left literal.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters, leaving \\u2028 (an escaped
// backslash followed by text) untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) && data[i+1] == '\\' {
			out = append(out, '\\', '\\')
			i++
			continue
		}
		if data[i] == '\\' && i+5 < len(data) && string(data[i+1:i+5]) == "u202" &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}

// EncodeAttr converts an attribute value into plain JSON-compatible data.
func EncodeAttr(v AttrValue) (any, error) {
	switch val := v.(type) {
	case IntAttr:
		return int64(val), nil
	case FloatAttr:
		return float64(val), nil
	case StringAttr:
		return string(val), nil
	case BoolAttr:
		return bool(val), nil
	case ShapeAttr:
		return []int(val), nil
	case TypeAttr:
		return encodeNamedType(NamedType(val)), nil
	case TensorRef:
		return map[string]any{"ref": string(val)}, nil
	case QuantizerAttr:
		if val.Quantizer == nil {
			return map[string]any{}, nil
		}
		return encodeQuantizer(val.Quantizer), nil
	default:
		return nil, errors.Newf("unknown attribute value type: %T", v)
	}
}

func encodeNamedType(t NamedType) map[string]any {
	out := map[string]any{"name": t.Name}
	if t.Precision != nil {
		out["precision"] = t.Precision.String()
	}
	if t.Definition != "" {
		out["definition"] = t.Definition
	}
	return out
}

func encodeQuantizer(q *Quantizer) map[string]any {
	return map[string]any{
		"name":    q.Name,
		"bits":    q.Bits,
		"integer": q.Integer,
		"signed":  q.Signed,
	}
}

// EncodeNode converts a node to plain data suitable for MarshalCanonical.
func EncodeNode(n *LayerNode) (map[string]any, error) {
	attrs := make(map[string]any, len(n.attrs))
	for k, v := range n.attrs {
		enc, err := EncodeAttr(v)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %s attribute %s", n.Name, k)
		}
		attrs[k] = enc
	}

	weights := make([]any, 0, len(n.weights))
	for _, w := range n.weights {
		wm := map[string]any{
			"name":        w.Name,
			"var_name":    w.ResolvedVarName(n.Index),
			"compression": w.Compression,
		}
		if w.Data != nil {
			wm["shape"] = w.Data.Shape
			wm["data"] = w.Data.Data
		}
		if w.Type.Name != "" {
			wm["type"] = encodeNamedType(w.Type)
		}
		if w.Storage != "" {
			wm["storage"] = w.Storage
		}
		if w.Quantizer != nil {
			wm["quantizer"] = encodeQuantizer(w.Quantizer)
		}
		if w.IndexPrecision != nil {
			wm["index_precision"] = w.IndexPrecision.String()
		}
		weights = append(weights, wm)
	}

	inputShapes := make([]any, len(n.InputShapes))
	for i, s := range n.InputShapes {
		inputShapes[i] = s
	}
	inputs := n.Inputs
	if inputs == nil {
		inputs = []string{}
	}
	outputShape := n.OutputShape
	if outputShape == nil {
		outputShape = []int{}
	}

	return map[string]any{
		"index":        n.Index,
		"kind":         string(n.Kind),
		"name":         n.Name,
		"inputs":       inputs,
		"input_shapes": inputShapes,
		"output_shape": outputShape,
		"attributes":   attrs,
		"weights":      weights,
	}, nil
}

// EncodeModel converts the whole model to plain data.
func EncodeModel(m *Model) (map[string]any, error) {
	layers := make([]any, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		enc, err := EncodeNode(n)
		if err != nil {
			return nil, err
		}
		layers = append(layers, enc)
	}
	outputs := m.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	out := map[string]any{
		"name":       m.Name,
		"ir_version": IRVersion,
		"outputs":    outputs,
		"layers":     layers,
	}
	if m.Stamp != "" {
		out["stamp"] = m.Stamp
	}
	return out, nil
}
