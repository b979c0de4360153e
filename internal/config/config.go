// Package config provides the immutable per-run model configuration.
//
// A Config answers the queries lowering rules make about a layer:
// requested reuse factor, cycle budget, compression, strategy and
// precision. Layer lookups follow the precedence LayerName, then
// LayerType (the node's kind and its ancestors), then Model.
package config

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fpgalower/internal/ir"
)

// Config is an immutable configuration snapshot. Derive modified copies
// with With.
type Config struct {
	doc       Document
	precision ir.PrecisionType
}

// New validates a document and returns a snapshot of it.
func New(doc Document) (*Config, error) {
	d := doc.clone()
	d.applyDefaults()
	if err := d.validate(); err != nil {
		return nil, err
	}
	c := &Config{doc: d}

	c.precision = ir.MustParsePrecision(DefaultPrecision)
	if raw, ok := d.HLSConfig.Model["Precision"]; ok {
		p, ok, err := precisionFrom(raw, "default")
		if err != nil {
			return nil, newConfigError("HLSConfig.Model.Precision", "%v", err)
		}
		if ok {
			c.precision = p
		}
	}
	return c, nil
}

// Parse decodes a YAML document.
func Parse(data []byte) (*Config, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return New(doc)
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c.doc)
}

// Document returns a copy of the underlying document.
func (c *Config) Document() Document {
	return c.doc.clone()
}

// With returns a new snapshot with fn applied to a copy of the document.
func (c *Config) With(fn func(*Document)) (*Config, error) {
	d := c.doc.clone()
	fn(&d)
	return New(d)
}

func (c *Config) Backend() string { return c.doc.Backend }
func (c *Config) Part() string { return c.doc.Part }
func (c *Config) ClockPeriod() float64 { return c.doc.ClockPeriod }
func (c *Config) HandshakeMode() bool { return c.doc.HandshakeMode }
func (c *Config) IOType() string { return c.doc.IOType }
func (c *Config) ProjectName() string { return c.doc.ProjectName }
func (c *Config) OutputDir() string { return c.doc.OutputDir }
func (c *Config) WriteTar() bool { return c.doc.WriterConfig.WriteTar }
func (c *Config) BramFactor() int { return c.doc.WriterConfig.BramFactor }

// IsStreaming reports whether the io_stream execution model is selected.
func (c *Config) IsStreaming() bool { return c.doc.IOType == IOStream }

// Value returns a top-level configuration value by key.
func (c *Config) Value(key string) (any, bool) {
	switch key {
	case "Backend":
		return c.doc.Backend, true
	case "Part":
		return c.doc.Part, true
	case "ClockPeriod":
		return c.doc.ClockPeriod, true
	case "HandshakeMode":
		return c.doc.HandshakeMode, true
	case "IOType":
		return c.doc.IOType, true
	case "ProjectName":
		return c.doc.ProjectName, true
	case "OutputDir":
		return c.doc.OutputDir, true
	case "WriteTar":
		return c.doc.WriterConfig.WriteTar, true
	}
	return nil, false
}

// LayerValue looks up key for node: LayerName, then LayerType along the
// kind lineage, then Model.
func (c *Config) LayerValue(node *ir.LayerNode, key string) (any, bool) {
	for _, s := range c.sections(node) {
		if v, ok := s[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (c *Config) sections(node *ir.LayerNode) []Section {
	var out []Section
	if s, ok := c.doc.HLSConfig.LayerName[node.Name]; ok {
		out = append(out, s)
	}
	for _, k := range node.Kind.Lineage() {
		if s, ok := c.doc.HLSConfig.LayerType[string(k)]; ok {
			out = append(out, s)
		}
	}
	if c.doc.HLSConfig.Model != nil {
		out = append(out, c.doc.HLSConfig.Model)
	}
	return out
}

// LayerInt returns an integer layer value or def.
func (c *Config) LayerInt(node *ir.LayerNode, key string, def int) int {
	raw, ok := c.LayerValue(node, key)
	if !ok {
		return def
	}
	if n, ok := toInt(raw); ok {
		return n
	}
	return def
}

// LayerString returns a string layer value or def.
func (c *Config) LayerString(node *ir.LayerNode, key, def string) string {
	raw, ok := c.LayerValue(node, key)
	if !ok {
		return def
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return def
}

// ReuseFactor is the requested reuse factor of the node, default 1.
func (c *Config) ReuseFactor(node *ir.LayerNode) int {
	return c.LayerInt(node, "ReuseFactor", 1)
}

// TargetCycles is the node's cycle budget; 0 means none.
func (c *Config) TargetCycles(node *ir.LayerNode) int {
	return c.LayerInt(node, "TargetCycles", 0)
}

// Compression reports whether weight compression is requested.
func (c *Config) Compression(node *ir.LayerNode) bool {
	raw, ok := c.LayerValue(node, "Compression")
	if !ok {
		return false
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Strategy is the configured strategy name, default "Latency".
func (c *Config) Strategy(node *ir.LayerNode) string {
	return c.LayerString(node, "Strategy", "Latency")
}

// IsResourceStrategy reports whether the node is configured for the
// resource strategy.
func (c *Config) IsResourceStrategy(node *ir.LayerNode) bool {
	return strings.Contains(strings.ToLower(c.Strategy(node)), "resource")
}

// LayerPrecision looks up a named precision for node. A string Precision
// applies to every name; a map is searched for name, then "default".
func (c *Config) LayerPrecision(node *ir.LayerNode, name string) (ir.PrecisionType, bool) {
	for _, s := range c.sections(node) {
		raw, ok := s["Precision"]
		if !ok {
			continue
		}
		p, ok, err := precisionFrom(raw, name)
		if err == nil && ok {
			return p, true
		}
	}
	return nil, false
}

// DefaultPrecision is the model-wide precision, default fixed<16,6>.
func (c *Config) DefaultPrecision() ir.PrecisionType { return c.precision }

func precisionFrom(raw any, name string) (ir.PrecisionType, bool, error) {
	switch v := raw.(type) {
	case string:
		p, err := ir.ParsePrecision(v)
		return p, err == nil, err
	case map[string]any:
		for _, key := range []string{name, "default"} {
			s, ok := v[key].(string)
			if !ok {
				continue
			}
			p, err := ir.ParsePrecision(s)
			if err != nil {
				return nil, false, err
			}
			return p, true, nil
		}
		return nil, false, nil
	case Section:
		return precisionFrom(map[string]any(v), name)
	}
	return nil, false, errors.Newf("unsupported precision value %v", raw)
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}
