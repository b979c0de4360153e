package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fpgalower/internal/config"
)

// Scenario is one lowering test case.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the path of the CUE model description.
	// Relative paths are resolved against the scenario file location.
	Model string `yaml:"model"`

	// Config is the model configuration, inline.
	Config config.Document `yaml:"config"`

	// Flow is the flow to apply. Empty selects the backend default flow.
	Flow string `yaml:"flow,omitempty"`

	// ExpectError names the class of error lowering must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions are checked against the lowered model and its trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion checks one property of the lowered model or its trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Layer names the layer (attribute, weight_shape, layer_absent).
	Layer string `yaml:"layer,omitempty"`

	// Attr is the attribute name (attribute).
	Attr string `yaml:"attr,omitempty"`

	// Equals is the expected value (attribute). Type attributes compare
	// their precision, e.g. "fixed<16,6>".
	Equals any `yaml:"equals,omitempty"`

	// Weight is the weight role (weight_shape).
	Weight string `yaml:"weight,omitempty"`

	// Shape is the expected tensor shape (weight_shape).
	Shape []int `yaml:"shape,omitempty"`

	// Pass names a pass (pass_count).
	Pass string `yaml:"pass,omitempty"`

	// Passes is the expected relative order (pass_order).
	Passes []string `yaml:"passes,omitempty"`

	// Count is the expected number of events (pass_count).
	Count int `yaml:"count,omitempty"`

	// Changed restricts pass_count to events that changed the graph.
	Changed bool `yaml:"changed,omitempty"`
}

// Assertion type constants.
const (
	AssertAttribute   = "attribute"
	AssertWeightShape = "weight_shape"
	AssertLayerAbsent = "layer_absent"
	AssertPassOrder   = "pass_order"
	AssertPassCount   = "pass_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) {
		scenario.Model = filepath.Join(filepath.Dir(path), scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := os.Stat(s.Model); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.Model)
	}
	if s.ExpectError != "" {
		if _, ok := errorClasses[s.ExpectError]; !ok {
			return fmt.Errorf("expect_error: unknown error class %q", s.ExpectError)
		}
	}
	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertAttribute:
		if a.Layer == "" || a.Attr == "" {
			return fmt.Errorf("assertions[%d]: layer and attr are required for attribute", index)
		}
		if a.Equals == nil {
			return fmt.Errorf("assertions[%d]: equals is required for attribute", index)
		}
	case AssertWeightShape:
		if a.Layer == "" || a.Weight == "" {
			return fmt.Errorf("assertions[%d]: layer and weight are required for weight_shape", index)
		}
	case AssertLayerAbsent:
		if a.Layer == "" {
			return fmt.Errorf("assertions[%d]: layer is required for layer_absent", index)
		}
	case AssertPassOrder:
		if len(a.Passes) == 0 {
			return fmt.Errorf("assertions[%d]: passes list is required for pass_order", index)
		}
	case AssertPassCount:
		if a.Pass == "" {
			return fmt.Errorf("assertions[%d]: pass is required for pass_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pass_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
