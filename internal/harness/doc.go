// Package harness runs lowering scenarios: a model, a configuration and
// the attributes the lowered model must carry.
//
// # Scenario Format
//
// Scenarios are defined in YAML files:
//
//	name: mlp_resource
//	description: "Dense reuse factor snaps to a valid divisor"
//	model: ../models/mlp.cue
//	config:
//	  IOType: io_parallel
//	  HLSConfig:
//	    LayerName:
//	      fc1: {ReuseFactor: 10}
//	assertions:
//	  - type: attribute
//	    layer: fc1
//	    attr: reuse_factor
//	    equals: 12
//	  - type: pass_order
//	    passes: [oneapi:init_dense, oneapi:dense_config_template]
//
// The model path is relative to the scenario file. When flow is empty the
// backend's default flow runs. A scenario may instead expect a failure
// with expect_error, naming an error class such as shape or config.
//
// # Assertion Types
//
//   - attribute: a layer attribute renders to the expected value
//   - weight_shape: a weight tensor has the expected shape
//   - layer_absent: a layer was removed by lowering
//   - pass_order: passes first ran in the listed order
//   - pass_count: a pass ran exactly count times, optionally counting changes only
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory journal and filesystem,
// with a fixed build stamp, so two runs of a scenario produce identical
// pass traces. RunWithGolden compares that trace against a golden file.
package harness
