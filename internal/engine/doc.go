// Package engine runs lowering flows over a model.
//
// ARCHITECTURE:
//
// Single-Writer Execution:
// One pass runs at a time, on one goroutine, and owns the model until it
// returns. Passes within a flow run strictly in resolved order; flow order
// is a correctness dependency, not an optimization.
//
// Fixpoint Per Flow:
// A flow sweeps its pass list. Node passes visit nodes in graph order; the
// first transform that reports a change restarts the sweep from the first
// pass. A model pass runs once per sweep until it reports a change, then
// is done for the flow. The flow finishes when a sweep changes nothing.
//
// Termination:
// Every reported change counts against a per-flow step quota
// (DefaultMaxSteps, see WithMaxSteps). A flow that keeps changing the
// model is stopped with StepsExceededError.
//
// Logical Clock:
// Every executed transform is stamped with a monotonic sequence number
// from Clock and reported to the optional Journal. Wall-clock time is
// never used for ordering.
package engine
