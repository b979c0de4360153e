package harness

import (
	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: the expected error (if any) occurred
	// and every assertion held.
	Pass bool

	// Trace is the journaled pass events, ordered by seq.
	Trace []engine.PassEvent

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string

	// Model is the lowered model, nil when loading failed.
	Model *ir.Model

	// Digest is the content digest of the lowered model, empty on failure.
	Digest string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.PassEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
