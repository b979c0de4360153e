package engine

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// QuotaEnforcer counts the changes reported within one flow and enforces
// a maximum.
//
// Each flow run gets its own enforcer. A pass that reports a change on
// every call would otherwise restart its flow forever.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
// Typical default: 1000 (configurable via engine.WithMaxSteps()).
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates it against the limit.
func (q *QuotaEnforcer) Check(flow, pass string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Flow:  flow,
			Pass:  pass,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a flow does not reach a fixpoint
// within the step quota. Pass is the pass whose change tripped the limit.
type StepsExceededError struct {
	Flow  string
	Pass  string
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("flow %s exceeded max steps quota: %d steps > %d limit (last pass %s)",
		e.Flow, e.Steps, e.Limit, e.Pass)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
