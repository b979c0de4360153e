package flow

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// CyclicFlowError is returned when the requires relation has a cycle.
// Path starts and ends with the same flow.
type CyclicFlowError struct {
	Path []string
}

func (e *CyclicFlowError) Error() string {
	return fmt.Sprintf("cyclic flow dependency: %s", strings.Join(e.Path, " -> "))
}

// UnknownFlowError is returned when a flow name is not registered.
type UnknownFlowError struct {
	Name string
	// RequiredBy is the flow that named it, empty for a direct lookup.
	RequiredBy string
}

func (e *UnknownFlowError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("unknown flow %q", e.Name)
	}
	return fmt.Sprintf("unknown flow %q required by %q", e.Name, e.RequiredBy)
}

// DuplicateFlowError is returned when a flow name is registered twice.
type DuplicateFlowError struct {
	Name string
}

func (e *DuplicateFlowError) Error() string {
	return fmt.Sprintf("flow %q is already registered", e.Name)
}

// UnknownPassError is returned when a flow lists a pass that is not in
// the pass registry.
type UnknownPassError struct {
	Flow string
	Pass string
}

func (e *UnknownPassError) Error() string {
	return fmt.Sprintf("flow %q lists unknown pass %q", e.Flow, e.Pass)
}

// IsCyclicFlowError reports whether err is a CyclicFlowError.
func IsCyclicFlowError(err error) bool {
	var ce *CyclicFlowError
	return errors.As(err, &ce)
}

// IsUnknownFlowError reports whether err is an UnknownFlowError.
func IsUnknownFlowError(err error) bool {
	var ue *UnknownFlowError
	return errors.As(err, &ue)
}

// IsDuplicateFlowError reports whether err is a DuplicateFlowError.
func IsDuplicateFlowError(err error) bool {
	var de *DuplicateFlowError
	return errors.As(err, &de)
}

// IsUnknownPassError reports whether err is an UnknownPassError.
func IsUnknownPassError(err error) bool {
	var ue *UnknownPassError
	return errors.As(err, &ue)
}
