package toolchain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ToolchainError is a failed external step. Output is the tool's combined
// output, unmodified.
type ToolchainError struct {
	Step    string
	Command string
	Output  string
	Err     error
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("%s step failed: %s: %v", e.Step, e.Command, e.Err)
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// IsToolchainError reports whether err is a ToolchainError.
func IsToolchainError(err error) bool {
	var te *ToolchainError
	return errors.As(err, &te)
}

// newToolchainError attaches the tool output as a detail so that it is
// printed alongside the failure by errors.FlattenDetails.
func newToolchainError(step string, argv []string, output []byte, err error) error {
	te := &ToolchainError{
		Step:    step,
		Command: strings.Join(argv, " "),
		Output:  string(output),
		Err:     err,
	}
	if len(output) == 0 {
		return te
	}
	return errors.WithDetail(te, string(output))
}

// InvalidBuildError rejects a build request before any process starts.
type InvalidBuildError struct {
	BuildType string
	Run       bool
	Reason    string
}

func (e *InvalidBuildError) Error() string {
	return fmt.Sprintf("invalid build %q (run=%t): %s", e.BuildType, e.Run, e.Reason)
}

// IsInvalidBuildError reports whether err is an InvalidBuildError.
func IsInvalidBuildError(err error) bool {
	var ie *InvalidBuildError
	return errors.As(err, &ie)
}
