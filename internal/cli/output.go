package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/olekukonko/tablewriter"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/flow"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/loader"
	"github.com/roach88/fpgalower/internal/lowering"
	"github.com/roach88/fpgalower/internal/schema"
	"github.com/roach88/fpgalower/internal/store"
	"github.com/roach88/fpgalower/internal/toolchain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Lowering, build or scenario failure
	ExitCommandError = 2 // Command error (bad input files, invalid flags, missing database)
)

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeNotFound         = "E005" // Path not found
	ErrCodeWriteFailed      = "E007" // File write error
	ErrCodeLoad             = "E010" // Model description rejected
	ErrCodeConfig           = "E011" // Invalid configuration
	ErrCodeStore            = "E012" // Journal error
	ErrCodeShape            = "E101" // Layer shape or weight layout error
	ErrCodeMissingAttribute = "E102" // Required attribute absent
	ErrCodeUnknownAttribute = "E103" // Attribute not declared for the kind
	ErrCodeInvalidValue     = "E104" // Configured value has the wrong type
	ErrCodeStepsExceeded    = "E105" // Flow did not converge
	ErrCodeUnknownFlow      = "E110" // Flow name not registered
	ErrCodeInvalidBuild     = "E120" // Build request rejected before starting
	ErrCodeToolchain        = "E121" // External tool failed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps an engine error to its CLI error code and exit code.
// Errors caused by the command's inputs exit with ExitCommandError;
// errors raised while lowering or building exit with ExitFailure.
func classify(err error) (string, int) {
	var (
		unknownAttr  *ir.UnknownAttributeError
		invalidValue *schema.InvalidValueError
	)
	switch {
	case loader.IsLoadError(err):
		return ErrCodeLoad, ExitCommandError
	case config.IsConfigError(err):
		return ErrCodeConfig, ExitCommandError
	case flow.IsUnknownFlowError(err):
		return ErrCodeUnknownFlow, ExitCommandError
	case toolchain.IsInvalidBuildError(err):
		return ErrCodeInvalidBuild, ExitCommandError
	case store.IsRunNotFoundError(err):
		return ErrCodeNotFound, ExitCommandError
	case lowering.IsShapeError(err):
		return ErrCodeShape, ExitFailure
	case lowering.IsMissingAttributeError(err):
		return ErrCodeMissingAttribute, ExitFailure
	case errors.As(err, &unknownAttr):
		return ErrCodeUnknownAttribute, ExitFailure
	case errors.As(err, &invalidValue):
		return ErrCodeInvalidValue, ExitFailure
	case engine.IsStepsExceededError(err):
		return ErrCodeStepsExceeded, ExitFailure
	case toolchain.IsToolchainError(err):
		return ErrCodeToolchain, ExitFailure
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), errorDetails(err))
	return WrapExitError(exit, message, err)
}

// FailInput reports an error reading the command's inputs. It always
// exits with ExitCommandError.
func (f *OutputFormatter) FailInput(message string, err error) error {
	code, _ := classify(err)
	if code == ErrCodeGeneric && errors.Is(err, fs.ErrNotExist) {
		code = ErrCodeNotFound
	}
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), errorDetails(err))
	return WrapExitError(ExitCommandError, message, err)
}

// errorDetails returns the structured context attached to err, nil if none.
func errorDetails(err error) any {
	var tcErr *toolchain.ToolchainError
	if errors.As(err, &tcErr) {
		return map[string]any{
			"step":    tcErr.Step,
			"command": tcErr.Command,
			"output":  tcErr.Output,
		}
	}
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
		return map[string]any{
			"file":   loadErr.Pos.Filename(),
			"line":   loadErr.Pos.Line(),
			"column": loadErr.Pos.Column(),
		}
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Table renders rows under header as a text table.
func (f *OutputFormatter) Table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(f.Writer)
	table.SetHeader(header)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}
