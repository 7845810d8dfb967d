package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/loader"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Pipeline failure (compile, collision, serialization)
	ExitCommandError = 2 // Command error (bad arguments, missing cache, store unreachable)
)

// Error codes for JSON output. E0xx and E1xx come from the definition loader.
const (
	ErrCodeGeneric       = loader.ErrCodeGeneric
	ErrCodeNotFound      = loader.ErrCodeNotFound
	ErrCodeConfig        = "E008" // Configuration invalid
	ErrCodeStore         = "E009" // Graph store unavailable
	ErrCodeInvalidKind   = "E201" // Subgraph kind not compilable by the operation
	ErrCodeCollision     = "E202" // Two subgraph names share a bundle token
	ErrCodeSerialization = "E203" // Bundle write or read failed
	ErrCodeIndexOverflow = "E204" // Node id outside the int32 index range
	ErrCodePublish       = "E205" // Bundle upload failed
)

// ExitError represents an error with a specific exit code.
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

// ErrorCodeFor maps a pipeline error to its CLI error code.
func ErrorCodeFor(err error) string {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	switch graph.CodeOf(err) {
	case graph.ErrCodeInvalidSubgraphKind:
		return ErrCodeInvalidKind
	case graph.ErrCodeSanitizationCollision:
		return ErrCodeCollision
	case graph.ErrCodeSerializationFailure:
		return ErrCodeSerialization
	case graph.ErrCodeIndexOverflow:
		return ErrCodeIndexOverflow
	case graph.ErrCodeNotFound:
		return ErrCodeNotFound
	default:
		return ErrCodeGeneric
	}
}

// exitCodeFor picks the exit code for a pipeline error: lookups that find
// nothing are command errors, everything else is a failure.
func exitCodeFor(err error) int {
	if graph.IsNotFound(err) {
		return ExitCommandError
	}
	return ExitFailure
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
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// IsJSON reports whether output is JSON.
func (f *OutputFormatter) IsJSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result. In text mode data is printed as-is;
// commands with structured results print their own text instead.
func (f *OutputFormatter) Success(data any) error {
	if f.IsJSON() {
		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.IsJSON() {
		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{
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
func (f *OutputFormatter) Fail(exitCode int, code string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(exitCode, code, err)
}

// FailPipeline reports a pipeline error with its mapped code.
func (f *OutputFormatter) FailPipeline(err error) error {
	return f.Fail(exitCodeFor(err), ErrorCodeFor(err), err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
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
