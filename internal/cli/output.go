package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/treeq/internal/qerror"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query or scenario failure (query error, scenarios failed, invalid data)
	ExitCommandError = 2 // Command error (bad arguments, unreadable files, invalid query documents)
)

// Error codes carried in CLIError.Code.
const (
	CodeQueryFailed  = "E_QUERY_FAILED"
	CodeTestFailed   = "E_TEST_FAILED"
	CodeLoadFailed   = "E_LOAD_FAILED"
	CodeInvalidInput = "E_INVALID_INPUT"
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // one of the Code constants
	Message string `json:"message"`           // human-readable message
	Kind    string `json:"kind,omitempty"`    // query error kind, e.g. TYPE_MISMATCH
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data as an "ok" response. Text output is written by the
// caller; Success is a no-op for it.
func (f *OutputFormatter) Success(data any) error {
	if !f.JSON() {
		return nil
	}
	return f.encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes an "error" response. data, if non-nil, carries the partial
// result alongside the error. Text errors are printed by main on stderr, so
// Error is a no-op for text output.
func (f *OutputFormatter) Error(e *CLIError, data any) error {
	if !f.JSON() {
		return nil
	}
	return f.encode(CLIResponse{Status: "error", Data: data, Error: e})
}

// Fail writes an error response for err and returns it as an ExitError.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	e := &CLIError{Code: code, Message: message, Kind: string(qerror.KindOf(err))}
	if err != nil {
		e.Details = err.Error()
	}
	if encErr := f.Error(e, nil); encErr != nil {
		return encErr
	}
	return WrapExitError(exitCode, message, err)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
