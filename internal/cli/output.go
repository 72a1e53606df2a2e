package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/engine"
	"github.com/roach88/factlog/internal/journal"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // rules, facts or journal rejected; scenarios failed; replay diverged
	ExitCommandError = 2 // bad invocation or unreadable input
)

// Error codes reported in CLI output. Load failures use the compiler
// codes E201-E205.
const (
	ErrCodeGeneric          = "E001"
	ErrCodeNotFound         = "E002"
	ErrCodeUnknownPredicate = "E301"
	ErrCodeArityMismatch    = "E302"
	ErrCodeLimitExceeded    = "E303"
	ErrCodeCancelled        = "E304"
	ErrCodeFactNotFound     = "E305"
	ErrCodeChecksum         = "E401"
	ErrCodeNondeterministic = "E402"
)

// classifiers map runtime failures to error codes, first match wins.
var classifiers = []struct {
	code  string
	match func(error) bool
}{
	{ErrCodeNotFound, func(err error) bool { return errors.Is(err, os.ErrNotExist) }},
	{ErrCodeUnknownPredicate, engine.IsUnknownPredicate},
	{ErrCodeArityMismatch, engine.IsArityMismatch},
	{ErrCodeLimitExceeded, engine.IsLimitExceeded},
	{ErrCodeCancelled, engine.IsCancelled},
	{ErrCodeFactNotFound, func(err error) bool { return errors.Is(err, engine.ErrFactNotFound) }},
	{ErrCodeChecksum, journal.IsChecksumMismatch},
}

// errorCode returns the code reported for err.
func errorCode(err error) string {
	if code := compiler.ErrorCode(err); code != "" {
		return code
	}
	for _, c := range classifiers {
		if c.match(err) {
			return c.code
		}
	}
	return ErrCodeGeneric
}

// exitCodeFor separates input problems from rejected programs and data.
func exitCodeFor(code string) int {
	switch code {
	case ErrCodeGeneric, ErrCodeNotFound:
		return ExitCommandError
	}
	return ExitFailure
}

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code for a command result. Errors that carry
// no ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the single JSON document a command writes in json format.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text lines or one JSON document.
// Diagnostics go to ErrWriter so stdout stays machine-readable.
type OutputFormatter struct {
	Format    string // "text" or "json"
	Writer    io.Writer
	ErrWriter io.Writer // falls back to Writer
	Verbose   bool
}

func (f *OutputFormatter) json() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success writes data: as the JSON payload, or printed as is in text mode.
// An empty string prints nothing.
func (f *OutputFormatter) Success(data any) error {
	if f.json() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	if s, ok := data.(string); ok && s == "" {
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Emit writes result as the JSON payload, or lines in text mode.
func (f *OutputFormatter) Emit(result any, lines ...string) error {
	if f.json() {
		return f.Success(result)
	}
	return f.Success(strings.Join(lines, "\n"))
}

// Error writes a failure. In JSON mode it is the response document on
// Writer; in text mode it is an "Error [code]" line on ErrWriter.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.json() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under its error code and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	code := errorCode(err)
	if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(exitCodeFor(code), message, err)
}

// VerboseLog writes a diagnostic line when verbose output is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns the diagnostic writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
