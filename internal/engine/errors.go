package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/factlog/internal/factstore"
)

// RuntimeError represents an error detected while the engine runs.
//
// RuntimeError wraps the underlying cause with a category and the stratum
// the run had reached, so callers can log and branch on Code.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Op is the engine operation that failed ("evaluate", "delta").
	Op string

	// Stratum is the stratum being evaluated, or -1 before evaluation started.
	Stratum int

	// Err is the cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCancelled indicates the context was cancelled mid-run.
	ErrCodeCancelled RuntimeErrorCode = "CANCELLED"

	// ErrCodeLimitExceeded indicates a stratum exceeded the round limit.
	ErrCodeLimitExceeded RuntimeErrorCode = "LIMIT_EXCEEDED"

	// ErrCodeInvalidFact indicates a delta carried a fact the store rejects.
	ErrCodeInvalidFact RuntimeErrorCode = "INVALID_FACT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Stratum >= 0 {
		return fmt.Sprintf("%s: %s failed at stratum %d: %v", e.Code, e.Op, e.Stratum, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Code, e.Op, e.Err)
}

// Unwrap returns the cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func newRuntimeError(op string, stratum int, err error) *RuntimeError {
	code := ErrCodeCancelled
	switch {
	case IsLimitExceeded(err):
		code = ErrCodeLimitExceeded
	case IsArityMismatch(err), IsUnknownPredicate(err):
		code = ErrCodeInvalidFact
	}
	return &RuntimeError{Code: code, Op: op, Stratum: stratum, Err: err}
}

// IsCancelled returns true if the run stopped because its context ended.
// Uses errors.As to handle wrapped errors.
func IsCancelled(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCancelled
	}
	return false
}

// IsLimitExceeded returns true if the error is an EvaluationLimitExceededError.
// Uses errors.As to handle wrapped errors.
func IsLimitExceeded(err error) bool {
	var le *EvaluationLimitExceededError
	return errors.As(err, &le)
}

// IsUnknownPredicate reports whether err is an UnknownPredicateError.
func IsUnknownPredicate(err error) bool {
	return factstore.IsUnknownPredicate(err)
}

// IsArityMismatch reports whether err is an ArityMismatchError.
func IsArityMismatch(err error) bool {
	return factstore.IsArityMismatch(err)
}

// Store errors surface unchanged through the engine API.
type (
	UnknownPredicateError = factstore.UnknownPredicateError
	ArityMismatchError    = factstore.ArityMismatchError
)
