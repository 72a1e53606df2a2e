package factstore

import (
	"errors"
	"fmt"
)

// ArityMismatchError reports a tuple whose length differs from the declared arity.
type ArityMismatchError struct {
	Predicate string
	Expected  int
	Got       int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("arity mismatch: %s expects %d arguments, got %d", e.Predicate, e.Expected, e.Got)
}

// UnknownPredicateError reports a predicate that is not declared, or a
// derived predicate used where only base predicates are accepted.
type UnknownPredicateError struct {
	Predicate string
	Derived   bool // declared, but derived
}

func (e *UnknownPredicateError) Error() string {
	if e.Derived {
		return fmt.Sprintf("unknown base predicate: %s is derived and cannot be asserted or retracted directly", e.Predicate)
	}
	return fmt.Sprintf("unknown predicate: %s", e.Predicate)
}

// IsArityMismatch reports whether err is or wraps an ArityMismatchError.
func IsArityMismatch(err error) bool {
	var ae *ArityMismatchError
	return errors.As(err, &ae)
}

// IsUnknownPredicate reports whether err is or wraps an UnknownPredicateError.
func IsUnknownPredicate(err error) bool {
	var ue *UnknownPredicateError
	return errors.As(err, &ue)
}
