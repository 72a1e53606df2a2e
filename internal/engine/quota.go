package engine

import (
	"errors"
	"fmt"
)

// RoundLimiter counts fixpoint rounds within one stratum and enforces the
// per-stratum ceiling.
//
// Each stratum of each run gets a fresh limiter. A positive recursive
// program always reaches a fixpoint in finitely many rounds, so the ceiling
// only trips on pathologically deep recursion.
type RoundLimiter struct {
	stratum   int
	maxRounds int
	current   int
}

// NewRoundLimiter creates a limiter for one stratum.
func NewRoundLimiter(stratum, maxRounds int) *RoundLimiter {
	return &RoundLimiter{stratum: stratum, maxRounds: maxRounds}
}

// Check increments the round counter and validates against the limit.
//
// Returns EvaluationLimitExceededError if the ceiling is exceeded.
// This should be called before each round.
func (q *RoundLimiter) Check() error {
	q.current++
	if q.maxRounds > 0 && q.current > q.maxRounds {
		return &EvaluationLimitExceededError{
			Stratum: q.stratum,
			Rounds:  q.current,
			Limit:   q.maxRounds,
		}
	}
	return nil
}

// Current returns the number of rounds started.
func (q *RoundLimiter) Current() int {
	return q.current
}

// MaxRounds returns the ceiling.
func (q *RoundLimiter) MaxRounds() int {
	return q.maxRounds
}

// EvaluationLimitExceededError is returned when a stratum does not reach its
// fixpoint within the configured number of rounds. The run is rolled back.
type EvaluationLimitExceededError struct {
	Stratum int // The stratum that did not converge
	Rounds  int // Rounds attempted
	Limit   int // Maximum allowed rounds
}

// Error implements the error interface.
func (e *EvaluationLimitExceededError) Error() string {
	return fmt.Sprintf("stratum %d exceeded evaluation limit: %d rounds > %d limit",
		e.Stratum, e.Rounds, e.Limit)
}

// IsEvaluationLimitExceededError returns true if the error is an
// EvaluationLimitExceededError.
// Uses errors.As to handle wrapped errors.
func IsEvaluationLimitExceededError(err error) bool {
	var le *EvaluationLimitExceededError
	return errors.As(err, &le)
}
