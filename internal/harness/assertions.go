package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/engine"
	"github.com/roach88/factlog/internal/ir"
)

// Error kinds named by load_error and expect.error.
const (
	KindParse            = "ParseError"
	KindUnsafeRule       = "UnsafeRule"
	KindStratification   = "Stratification"
	KindDeclaration      = "Declaration"
	KindSchema           = "Schema"
	KindUnknownPredicate = "UnknownPredicate"
	KindArityMismatch    = "ArityMismatch"
	KindLimitExceeded    = "LimitExceeded"
	KindCancelled        = "Cancelled"
)

var (
	loadErrorKinds    = []string{KindParse, KindUnsafeRule, KindStratification, KindDeclaration, KindSchema}
	runtimeErrorKinds = []string{KindParse, KindUnknownPredicate, KindArityMismatch, KindLimitExceeded, KindCancelled}
)

// ErrorKind classifies err by the kinds scenarios name, or returns "" for
// an error of no known kind.
func ErrorKind(err error) string {
	var (
		unsafe *compiler.UnsafeRuleError
		decl   *compiler.DeclarationError
		schema *compiler.CompileError
	)
	switch {
	case err == nil:
		return ""
	case compiler.IsParseError(err):
		return KindParse
	case errors.As(err, &unsafe):
		return KindUnsafeRule
	case compiler.IsStratificationError(err):
		return KindStratification
	case errors.As(err, &decl):
		return KindDeclaration
	case errors.As(err, &schema):
		return KindSchema
	case engine.IsUnknownPredicate(err):
		return KindUnknownPredicate
	case engine.IsArityMismatch(err):
		return KindArityMismatch
	case engine.IsLimitExceeded(err):
		return KindLimitExceeded
	case engine.IsCancelled(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}
	return ""
}

// AssertionError is a failed expectation with the step it belongs to.
type AssertionError struct {
	Step     int    // 1-based
	Kind     string // step kind
	Check    string // expectation name
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("step %d (%s): %s: expected %s, got %s", e.Step, e.Kind, e.Check, e.Expected, e.Actual)
}

// outcome is what a step produced.
type outcome struct {
	trace StepTrace
	err   error
}

// checkStep compares a step's outcome with its expectations and the store.
func checkStep(ctx context.Context, e *engine.Engine, idx int, step Step, out outcome) []error {
	var errs []error
	fail := func(check, expected, actual string) {
		errs = append(errs, &AssertionError{Step: idx + 1, Kind: step.Kind(), Check: check, Expected: expected, Actual: actual})
	}
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	gotKind := out.trace.Error
	switch {
	case exp.Error == "" && gotKind != "":
		fail("error", "no error", describeError(gotKind, out.err))
		return errs
	case exp.Error != "" && gotKind != exp.Error:
		fail("error", exp.Error, describeError(gotKind, out.err))
		return errs
	}

	if len(exp.Added) > 0 && !sameSet(exp.Added, out.trace.Added) {
		fail("added", list(exp.Added), list(out.trace.Added))
	}
	if len(exp.Removed) > 0 && !sameSet(exp.Removed, out.trace.Removed) {
		fail("removed", list(exp.Removed), list(out.trace.Removed))
	}
	if len(exp.Rows) > 0 && !sameSet(exp.Rows, out.trace.Rows) {
		fail("rows", list(exp.Rows), list(out.trace.Rows))
	}
	if exp.Count != nil && *exp.Count != len(out.trace.Rows) {
		fail("count", fmt.Sprint(*exp.Count), fmt.Sprint(len(out.trace.Rows)))
	}

	for _, src := range exp.Contains {
		present, err := stored(ctx, e, src)
		switch {
		case err != nil:
			fail("contains", src, err.Error())
		case !present:
			fail("contains", src, "not stored")
		}
	}
	for _, src := range exp.Absent {
		present, err := stored(ctx, e, src)
		switch {
		case err != nil:
			fail("absent", src, err.Error())
		case present:
			fail("absent", src+" absent", "stored")
		}
	}
	return errs
}

// stored reports whether the fact written as src is in the store.
func stored(ctx context.Context, e *engine.Engine, src string) (bool, error) {
	f, err := compiler.ParseFact(src)
	if err != nil {
		return false, err
	}
	tuples, err := e.Lookup(ctx, f.Predicate, ir.Pattern(f.Args))
	if err != nil {
		return false, err
	}
	for range tuples {
		return true, nil
	}
	return false, nil
}

func describeError(kind string, err error) string {
	switch {
	case err == nil && kind == "":
		return "no error"
	case err == nil:
		return kind
	case kind == "":
		return err.Error()
	}
	return kind + ": " + err.Error()
}

func sameSet(want, got []string) bool {
	w := slices.Clone(want)
	g := slices.Clone(got)
	slices.Sort(w)
	slices.Sort(g)
	return slices.Equal(slices.Compact(w), slices.Compact(g))
}

func list(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
