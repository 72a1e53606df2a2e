package compiler

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	cuetoken "cuelang.org/go/cue/token"
)

// Load error codes (E200-E299). The CLI reports them in JSON output.
const (
	ErrCodeParse          = "E201" // malformed rule or fact text
	ErrCodeUnsafe         = "E202" // head or negated variable not bound positively
	ErrCodeStratification = "E203" // negation inside a recursive cycle
	ErrCodeDeclaration    = "E204" // arity conflict, base predicate as head
	ErrCodeSchema         = "E205" // invalid CUE vocabulary
)

// ParseError reports malformed rule, fact or query text.
type ParseError struct {
	Line     int    // 1-based
	Column   int    // 1-based
	Fragment string // offending text, truncated
	Message  string
}

func (e *ParseError) Error() string {
	if e.Fragment != "" {
		return fmt.Sprintf("line %d:%d: %s near %q", e.Line, e.Column, e.Message, e.Fragment)
	}
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
}

// Code returns the load error code.
func (e *ParseError) Code() string { return ErrCodeParse }

// UnsafeRuleError reports a variable that no positive body literal binds.
type UnsafeRuleError struct {
	Rule     string // rule text
	Line     int
	Variable string
	Negated  bool // the variable occurs in a negated literal rather than the head
}

func (e *UnsafeRuleError) Error() string {
	where := "head"
	if e.Negated {
		where = "negated literal"
	}
	return fmt.Sprintf("line %d: unsafe rule: variable %s in %s is not bound by a positive body literal: %s",
		e.Line, e.Variable, where, e.Rule)
}

// Code returns the load error code.
func (e *UnsafeRuleError) Code() string { return ErrCodeUnsafe }

// StratificationError reports a negative dependency inside a recursive component.
type StratificationError struct {
	Cycle []string // sorted predicate names of the offending component
	Path  []string // a dependency path through the negative edge, closed at its start
}

func (e *StratificationError) Error() string {
	msg := fmt.Sprintf("program is not stratifiable: negation inside recursive component {%s}",
		strings.Join(e.Cycle, ", "))
	if len(e.Path) > 0 {
		msg += ": " + strings.Join(e.Path, " → ")
	}
	return msg
}

// Code returns the load error code.
func (e *StratificationError) Code() string { return ErrCodeStratification }

// DeclarationError reports an inconsistent predicate signature.
type DeclarationError struct {
	Predicate string
	Line      int // 0 when not tied to a rule
	Message   string
}

func (e *DeclarationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: predicate %s: %s", e.Line, e.Predicate, e.Message)
	}
	return fmt.Sprintf("predicate %s: %s", e.Predicate, e.Message)
}

// Code returns the load error code.
func (e *DeclarationError) Code() string { return ErrCodeDeclaration }

// CompileError represents a schema error with CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     cuetoken.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Code returns the load error code.
func (e *CompileError) Code() string { return ErrCodeSchema }

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// ErrorCode returns the load error code carried by err, or "" if none.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// IsStratificationError reports whether err is or wraps a StratificationError.
func IsStratificationError(err error) bool {
	var se *StratificationError
	return errors.As(err, &se)
}

// IsUnsafeRuleError reports whether err is or wraps an UnsafeRuleError.
func IsUnsafeRuleError(err error) bool {
	var ue *UnsafeRuleError
	return errors.As(err, &ue)
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
