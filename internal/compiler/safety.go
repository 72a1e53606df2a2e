package compiler

import (
	"github.com/roach88/factlog/internal/ir"
)

// CheckSafety verifies that every head variable and every named variable of
// a negated literal occurs in some positive body literal.
//
// Anonymous variables in a negated literal are existential within that
// literal and need no positive binding. An anonymous variable in the head
// is always unsafe.
func CheckSafety(r ir.Rule) error {
	bound := make(map[ir.Variable]bool)
	for _, lit := range r.Body {
		if lit.Negated() {
			continue
		}
		for _, v := range lit.Variables() {
			bound[v] = true
		}
	}

	for _, v := range r.Head.Variables() {
		if !bound[v] {
			return &UnsafeRuleError{Rule: r.Text, Line: r.Line, Variable: v.String()}
		}
	}

	for _, lit := range r.Body {
		if !lit.Negated() {
			continue
		}
		for _, v := range lit.Variables() {
			if v.Anonymous() {
				continue
			}
			if !bound[v] {
				return &UnsafeRuleError{Rule: r.Text, Line: r.Line, Variable: v.String(), Negated: true}
			}
		}
	}
	return nil
}
