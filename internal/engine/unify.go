package engine

import (
	"github.com/roach88/factlog/internal/ir"
)

// Source is the read side of a fact store as seen by the unifier.
// Match returns the tuples of predicate agreeing with p, in tuple order.
type Source interface {
	Match(predicate string, p ir.Pattern) []ir.Tuple
}

// Unify returns every extension of sub under which lit matches a fact of
// src, in tuple order. sub itself is never modified.
//
// Positions bound under sub (constants and bound variables) form the lookup
// pattern, so the store answers from an index. The remaining positions bind
// through MatchTuple, which also enforces repeated variables.
func Unify(lit ir.Literal, src Source, sub ir.Substitution) []ir.Substitution {
	var out []ir.Substitution
	for _, t := range src.Match(lit.Predicate, sub.Pattern(lit.Args)) {
		if ext, ok := MatchTuple(lit.Args, t, sub); ok {
			out = append(out, ext)
		}
	}
	return out
}

// MatchTuple unifies atoms with a ground tuple under sub.
//
// A constant atom must equal its component. A bound variable must equal its
// component. An unbound variable binds, and later occurrences of the same
// variable must agree. On success MatchTuple returns the extended
// substitution; sub is copied only if a new binding is made.
func MatchTuple(atoms []ir.Atom, t ir.Tuple, sub ir.Substitution) (ir.Substitution, bool) {
	if len(atoms) != len(t) {
		return nil, false
	}
	out := sub
	cloned := false
	for i, a := range atoms {
		switch v := a.(type) {
		case ir.Variable:
			if bound, ok := out[v]; ok {
				if !ir.Equal(bound, t[i]) {
					return nil, false
				}
				continue
			}
			if !cloned {
				out = sub.Clone(len(atoms))
				cloned = true
			}
			out[v] = t[i]
		case ir.Constant:
			if !ir.Equal(v, t[i]) {
				return nil, false
			}
		}
	}
	if out == nil {
		out = ir.Substitution{}
	}
	return out, true
}

// negationPattern instantiates a negated literal's arguments. Anonymous
// variables stay wildcards so the literal is existential over them.
func negationPattern(args []ir.Atom, sub ir.Substitution) ir.Pattern {
	p := make(ir.Pattern, len(args))
	for i, a := range args {
		if v, ok := a.(ir.Variable); ok && v.Anonymous() {
			continue
		}
		if c, ok := sub.Resolve(a); ok {
			p[i] = c
		}
	}
	return p
}

// matchNamed unifies atoms with t like MatchTuple but skips anonymous
// variables. It seeds rules from a fact that stopped matching a negated
// literal, where anonymous positions are existential.
func matchNamed(atoms []ir.Atom, t ir.Tuple, sub ir.Substitution) (ir.Substitution, bool) {
	if len(atoms) != len(t) {
		return nil, false
	}
	out := sub.Clone(len(atoms))
	for i, a := range atoms {
		switch v := a.(type) {
		case ir.Variable:
			if v.Anonymous() {
				continue
			}
			if bound, ok := out[v]; ok {
				if !ir.Equal(bound, t[i]) {
					return nil, false
				}
				continue
			}
			out[v] = t[i]
		case ir.Constant:
			if !ir.Equal(v, t[i]) {
				return nil, false
			}
		}
	}
	return out, true
}
