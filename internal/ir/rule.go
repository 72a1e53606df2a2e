package ir

import (
	"strings"
)

// Polarity tags a body literal as positive or negated.
type Polarity int

const (
	Positive Polarity = iota
	Negative
)

// Literal is a predicate applied to atoms, either positive or negated.
type Literal struct {
	Polarity  Polarity
	Predicate string
	Args      []Atom
}

// Negated reports whether the literal is a negation.
func (l Literal) Negated() bool {
	return l.Polarity == Negative
}

// Variables returns the variables of the literal in first-occurrence order.
func (l Literal) Variables() []Variable {
	var out []Variable
	seen := make(map[Variable]bool, len(l.Args))
	for _, a := range l.Args {
		if v, ok := a.(Variable); ok && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// String renders the literal in source syntax.
func (l Literal) String() string {
	var b strings.Builder
	if l.Negated() {
		b.WriteString("not ")
	}
	b.WriteString(l.Predicate)
	if len(l.Args) > 0 {
		b.WriteByte('(')
		for i, a := range l.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Rule is a Horn clause with stratified negation.
// Head is always positive; Body literals are evaluated left to right.
type Rule struct {
	ID   string
	Head Literal
	Body []Literal
	Text string // source text as written, normalized whitespace
	Line int    // 1-based line of the clause start
}

// PositiveVariables returns the variables bound by positive body literals,
// in first-occurrence order. Support bindings are recorded in this order.
func (r Rule) PositiveVariables() []Variable {
	var out []Variable
	seen := make(map[Variable]bool)
	for _, lit := range r.Body {
		if lit.Negated() {
			continue
		}
		for _, v := range lit.Variables() {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// String renders the rule in source syntax.
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString(r.Head.String())
	if len(r.Body) > 0 {
		b.WriteString(" :- ")
		for i, lit := range r.Body {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(lit.String())
		}
	}
	b.WriteByte('.')
	return b.String()
}

// PredicateKind distinguishes extensional from intensional predicates.
type PredicateKind int

const (
	Base PredicateKind = iota
	Derived
)

// String returns the kind name.
func (k PredicateKind) String() string {
	if k == Derived {
		return "derived"
	}
	return "base"
}

// PredicateDecl describes a predicate's signature.
type PredicateDecl struct {
	Name  string
	Arity int
	Kind  PredicateKind
	Doc   string
}

// NegatedPattern records a pattern that had to be absent for a support to hold.
type NegatedPattern struct {
	Predicate string
	Pattern   Pattern
}

// Support is one ground instantiation of a rule that derives a fact.
// A derived fact exists while at least one of its supports holds.
type Support struct {
	Rule      string
	Bindings  Tuple // values of Rule.PositiveVariables, in order
	Premises  []Fact
	Negations []NegatedPattern
}

// Key identifies the support within its fact's support set.
// Rule and positive bindings determine premises and negations.
func (s Support) Key() string {
	return s.Rule + "|" + s.Bindings.Key()
}
