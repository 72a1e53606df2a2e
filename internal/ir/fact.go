package ir

import (
	"strings"
)

// MaxArity bounds predicate arity so bound-position sets fit in a uint64 mask.
const MaxArity = 64

// Tuple is an ordered list of constants.
type Tuple []Constant

// CompareTuples orders tuples lexicographically; a shorter prefix sorts first.
func CompareTuples(a, b Tuple) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Key returns an injective string encoding of the tuple, usable as a map key.
func (t Tuple) Key() string {
	var b strings.Builder
	for _, c := range t {
		writeKey(&b, c)
	}
	return b.String()
}

// Project returns the key of the components selected by mask.
func (t Tuple) Project(mask uint64) string {
	var b strings.Builder
	for i, c := range t {
		if mask&(1<<uint(i)) != 0 {
			writeKey(&b, c)
		}
	}
	return b.String()
}

// String renders the tuple as a parenthesized argument list.
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, c := range t {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Fact is an immutable ground assertion: a predicate applied to a tuple.
type Fact struct {
	Predicate string
	Args      Tuple
}

// NewFact creates a fact from constants.
func NewFact(predicate string, args ...Constant) Fact {
	return Fact{Predicate: predicate, Args: Tuple(args)}
}

// Key identifies the fact structurally.
func (f Fact) Key() string {
	return f.Predicate + "/" + f.Args.Key()
}

// String renders the fact in source syntax without the trailing period.
func (f Fact) String() string {
	if len(f.Args) == 0 {
		return f.Predicate
	}
	return f.Predicate + f.Args.String()
}

// CompareFacts orders facts by predicate name, then by tuple.
func CompareFacts(a, b Fact) int {
	if c := strings.Compare(a.Predicate, b.Predicate); c != 0 {
		return c
	}
	return CompareTuples(a.Args, b.Args)
}

// Pattern is a tuple template where nil positions are wildcards.
type Pattern []Constant

// Mask returns the set of bound positions.
func (p Pattern) Mask() uint64 {
	var m uint64
	for i, c := range p {
		if c != nil {
			m |= 1 << uint(i)
		}
	}
	return m
}

// BoundKey returns the projection key of the bound positions, matching Tuple.Project.
func (p Pattern) BoundKey() string {
	var b strings.Builder
	for _, c := range p {
		if c != nil {
			writeKey(&b, c)
		}
	}
	return b.String()
}

// Matches reports whether t agrees with every bound position of p.
func (p Pattern) Matches(t Tuple) bool {
	if len(p) != len(t) {
		return false
	}
	for i, c := range p {
		if c != nil && !Equal(c, t[i]) {
			return false
		}
	}
	return true
}

// String renders the pattern with _ for wildcards.
func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, c := range p {
		if c == nil {
			parts[i] = "_"
		} else {
			parts[i] = c.String()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Substitution maps variables to the constants they are bound to.
type Substitution map[Variable]Constant

// Clone returns a copy of s with room for extra bindings.
func (s Substitution) Clone(extra int) Substitution {
	out := make(Substitution, len(s)+extra)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Resolve returns the constant an atom denotes under s.
func (s Substitution) Resolve(a Atom) (Constant, bool) {
	switch v := a.(type) {
	case Variable:
		c, ok := s[v]
		return c, ok
	case Constant:
		return v, true
	}
	return nil, false
}

// Ground instantiates atoms under s. It fails if any variable is unbound.
func (s Substitution) Ground(atoms []Atom) (Tuple, bool) {
	if len(atoms) == 0 {
		return nil, true
	}
	t := make(Tuple, len(atoms))
	for i, a := range atoms {
		c, ok := s.Resolve(a)
		if !ok {
			return nil, false
		}
		t[i] = c
	}
	return t, true
}

// Pattern instantiates atoms under s, leaving unbound variables as wildcards.
func (s Substitution) Pattern(atoms []Atom) Pattern {
	p := make(Pattern, len(atoms))
	for i, a := range atoms {
		if c, ok := s.Resolve(a); ok {
			p[i] = c
		}
	}
	return p
}
