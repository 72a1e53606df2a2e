package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/factlog/internal/ir"
)

// Program is a loaded, checked and stratified rule set. It is immutable.
type Program struct {
	Predicates map[string]ir.PredicateDecl
	Rules      []ir.Rule
	Strata     *Stratification
	Hash       string // content hash of the rendered rules
}

// Load parses rule source and compiles it against an optional schema.
func Load(src string, schema *Schema) (*Program, error) {
	rules, err := ParseRules(src)
	if err != nil {
		return nil, err
	}
	return Compile(rules, schema)
}

// Compile checks rules and builds the program.
//
// Checks, in order: rule safety, consistent arity across every use and the
// schema, base predicates never used as heads, stratification. The first
// failure is returned.
func Compile(rules []ir.Rule, schema *Schema) (*Program, error) {
	for _, r := range rules {
		if err := CheckSafety(r); err != nil {
			return nil, err
		}
	}

	decls := make(map[string]ir.PredicateDecl)
	declaredBase := make(map[string]bool)
	if schema != nil {
		for _, p := range schema.Predicates {
			decls[p.Name] = ir.PredicateDecl{Name: p.Name, Arity: p.Arity, Kind: p.Kind, Doc: p.Doc}
			if p.KindSet && p.Kind == ir.Base {
				declaredBase[p.Name] = true
			}
		}
	}

	use := func(lit ir.Literal, line int, head bool) error {
		d, seen := decls[lit.Predicate]
		if seen && d.Arity != len(lit.Args) {
			return &DeclarationError{
				Predicate: lit.Predicate,
				Line:      line,
				Message:   fmt.Sprintf("used with %d arguments, declared with %d", len(lit.Args), d.Arity),
			}
		}
		if !seen {
			d = ir.PredicateDecl{Name: lit.Predicate, Arity: len(lit.Args), Kind: ir.Base}
		}
		if head {
			if declaredBase[lit.Predicate] {
				return &DeclarationError{
					Predicate: lit.Predicate,
					Line:      line,
					Message:   "base predicate cannot be a rule head",
				}
			}
			d.Kind = ir.Derived
		}
		decls[lit.Predicate] = d
		return nil
	}

	for _, r := range rules {
		if err := use(r.Head, r.Line, true); err != nil {
			return nil, err
		}
		for _, lit := range r.Body {
			if err := use(lit, r.Line, false); err != nil {
				return nil, err
			}
		}
	}

	names := make([]string, 0, len(decls))
	for n := range decls {
		names = append(names, n)
	}
	slices.Sort(names)

	strata, err := Stratify(names, rules)
	if err != nil {
		return nil, err
	}

	return &Program{
		Predicates: decls,
		Rules:      slices.Clone(rules),
		Strata:     strata,
		Hash:       ir.ProgramHash(rules),
	}, nil
}

// Decls returns predicate declarations sorted by name.
func (p *Program) Decls() []ir.PredicateDecl {
	out := make([]ir.PredicateDecl, 0, len(p.Predicates))
	for _, d := range p.Predicates {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b ir.PredicateDecl) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Rule returns the rule with the given ID.
func (p *Program) Rule(id string) (ir.Rule, bool) {
	for _, r := range p.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return ir.Rule{}, false
}
