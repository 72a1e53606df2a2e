package factstore

import (
	"slices"
	"strings"

	"github.com/roach88/factlog/internal/ir"
)

// Store is the fact database of one engine instance.
type Store struct {
	decls   map[string]ir.PredicateDecl
	base    map[string]*relation
	derived map[string]*relation
	prov    *provenance

	undo  []func()
	inTxn bool
}

// New creates a store with one empty relation per declared predicate.
func New(decls []ir.PredicateDecl) *Store {
	s := &Store{
		decls:   make(map[string]ir.PredicateDecl, len(decls)),
		base:    make(map[string]*relation),
		derived: make(map[string]*relation),
		prov:    newProvenance(),
	}
	for _, d := range decls {
		s.decls[d.Name] = d
		if d.Kind == ir.Derived {
			s.derived[d.Name] = newRelation(d.Name, d.Arity)
		} else {
			s.base[d.Name] = newRelation(d.Name, d.Arity)
		}
	}
	return s
}

// Decl returns the declaration of a predicate.
func (s *Store) Decl(predicate string) (ir.PredicateDecl, bool) {
	d, ok := s.decls[predicate]
	return d, ok
}

// Predicates returns declared predicate names in sorted order.
func (s *Store) Predicates() []string {
	names := make([]string, 0, len(s.decls))
	for n := range s.decls {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (s *Store) relation(predicate string) *relation {
	if rel, ok := s.base[predicate]; ok {
		return rel
	}
	return s.derived[predicate]
}

// checkBase validates that f targets a declared base predicate with the right arity.
func (s *Store) checkBase(predicate string, arity int) (*relation, error) {
	d, ok := s.decls[predicate]
	if !ok {
		return nil, &UnknownPredicateError{Predicate: predicate}
	}
	if d.Kind == ir.Derived {
		return nil, &UnknownPredicateError{Predicate: predicate, Derived: true}
	}
	if d.Arity != arity {
		return nil, &ArityMismatchError{Predicate: predicate, Expected: d.Arity, Got: arity}
	}
	return s.base[predicate], nil
}

// CheckBase reports whether f could be inserted as a base fact.
func (s *Store) CheckBase(f ir.Fact) error {
	_, err := s.checkBase(f.Predicate, len(f.Args))
	return err
}

// Insert adds a base fact. It reports false, with no error, if the fact is
// already present.
func (s *Store) Insert(f ir.Fact) (bool, error) {
	rel, err := s.checkBase(f.Predicate, len(f.Args))
	if err != nil {
		return false, err
	}
	key := f.Args.Key()
	if _, exists := rel.byKey[key]; exists {
		return false, nil
	}
	r := &row{tuple: slices.Clone(f.Args), key: key}
	rel.insert(r)
	s.record(func() { rel.remove(r) })
	return true, nil
}

// Retract removes a base fact and reports whether it was present.
// Retracting an absent fact is not an error.
func (s *Store) Retract(predicate string, t ir.Tuple) (bool, error) {
	rel, err := s.checkBase(predicate, len(t))
	if err != nil {
		return false, err
	}
	r := rel.byKey[t.Key()]
	if r == nil {
		return false, nil
	}
	rel.remove(r)
	s.record(func() { rel.insert(r) })
	return true, nil
}

// Contains reports whether the fact is stored in either partition.
func (s *Store) Contains(f ir.Fact) bool {
	rel := s.relation(f.Predicate)
	if rel == nil || rel.arity != len(f.Args) {
		return false
	}
	_, ok := rel.byKey[f.Args.Key()]
	return ok
}

// Lookup returns the tuples of predicate matching p, in tuple order.
// A nil pattern matches everything.
func (s *Store) Lookup(predicate string, p ir.Pattern) ([]ir.Tuple, error) {
	d, ok := s.decls[predicate]
	if !ok {
		return nil, &UnknownPredicateError{Predicate: predicate}
	}
	if p == nil {
		p = make(ir.Pattern, d.Arity)
	}
	if len(p) != d.Arity {
		return nil, &ArityMismatchError{Predicate: predicate, Expected: d.Arity, Got: len(p)}
	}
	return s.Match(predicate, p), nil
}

// Match is Lookup for callers that have already validated predicate and arity.
func (s *Store) Match(predicate string, p ir.Pattern) []ir.Tuple {
	rel := s.relation(predicate)
	if rel == nil {
		return nil
	}
	var out []ir.Tuple
	rel.scan(p, func(r *row) bool {
		out = append(out, r.tuple)
		return true
	})
	return out
}

// Exists reports whether any tuple of predicate matches p.
func (s *Store) Exists(predicate string, p ir.Pattern) bool {
	rel := s.relation(predicate)
	if rel == nil {
		return false
	}
	found := false
	rel.scan(p, func(*row) bool {
		found = true
		return false
	})
	return found
}

// Count returns the number of stored tuples of a predicate.
func (s *Store) Count(predicate string) int {
	rel := s.relation(predicate)
	if rel == nil {
		return 0
	}
	return rel.len()
}

// Facts returns every fact of the given partition, ordered by predicate then tuple.
func (s *Store) Facts(kind ir.PredicateKind) []ir.Fact {
	part := s.base
	if kind == ir.Derived {
		part = s.derived
	}
	names := make([]string, 0, len(part))
	for n := range part {
		names = append(names, n)
	}
	slices.SortFunc(names, strings.Compare)

	var out []ir.Fact
	for _, n := range names {
		part[n].scan(nil, func(r *row) bool {
			out = append(out, ir.Fact{Predicate: n, Args: r.tuple})
			return true
		})
	}
	return out
}

// Stats summarizes partition sizes.
type Stats struct {
	Base       int
	Derived    int
	Supports   int
	ByRelation map[string]int
}

// Stats returns fact counts per predicate and per partition.
func (s *Store) Stats() Stats {
	st := Stats{ByRelation: make(map[string]int, len(s.decls))}
	for n, rel := range s.base {
		st.ByRelation[n] = rel.len()
		st.Base += rel.len()
	}
	for n, rel := range s.derived {
		st.ByRelation[n] = rel.len()
		st.Derived += rel.len()
		for _, r := range rel.byKey {
			st.Supports += len(r.supports)
		}
	}
	return st
}
