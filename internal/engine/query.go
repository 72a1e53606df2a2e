package engine

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/factstore"
	"github.com/roach88/factlog/internal/ir"
)

// Binding is one answer to a query: the matched fact and the values of the
// query's named variables.
type Binding struct {
	Fact ir.Fact
	Vars ir.Substitution
}

// String renders the binding as "X=1, Y=open", sorted by variable.
func (b Binding) String() string {
	names := make([]string, 0, len(b.Vars))
	for v := range b.Vars {
		names = append(names, string(v))
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + b.Vars[ir.Variable(n)].String()
	}
	return strings.Join(parts, ", ")
}

// checkPredicate validates a predicate name and arity against the program.
func (e *Engine) checkPredicate(predicate string, arity int) error {
	d, ok := e.prog.Predicates[predicate]
	if !ok {
		return &factstore.UnknownPredicateError{Predicate: predicate}
	}
	if d.Arity != arity {
		return &factstore.ArityMismatchError{Predicate: predicate, Expected: d.Arity, Got: arity}
	}
	return nil
}

// Query returns the facts matching a positive literal, base or derived.
//
// The predicate and arity are validated up front. The returned sequence is
// lazy and restartable: each iteration reads the store under the read lock,
// so it reflects the latest committed state. A declared predicate with no
// matching facts yields nothing.
func (e *Engine) Query(ctx context.Context, lit ir.Literal) (iter.Seq[Binding], error) {
	if lit.Negated() {
		return nil, fmt.Errorf("query %s: negated literals cannot be queried", lit)
	}
	if err := e.checkPredicate(lit.Predicate, len(lit.Args)); err != nil {
		return nil, err
	}
	return func(yield func(Binding) bool) {
		if ctx.Err() != nil {
			return
		}
		e.mu.RLock()
		subs := Unify(lit, e.store, nil)
		e.mu.RUnlock()

		for _, sub := range subs {
			t, _ := sub.Ground(lit.Args)
			vars := make(ir.Substitution, len(sub))
			for v, c := range sub {
				if !v.Anonymous() {
					vars[v] = c
				}
			}
			if !yield(Binding{Fact: ir.Fact{Predicate: lit.Predicate, Args: t}, Vars: vars}) {
				return
			}
		}
	}, nil
}

// QueryString parses a textual query such as "issue(X, _, open)" and runs it.
func (e *Engine) QueryString(ctx context.Context, src string) (iter.Seq[Binding], error) {
	lit, err := compiler.ParseQuery(src)
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, lit)
}

// Lookup returns the tuples of predicate matching pattern, in tuple order.
// A nil pattern matches every tuple. Validation and laziness follow Query.
func (e *Engine) Lookup(ctx context.Context, predicate string, pattern ir.Pattern) (iter.Seq[ir.Tuple], error) {
	d, ok := e.prog.Predicates[predicate]
	if !ok {
		return nil, &factstore.UnknownPredicateError{Predicate: predicate}
	}
	if pattern == nil {
		pattern = make(ir.Pattern, d.Arity)
	}
	if err := e.checkPredicate(predicate, len(pattern)); err != nil {
		return nil, err
	}
	pattern = slices.Clone(pattern)
	return func(yield func(ir.Tuple) bool) {
		if ctx.Err() != nil {
			return
		}
		e.mu.RLock()
		tuples, err := e.store.Lookup(predicate, pattern)
		e.mu.RUnlock()
		if err != nil {
			return
		}
		for _, t := range tuples {
			if !yield(t) {
				return
			}
		}
	}, nil
}

// PredicateInfo describes a predicate for listing.
type PredicateInfo struct {
	ir.PredicateDecl
	Stratum   int
	Recursive bool
	Count     int
}

// ListPredicates returns every predicate ordered by stratum, then name.
func (e *Engine) ListPredicates() []PredicateInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	decls := e.prog.Decls()
	out := make([]PredicateInfo, 0, len(decls))
	for _, d := range decls {
		out = append(out, PredicateInfo{
			PredicateDecl: d,
			Stratum:       e.prog.Strata.Of[d.Name],
			Recursive:     e.prog.Strata.Recursive[d.Name],
			Count:         e.store.Count(d.Name),
		})
	}
	slices.SortStableFunc(out, func(a, b PredicateInfo) int {
		return a.Stratum - b.Stratum
	})
	return out
}

// StratumRules lists the rule texts of one stratum in source order.
type StratumRules struct {
	Index int
	Rules []string
}

// ListRules returns rule texts grouped by stratum, strata in order.
// Strata without rules are omitted.
func (e *Engine) ListRules() []StratumRules {
	var out []StratumRules
	for _, st := range e.prog.Strata.Strata {
		if len(st.Rules) == 0 {
			continue
		}
		sr := StratumRules{Index: st.Index}
		for _, r := range st.Rules {
			sr.Rules = append(sr.Rules, r.Text)
		}
		out = append(out, sr)
	}
	return out
}

// DerivedFacts returns a snapshot of every derived fact in fact order.
func (e *Engine) DerivedFacts() []ir.Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Facts(ir.Derived)
}

// BaseFacts returns a snapshot of every base fact in fact order.
func (e *Engine) BaseFacts() []ir.Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Facts(ir.Base)
}

// Stats returns fact counts per predicate and per partition.
func (e *Engine) Stats() factstore.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Stats()
}
