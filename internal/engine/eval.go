package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/factlog/internal/ir"
)

// deltaSet holds facts that are new since the previous round, by predicate.
type deltaSet map[string][]ir.Tuple

func (d deltaSet) add(f ir.Fact) {
	d[f.Predicate] = append(d[f.Predicate], f.Args)
}

func (d deltaSet) size() int {
	n := 0
	for _, ts := range d {
		n += len(ts)
	}
	return n
}

// instantiate enumerates every instantiation of p's body that extends sub
// and calls emit with the derived fact and its support.
//
// When first >= 0 the literal at that body position reads only the delta
// tuples instead of the store. Every other positive literal goes through
// Unify; negated literals must have no match in the store.
func (e *Engine) instantiate(p *rulePlan, first int, delta []ir.Tuple, sub ir.Substitution, emit func(ir.Fact, ir.Support)) {
	body := p.rule.Body
	order := p.orders[first]
	premises := make([]ir.Fact, len(body))

	var walk func(k int, sub ir.Substitution)
	walk = func(k int, sub ir.Substitution) {
		if k == len(order) {
			if f, sup, ok := p.support(sub, premises); ok {
				emit(f, sup)
			}
			return
		}
		i := order[k]
		lit := body[i]

		if lit.Negated() {
			if e.store.Exists(lit.Predicate, negationPattern(lit.Args, sub)) {
				return
			}
			walk(k+1, sub)
			return
		}

		if i == first {
			for _, t := range delta {
				if ext, ok := MatchTuple(lit.Args, t, sub); ok {
					premises[i] = ir.Fact{Predicate: lit.Predicate, Args: t}
					walk(k+1, ext)
				}
			}
			return
		}
		for _, ext := range Unify(lit, e.store, sub) {
			t, _ := ext.Ground(lit.Args)
			premises[i] = ir.Fact{Predicate: lit.Predicate, Args: t}
			walk(k+1, ext)
		}
	}
	walk(0, sub)
}

// derive records a derivation in the store and reports whether the fact is new.
func (e *Engine) derive(f ir.Fact, sup ir.Support) bool {
	newFact, newSupport := e.store.AddDerived(f, sup)
	if newSupport {
		e.metrics.derivation()
	}
	return newFact
}

// saturate runs semi-naive rounds over rules until a round derives nothing new.
//
// In each round a rule is re-applied once per positive body literal whose
// predicate appears in delta, with that literal restricted to the delta.
// onNew, when set, is called with each fact just before it enters the store.
func (e *Engine) saturate(ctx context.Context, rules []*rulePlan, delta deltaSet, lim *RoundLimiter, onNew func(ir.Fact)) error {
	for consumes(rules, delta) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := lim.Check(); err != nil {
			return err
		}
		e.metrics.round()

		next := make(deltaSet)
		for _, p := range rules {
			for _, i := range p.positives {
				d := delta[p.rule.Body[i].Predicate]
				if len(d) == 0 {
					continue
				}
				e.instantiate(p, i, d, nil, func(f ir.Fact, sup ir.Support) {
					if onNew != nil && !e.store.Contains(f) {
						onNew(f)
					}
					if e.derive(f, sup) {
						next.add(f)
					}
				})
			}
		}
		e.log.Debug("round complete",
			zap.Int("stratum", lim.stratum),
			zap.Int("round", lim.Current()),
			zap.Int("delta", delta.size()),
			zap.Int("new", next.size()),
		)
		delta = next
	}
	return nil
}

// consumes reports whether some rule has a positive literal over a delta predicate.
func consumes(rules []*rulePlan, delta deltaSet) bool {
	for _, p := range rules {
		for _, i := range p.positives {
			if len(delta[p.rule.Body[i].Predicate]) > 0 {
				return true
			}
		}
	}
	return false
}

// evaluateAll recomputes every derived fact from the base partition.
// The caller holds the write lock and an open store transaction.
func (e *Engine) evaluateAll(ctx context.Context) (int, error) {
	e.store.ClearDerived()
	for _, st := range e.prog.Strata.Strata {
		if err := ctx.Err(); err != nil {
			return 0, newRuntimeError("evaluate", st.Index, err)
		}
		rules := e.plans[st.Index]
		if len(rules) == 0 {
			continue
		}

		lim := NewRoundLimiter(st.Index, e.maxRounds)
		if err := lim.Check(); err != nil {
			return 0, newRuntimeError("evaluate", st.Index, err)
		}
		e.metrics.round()

		delta := make(deltaSet)
		for _, p := range rules {
			e.instantiate(p, -1, nil, nil, func(f ir.Fact, sup ir.Support) {
				if e.derive(f, sup) {
					delta.add(f)
				}
			})
		}
		e.log.Debug("naive round complete",
			zap.Int("stratum", st.Index),
			zap.Int("rules", len(rules)),
			zap.Int("new", delta.size()),
		)
		if err := e.saturate(ctx, rules, delta, lim, nil); err != nil {
			return 0, newRuntimeError("evaluate", st.Index, err)
		}
	}
	return e.store.Stats().Derived, nil
}
