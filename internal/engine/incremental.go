package engine

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/factlog/internal/factstore"
	"github.com/roach88/factlog/internal/ir"
)

// Delta is a batch of base-fact changes applied as one unit.
// Retractions are applied before additions.
type Delta struct {
	Added     []ir.Fact
	Retracted []ir.Fact
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Retracted) == 0
}

// DeltaResult lists the derived facts that appeared and disappeared,
// each in fact order.
type DeltaResult struct {
	Added   []ir.Fact
	Removed []ir.Fact
}

// changeSet remembers whether each touched fact was present before the
// current phase, so net changes can be computed once the phase ends.
type changeSet struct {
	was   map[string]bool
	facts map[string]ir.Fact
	order []string
}

func newChangeSet() *changeSet {
	return &changeSet{
		was:   make(map[string]bool),
		facts: make(map[string]ir.Fact),
	}
}

// touch records f's presence. Only the first call per fact counts, so callers
// must touch a fact before mutating it.
func (c *changeSet) touch(f ir.Fact, present bool) {
	k := f.Key()
	if _, seen := c.was[k]; seen {
		return
	}
	c.was[k] = present
	c.facts[k] = ir.Fact{Predicate: f.Predicate, Args: slices.Clone(f.Args)}
	c.order = append(c.order, k)
}

// net returns the facts now present that were absent, and the reverse.
func (c *changeSet) net(s *factstore.Store) (plus, minus []ir.Fact) {
	for _, k := range c.order {
		f := c.facts[k]
		now := s.Contains(f)
		switch {
		case now && !c.was[k]:
			plus = append(plus, f)
		case !now && c.was[k]:
			minus = append(minus, f)
		}
	}
	slices.SortFunc(plus, ir.CompareFacts)
	slices.SortFunc(minus, ir.CompareFacts)
	return plus, minus
}

// validateDelta checks every fact of d against the base declarations.
func (e *Engine) validateDelta(d Delta) error {
	for _, f := range d.Retracted {
		if err := e.store.CheckBase(f); err != nil {
			return err
		}
	}
	for _, f := range d.Added {
		if err := e.store.CheckBase(f); err != nil {
			return err
		}
	}
	return nil
}

// applyDelta updates base facts and maintains every derived fact.
// The caller holds the write lock and an open store transaction, and has
// validated d.
func (e *Engine) applyDelta(ctx context.Context, d Delta) (DeltaResult, error) {
	base := newChangeSet()
	for _, f := range d.Retracted {
		base.touch(f, e.store.Contains(f))
		if _, err := e.store.Retract(f.Predicate, f.Args); err != nil {
			return DeltaResult{}, newRuntimeError("delta", -1, err)
		}
	}
	for _, f := range d.Added {
		base.touch(f, e.store.Contains(f))
		if _, err := e.store.Insert(f); err != nil {
			return DeltaResult{}, newRuntimeError("delta", -1, err)
		}
	}
	plus, minus := base.net(e.store)

	if !e.seeded {
		return e.seedDerived(ctx)
	}

	var res DeltaResult
	for _, st := range e.prog.Strata.Strata {
		if err := ctx.Err(); err != nil {
			return DeltaResult{}, newRuntimeError("delta", st.Index, err)
		}
		if len(e.plans[st.Index]) == 0 || (len(plus) == 0 && len(minus) == 0) {
			continue
		}
		sp, sm, err := e.updateStratum(ctx, st.Index, plus, minus)
		if err != nil {
			return DeltaResult{}, newRuntimeError("delta", st.Index, err)
		}
		plus = append(plus, sp...)
		minus = append(minus, sm...)
		res.Added = append(res.Added, sp...)
		res.Removed = append(res.Removed, sm...)
	}
	slices.SortFunc(res.Added, ir.CompareFacts)
	slices.SortFunc(res.Removed, ir.CompareFacts)
	return res, nil
}

// seedDerived runs the first full evaluation of a never-evaluated engine.
// Every derived fact it produces is new.
func (e *Engine) seedDerived(ctx context.Context) (DeltaResult, error) {
	if _, err := e.evaluateAll(ctx); err != nil {
		return DeltaResult{}, err
	}
	added := e.store.Facts(ir.Derived)
	slices.SortFunc(added, ir.CompareFacts)
	e.log.Debug("derived facts seeded", zap.Int("derived", len(added)))
	return DeltaResult{Added: added}, nil
}

// updateStratum brings one stratum up to date with the net changes of every
// lower stratum and returns its own net changes.
func (e *Engine) updateStratum(ctx context.Context, idx int, plus, minus []ir.Fact) (sp, sm []ir.Fact, err error) {
	rules := e.plans[idx]
	changes := newChangeSet()
	inStratum := func(pred string) bool {
		s, ok := e.prog.Strata.Of[pred]
		return ok && s == idx
	}

	// Delete. Non-recursive heads lose exactly the invalid support; recursive
	// heads are over-deleted and re-derived below.
	var overDeleted, removed []ir.Fact
	invalidate := func(ref factstore.SupportRef) {
		if !inStratum(ref.Fact.Predicate) || !e.store.Contains(ref.Fact) {
			return
		}
		changes.touch(ref.Fact, true)
		if e.prog.Strata.Recursive[ref.Fact.Predicate] {
			f := ir.Fact{Predicate: ref.Fact.Predicate, Args: slices.Clone(ref.Fact.Args)}
			if e.store.RemoveDerived(f) {
				overDeleted = append(overDeleted, f)
				removed = append(removed, f)
			}
			return
		}
		if e.store.RemoveSupport(ref) {
			removed = append(removed, ref.Fact)
		}
	}
	for _, f := range minus {
		for _, ref := range e.store.Dependents(f) {
			invalidate(ref)
		}
	}
	for _, f := range plus {
		for _, ref := range e.store.Watchers(f) {
			invalidate(ref)
		}
	}
	for len(removed) > 0 {
		f := removed[0]
		removed = removed[1:]
		for _, ref := range e.store.Dependents(f) {
			invalidate(ref)
		}
	}

	delta := make(deltaSet)
	emit := func(f ir.Fact, sup ir.Support) {
		if !e.store.Contains(f) {
			changes.touch(f, false)
		}
		if e.derive(f, sup) {
			delta.add(f)
		}
	}

	// Re-derive over-deleted facts that still have a proof.
	for _, f := range overDeleted {
		for _, p := range e.byHead[f.Predicate] {
			if p.stratum != idx {
				continue
			}
			sub, ok := MatchTuple(p.rule.Head.Args, f.Args, nil)
			if !ok {
				continue
			}
			e.instantiate(p, -1, nil, sub, emit)
		}
	}

	// Rules whose negated literal matched a removed fact may now fire.
	for _, f := range minus {
		for _, use := range e.negUsers[f.Predicate] {
			if use.plan.stratum != idx {
				continue
			}
			sub, ok := matchNamed(use.plan.rule.Body[use.index].Args, f.Args, nil)
			if !ok {
				continue
			}
			e.instantiate(use.plan, -1, nil, sub, emit)
		}
	}

	for _, f := range plus {
		delta.add(f)
	}
	e.log.Debug("delete and re-derive complete",
		zap.Int("stratum", idx),
		zap.Int("over_deleted", len(overDeleted)),
		zap.Int("seed", delta.size()),
	)
	lim := NewRoundLimiter(idx, e.maxRounds)
	if err := e.saturate(ctx, rules, delta, lim, func(f ir.Fact) { changes.touch(f, false) }); err != nil {
		return nil, nil, err
	}

	sp, sm = changes.net(e.store)
	return sp, sm, nil
}
