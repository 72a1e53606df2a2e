package factstore

import (
	"slices"
	"strings"

	"github.com/roach88/factlog/internal/ir"
)

// SupportRef names one support of one derived fact.
type SupportRef struct {
	Fact ir.Fact
	Key  string // ir.Support.Key
}

func (r SupportRef) id() string {
	return r.Fact.Key() + "\x00" + r.Key
}

// provenance holds the reverse indexes from facts to the supports they affect.
type provenance struct {
	// premise fact key -> supports that used the fact positively
	dependents map[string]map[string]SupportRef
	// predicate -> mask -> bound key -> supports whose negation the pattern guards
	watchers map[string]map[uint64]map[string]map[string]SupportRef
}

func newProvenance() *provenance {
	return &provenance{
		dependents: make(map[string]map[string]SupportRef),
		watchers:   make(map[string]map[uint64]map[string]map[string]SupportRef),
	}
}

func (p *provenance) link(ref SupportRef, sup ir.Support) {
	id := ref.id()
	for _, prem := range sup.Premises {
		k := prem.Key()
		set := p.dependents[k]
		if set == nil {
			set = make(map[string]SupportRef)
			p.dependents[k] = set
		}
		set[id] = ref
	}
	for _, neg := range sup.Negations {
		byMask := p.watchers[neg.Predicate]
		if byMask == nil {
			byMask = make(map[uint64]map[string]map[string]SupportRef)
			p.watchers[neg.Predicate] = byMask
		}
		mask := neg.Pattern.Mask()
		byKey := byMask[mask]
		if byKey == nil {
			byKey = make(map[string]map[string]SupportRef)
			byMask[mask] = byKey
		}
		bk := neg.Pattern.BoundKey()
		set := byKey[bk]
		if set == nil {
			set = make(map[string]SupportRef)
			byKey[bk] = set
		}
		set[id] = ref
	}
}

func (p *provenance) unlink(ref SupportRef, sup ir.Support) {
	id := ref.id()
	for _, prem := range sup.Premises {
		k := prem.Key()
		if set := p.dependents[k]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(p.dependents, k)
			}
		}
	}
	for _, neg := range sup.Negations {
		byMask := p.watchers[neg.Predicate]
		if byMask == nil {
			continue
		}
		mask := neg.Pattern.Mask()
		byKey := byMask[mask]
		if byKey == nil {
			continue
		}
		bk := neg.Pattern.BoundKey()
		if set := byKey[bk]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(byKey, bk)
			}
		}
		if len(byKey) == 0 {
			delete(byMask, mask)
		}
		if len(byMask) == 0 {
			delete(p.watchers, neg.Predicate)
		}
	}
}

func sortedRefs(set map[string]SupportRef) []SupportRef {
	out := make([]SupportRef, 0, len(set))
	for _, ref := range set {
		out = append(out, ref)
	}
	slices.SortFunc(out, func(a, b SupportRef) int {
		if c := ir.CompareFacts(a.Fact, b.Fact); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

// Dependents returns the supports that use f as a positive premise.
func (s *Store) Dependents(f ir.Fact) []SupportRef {
	return sortedRefs(s.prov.dependents[f.Key()])
}

// Watchers returns the supports that required no fact matching f to exist.
// Adding f invalidates each of them.
func (s *Store) Watchers(f ir.Fact) []SupportRef {
	byMask := s.prov.watchers[f.Predicate]
	if len(byMask) == 0 {
		return nil
	}
	merged := make(map[string]SupportRef)
	for mask, byKey := range byMask {
		for id, ref := range byKey[f.Args.Project(mask)] {
			merged[id] = ref
		}
	}
	return sortedRefs(merged)
}

// AddDerived records a support for a derived fact, creating the fact if needed.
// It reports whether the fact is new and whether the support is new.
func (s *Store) AddDerived(f ir.Fact, sup ir.Support) (newFact, newSupport bool) {
	rel := s.derived[f.Predicate]
	if rel == nil {
		return false, false
	}
	key := f.Args.Key()
	r := rel.byKey[key]
	if r == nil {
		r = &row{tuple: slices.Clone(f.Args), key: key, supports: make(map[string]ir.Support, 1)}
		rel.insert(r)
		newFact = true
		s.record(func() { rel.remove(r) })
	}

	sk := sup.Key()
	if _, exists := r.supports[sk]; exists {
		return newFact, false
	}
	r.supports[sk] = sup
	ref := SupportRef{Fact: ir.Fact{Predicate: f.Predicate, Args: r.tuple}, Key: sk}
	s.prov.link(ref, sup)
	s.record(func() {
		delete(r.supports, sk)
		s.prov.unlink(ref, sup)
	})
	return newFact, true
}

// RemoveSupport drops one support. When the support set becomes empty the
// fact is removed and RemoveSupport reports true.
func (s *Store) RemoveSupport(ref SupportRef) bool {
	rel := s.derived[ref.Fact.Predicate]
	if rel == nil {
		return false
	}
	r := rel.byKey[ref.Fact.Args.Key()]
	if r == nil {
		return false
	}
	sup, ok := r.supports[ref.Key]
	if !ok {
		return false
	}
	delete(r.supports, ref.Key)
	s.prov.unlink(ref, sup)
	s.record(func() {
		r.supports[ref.Key] = sup
		s.prov.link(ref, sup)
	})
	if len(r.supports) > 0 {
		return false
	}
	rel.remove(r)
	s.record(func() { rel.insert(r) })
	return true
}

// RemoveDerived drops a derived fact with all of its supports and reports
// whether it was present.
func (s *Store) RemoveDerived(f ir.Fact) bool {
	rel := s.derived[f.Predicate]
	if rel == nil {
		return false
	}
	r := rel.byKey[f.Args.Key()]
	if r == nil {
		return false
	}
	keys := make([]string, 0, len(r.supports))
	for k := range r.supports {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s.RemoveSupport(SupportRef{Fact: ir.Fact{Predicate: f.Predicate, Args: r.tuple}, Key: k})
	}
	if len(keys) == 0 {
		rel.remove(r)
		s.record(func() { rel.insert(r) })
	}
	return true
}

// Supports returns the support set of a derived fact, ordered by key.
func (s *Store) Supports(f ir.Fact) []ir.Support {
	rel := s.derived[f.Predicate]
	if rel == nil {
		return nil
	}
	r := rel.byKey[f.Args.Key()]
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.supports))
	for k := range r.supports {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]ir.Support, len(keys))
	for i, k := range keys {
		out[i] = r.supports[k]
	}
	return out
}

// ClearDerived empties the derived partition and all provenance indexes.
func (s *Store) ClearDerived() {
	oldDerived, oldProv := s.derived, s.prov
	fresh := make(map[string]*relation, len(oldDerived))
	for n, rel := range oldDerived {
		fresh[n] = newRelation(n, rel.arity)
	}
	s.derived = fresh
	s.prov = newProvenance()
	s.record(func() {
		s.derived = oldDerived
		s.prov = oldProv
	})
}
