package factstore

import (
	"math/bits"
	"slices"
	"sync"

	"github.com/google/btree"

	"github.com/roach88/factlog/internal/ir"
)

// relationBtreeDegree is the degree of each relation's btree.
const relationBtreeDegree = 16

// row is one stored tuple. Derived rows carry their support set.
type row struct {
	tuple    ir.Tuple
	key      string
	supports map[string]ir.Support
}

// Less implements the btree.Item interface.
func (r *row) Less(than btree.Item) bool {
	return ir.CompareTuples(r.tuple, than.(*row).tuple) < 0
}

// relation is the ordered, indexed set of tuples of one predicate.
type relation struct {
	name  string
	arity int
	tree  *btree.BTree
	byKey map[string]*row

	// idxMu serializes lazy index construction between concurrent readers.
	idxMu   sync.Mutex
	indexes map[uint64]map[string]map[string]*row // mask -> projected key -> row key -> row
}

func newRelation(name string, arity int) *relation {
	return &relation{
		name:    name,
		arity:   arity,
		tree:    btree.New(relationBtreeDegree),
		byKey:   make(map[string]*row),
		indexes: make(map[uint64]map[string]map[string]*row),
	}
}

func (rel *relation) len() int {
	return rel.tree.Len()
}

func (rel *relation) get(t ir.Tuple) *row {
	return rel.byKey[t.Key()]
}

// insert adds a new row. The caller has checked it is absent.
func (rel *relation) insert(r *row) {
	rel.tree.ReplaceOrInsert(r)
	rel.byKey[r.key] = r
	for mask, idx := range rel.indexes {
		pk := r.tuple.Project(mask)
		bucket := idx[pk]
		if bucket == nil {
			bucket = make(map[string]*row)
			idx[pk] = bucket
		}
		bucket[r.key] = r
	}
}

// remove deletes a row and reports whether it was present.
func (rel *relation) remove(r *row) bool {
	if _, ok := rel.byKey[r.key]; !ok {
		return false
	}
	rel.tree.Delete(r)
	delete(rel.byKey, r.key)
	for mask, idx := range rel.indexes {
		pk := r.tuple.Project(mask)
		if bucket := idx[pk]; bucket != nil {
			delete(bucket, r.key)
			if len(bucket) == 0 {
				delete(idx, pk)
			}
		}
	}
	return true
}

// clear drops every row and index.
func (rel *relation) clear() {
	rel.tree.Clear(false)
	rel.byKey = make(map[string]*row)
	rel.indexes = make(map[uint64]map[string]map[string]*row)
}

// isPrefixMask reports whether mask selects positions 0..k-1 for some k > 0.
func isPrefixMask(mask uint64) bool {
	return mask != 0 && mask&(mask+1) == 0
}

// scan calls fn for every row matching p, in tuple order, until fn returns false.
func (rel *relation) scan(p ir.Pattern, fn func(*row) bool) {
	mask := p.Mask()
	full := uint64(1)<<uint(rel.arity) - 1
	if rel.arity == ir.MaxArity {
		full = ^uint64(0)
	}

	switch {
	case rel.tree.Len() == 0:
		return

	case mask == 0:
		rel.tree.Ascend(func(i btree.Item) bool {
			return fn(i.(*row))
		})

	case mask == full:
		if r := rel.byKey[ir.Tuple(p).Key()]; r != nil {
			fn(r)
		}

	case isPrefixMask(mask):
		k := bits.TrailingZeros64(^mask)
		pivot := &row{tuple: ir.Tuple(p[:k])}
		rel.tree.AscendGreaterOrEqual(pivot, func(i btree.Item) bool {
			r := i.(*row)
			for j := 0; j < k; j++ {
				if !ir.Equal(p[j], r.tuple[j]) {
					return false
				}
			}
			return fn(r)
		})

	default:
		for _, r := range rel.indexed(mask, p.BoundKey()) {
			if !fn(r) {
				return
			}
		}
	}
}

// indexed returns the rows under a projected key, sorted by tuple.
// The index for mask is built on first use.
func (rel *relation) indexed(mask uint64, key string) []*row {
	rel.idxMu.Lock()
	idx, ok := rel.indexes[mask]
	if !ok {
		idx = make(map[string]map[string]*row)
		rel.tree.Ascend(func(i btree.Item) bool {
			r := i.(*row)
			pk := r.tuple.Project(mask)
			bucket := idx[pk]
			if bucket == nil {
				bucket = make(map[string]*row)
				idx[pk] = bucket
			}
			bucket[r.key] = r
			return true
		})
		rel.indexes[mask] = idx
	}
	bucket := idx[key]
	out := make([]*row, 0, len(bucket))
	for _, r := range bucket {
		out = append(out, r)
	}
	rel.idxMu.Unlock()

	slices.SortFunc(out, func(a, b *row) int {
		return ir.CompareTuples(a.tuple, b.tuple)
	})
	return out
}
