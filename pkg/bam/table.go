package bam

import "github.com/aretw0/fixpoint/pkg/domain"

// table maps tuples of abstract states to values using Hash and Equal.
type table[V any] struct {
	buckets map[uint64][]row[V]
	size    int
}

type row[V any] struct {
	key []domain.AbstractState
	val V
}

func newTable[V any]() *table[V] {
	return &table[V]{buckets: make(map[uint64][]row[V])}
}

func tupleHash(key []domain.AbstractState) uint64 {
	var h uint64 = 14695981039346656037
	for _, k := range key {
		h = (h ^ k.Hash()) * 1099511628211
	}
	return h
}

func sameKey(a, b []domain.AbstractState) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (t *table[V]) get(key ...domain.AbstractState) (V, bool) {
	for _, r := range t.buckets[tupleHash(key)] {
		if sameKey(r.key, key) {
			return r.val, true
		}
	}
	var zero V
	return zero, false
}

func (t *table[V]) put(val V, key ...domain.AbstractState) {
	h := tupleHash(key)
	bucket := t.buckets[h]
	for i, r := range bucket {
		if sameKey(r.key, key) {
			bucket[i].val = val
			return
		}
	}
	t.buckets[h] = append(bucket, row[V]{key: append([]domain.AbstractState(nil), key...), val: val})
	t.size++
}

// deleteWhere removes every row whose value matches and returns how many were removed.
func (t *table[V]) deleteWhere(match func(V) bool) int {
	removed := 0
	for h, bucket := range t.buckets {
		kept := bucket[:0]
		for _, r := range bucket {
			if match(r.val) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(t.buckets, h)
		} else {
			t.buckets[h] = kept
		}
	}
	t.size -= removed
	return removed
}

func (t *table[V]) len() int { return t.size }

func (t *table[V]) clear() {
	t.buckets = make(map[uint64][]row[V])
	t.size = 0
}
