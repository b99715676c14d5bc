// Package queue is a stable min-priority queue: values come out in
// ascending key order, and in insertion order among equal keys.
package queue

import (
	"container/heap"

	"golang.org/x/exp/constraints"
)

type entry[K constraints.Ordered, V any] struct {
	key K
	seq uint64
	v   V
}

type entries[K constraints.Ordered, V any] []*entry[K, V]

func (es entries[K, V]) Len() int { return len(es) }

func (es entries[K, V]) Less(i, j int) bool {
	if es[i].key != es[j].key {
		return es[i].key < es[j].key
	}
	return es[i].seq < es[j].seq
}

func (es entries[K, V]) Swap(i, j int) { es[i], es[j] = es[j], es[i] }

func (es *entries[K, V]) Push(x any) { *es = append(*es, x.(*entry[K, V])) }

func (es *entries[K, V]) Pop() any {
	old := *es
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*es = old[:n-1]
	return e
}

// Queue is not safe for concurrent use.
type Queue[K constraints.Ordered, V any] struct {
	es  entries[K, V]
	seq uint64
}

func NewQueue[K constraints.Ordered, V any]() *Queue[K, V] {
	return &Queue[K, V]{es: make(entries[K, V], 0)}
}

func (q *Queue[K, V]) Push(key K, v V) {
	heap.Push(&q.es, &entry[K, V]{key: key, seq: q.seq, v: v})
	q.seq++
}

func (q *Queue[K, V]) Pop() (V, bool) {
	if len(q.es) == 0 {
		var z V
		return z, false
	}
	e := heap.Pop(&q.es).(*entry[K, V])
	return e.v, true
}

func (q *Queue[K, V]) Peek() (V, bool) {
	if len(q.es) == 0 {
		var z V
		return z, false
	}
	return q.es[0].v, true
}

func (q *Queue[K, V]) Len() int {
	return len(q.es)
}
