// Package merger selects the best k items from a scored list with a bounded
// min-heap.
package merger

import (
	"container/heap"
)

// TopK returns the k best items of items, best first, where better(a, b)
// reports whether a ranks strictly ahead of b. better must define a strict
// total order for the output to be deterministic. k <= 0 returns every item
// sorted. items is not modified.
func TopK[T any](items []T, k int, better func(a, b T) bool) []T {
	if k <= 0 || k > len(items) {
		k = len(items)
	}
	if k == 0 {
		return nil
	}
	h := &boundedHeap[T]{better: better, items: make([]T, 0, k+1)}
	for _, it := range items {
		if h.Len() < k {
			heap.Push(h, it)
			continue
		}
		// The root is the worst kept item; replace it only by a better one.
		if better(it, h.items[0]) {
			h.items[0] = it
			heap.Fix(h, 0)
		}
	}
	result := make([]T, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(T)
	}
	return result
}

type boundedHeap[T any] struct {
	items  []T
	better func(a, b T) bool
}

func (h *boundedHeap[T]) Len() int { return len(h.items) }

// Less orders the worst item first so the root can be evicted.
func (h *boundedHeap[T]) Less(i, j int) bool {
	return h.better(h.items[j], h.items[i])
}

func (h *boundedHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *boundedHeap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

func (h *boundedHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
