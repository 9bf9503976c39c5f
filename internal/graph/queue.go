package graph

import "container/heap"

// Queue is a priority queue of vertex ids that remembers every id ever
// pushed, so traversals can enqueue each vertex at most once.
//
// Pop order is ascending id for a min queue (topological order) and
// descending id for a max queue (reverse topological order). Since ids are
// totally ordered no further tie-break is needed.
//
// Not safe for concurrent use: traversals are single-threaded.
type Queue struct {
	h      idHeap
	queued map[ID]bool
}

// NewMinQueue creates a queue popping the lowest id first.
func NewMinQueue() *Queue {
	return &Queue{h: idHeap{less: func(a, b ID) bool { return a < b }}, queued: make(map[ID]bool)}
}

// NewMaxQueue creates a queue popping the highest id first.
func NewMaxQueue() *Queue {
	return &Queue{h: idHeap{less: func(a, b ID) bool { return a > b }}, queued: make(map[ID]bool)}
}

// Push adds id unless it was pushed before. Returns false if it was.
func (q *Queue) Push(id ID) bool {
	if q.queued[id] {
		return false
	}
	q.queued[id] = true
	heap.Push(&q.h, id)
	return true
}

// Pop removes and returns the next id. Panics if the queue is empty.
func (q *Queue) Pop() ID {
	return heap.Pop(&q.h).(ID)
}

// Len returns the number of ids waiting.
func (q *Queue) Len() int {
	return q.h.Len()
}

// idHeap implements heap.Interface over ids.
type idHeap struct {
	ids  []ID
	less func(a, b ID) bool
}

func (h idHeap) Len() int           { return len(h.ids) }
func (h idHeap) Less(i, j int) bool { return h.less(h.ids[i], h.ids[j]) }
func (h idHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }

func (h *idHeap) Push(x any) {
	h.ids = append(h.ids, x.(ID))
}

func (h *idHeap) Pop() any {
	n := len(h.ids)
	id := h.ids[n-1]
	h.ids = h.ids[:n-1]
	return id
}
