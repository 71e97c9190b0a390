package queue

import "sync"

// Bounded is a fixed-capacity FIFO backed by a circular array.
//
// Bounded does not lock itself. When an instance is shared between
// goroutines, callers hold Lock around every call (the embedded mutex is
// scoped to this instance only).
type Bounded[T any] struct {
	sync.Mutex

	items []T
	front int
	back  int
	size  int
	id    int
}

// New creates a queue holding at most capacity items. A capacity below one is
// raised to one.
func New[T any](id, capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		items: make([]T, capacity),
		id:    id,
	}
}

// Enqueue adds item at the back. A full queue drops the item and returns false.
func (q *Bounded[T]) Enqueue(item T) bool {
	if q.IsFull() {
		return false
	}
	q.items[q.back] = item
	q.back = (q.back + 1) % len(q.items)
	q.size++
	return true
}

// Dequeue removes and returns the front item. It returns false when empty.
func (q *Bounded[T]) Dequeue() (T, bool) {
	var zero T
	if q.IsEmpty() {
		return zero, false
	}
	item := q.items[q.front]
	q.items[q.front] = zero
	q.front = (q.front + 1) % len(q.items)
	q.size--
	return item, true
}

// Front returns the front item without removing it.
func (q *Bounded[T]) Front() (T, bool) {
	if q.IsEmpty() {
		var zero T
		return zero, false
	}
	return q.items[q.front], true
}

func (q *Bounded[T]) Size() int     { return q.size }
func (q *Bounded[T]) Capacity() int { return len(q.items) }
func (q *Bounded[T]) IsEmpty() bool { return q.size == 0 }
func (q *Bounded[T]) IsFull() bool  { return q.size == len(q.items) }

// ID returns the queue number used in reports.
func (q *Bounded[T]) ID() int { return q.id }

// Reset drops every item and rewinds the ring.
func (q *Bounded[T]) Reset() {
	clear(q.items)
	q.front, q.back, q.size = 0, 0, 0
}
