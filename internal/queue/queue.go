package queue

import (
	"context"
	"fmt"
	"sync"
)

// PriorityQueue is an unbounded, blocking, strictly prioritised FIFO.
//
// The zero value is not usable; create one with New.
type PriorityQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	levels [levelCount][]T
	count  int
}

// New returns an empty queue.
func New[T any]() *PriorityQueue[T] {
	q := &PriorityQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the tail of level p and wakes a waiting consumer.
// It never blocks on consumers.
func (q *PriorityQueue[T]) Push(item T, p Priority) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, p)
	}

	q.mu.Lock()
	q.levels[p.index()] = append(q.levels[p.index()], item)
	q.count++
	q.mu.Unlock()

	q.cond.Signal()
	return nil
}

// PushAll appends items to level p in order, under a single lock, so that
// items from concurrent producers at the same level never interleave with
// them.
func (q *PriorityQueue[T]) PushAll(items []T, p Priority) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, p)
	}
	if len(items) == 0 {
		return nil
	}

	q.mu.Lock()
	q.levels[p.index()] = append(q.levels[p.index()], items...)
	q.count += len(items)
	q.mu.Unlock()

	q.cond.Broadcast()
	return nil
}

// PushFront puts item at the head of level p. Used to retry an item
// without losing its place relative to later items of the same level.
func (q *PriorityQueue[T]) PushFront(item T, p Priority) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, p)
	}

	q.mu.Lock()
	level := q.levels[p.index()]
	level = append(level, item)
	copy(level[1:], level[:len(level)-1])
	level[0] = item
	q.levels[p.index()] = level
	q.count++
	q.mu.Unlock()

	q.cond.Signal()
	return nil
}

// Pop blocks until an item is available or ctx is done, then removes and
// returns the head of the highest non-empty level together with its
// priority.
func (q *PriorityQueue[T]) Pop(ctx context.Context) (T, Priority, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, 0, err
		}
		if q.count > 0 {
			break
		}
		q.cond.Wait()
	}

	for i := range q.levels {
		if len(q.levels[i]) == 0 {
			continue
		}
		item := q.levels[i][0]
		var zero T
		q.levels[i][0] = zero
		q.levels[i] = q.levels[i][1:]
		q.count--
		return item, Priority(i + 1), nil
	}

	// count and levels disagree; unreachable while all mutations hold mu.
	panic("queue: pending count out of sync with levels")
}

// Len returns the number of pending items across all levels.
func (q *PriorityQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// LenAt returns the number of pending items at level p.
func (q *PriorityQueue[T]) LenAt(p Priority) int {
	if !p.Valid() {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.levels[p.index()])
}
