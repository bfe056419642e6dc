package download

import (
	"slices"
	"sync"

	"github.com/handiism/quicksong/internal/model"
)

// RetryQueue holds the ids waiting for another attempt. An id is held at
// most once. It is safe for concurrent use.
type RetryQueue struct {
	mu    sync.Mutex
	order []model.ResourceID
	set   map[model.ResourceID]struct{}
}

// NewRetryQueue creates an empty queue.
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{set: make(map[model.ResourceID]struct{})}
}

// Add queues id and reports whether it was not queued already.
func (q *RetryQueue) Add(id model.ResourceID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.set[id]; ok {
		return false
	}
	q.set[id] = struct{}{}
	q.order = append(q.order, id)
	return true
}

// Contains reports whether id is queued.
func (q *RetryQueue) Contains(id model.ResourceID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.set[id]
	return ok
}

// Len returns the number of queued ids.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Drain empties the queue and returns its ids in insertion order.
func (q *RetryQueue) Drain() []model.ResourceID {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := slices.Clone(q.order)
	q.order = q.order[:0]
	clear(q.set)
	return ids
}
