package queue

import (
	"context"
	"sync"
)

// MemoryQueue is the in-process implementation used in tests and single-node
// deployments.
type MemoryQueue struct {
	mu      sync.Mutex
	items   []Item
	pending map[Item]bool
}

// NewMemoryQueue builds an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pending: map[Item]bool{}}
}

// Enqueue appends the item unless it is already pending.
func (q *MemoryQueue) Enqueue(_ context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending[item] {
		return nil
	}
	q.pending[item] = true
	q.items = append(q.items, item)
	return nil
}

// Dequeue pops the oldest item in FIFO order.
func (q *MemoryQueue) Dequeue(_ context.Context) (Item, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false, nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	delete(q.pending, item)
	return item, true, nil
}

var _ Queue = (*MemoryQueue)(nil)
