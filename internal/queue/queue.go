// Package queue carries ready-to-run job references from the dispatcher to
// the workers. Enqueueing is idempotent while an item is pending, so the
// dispatcher may rediscover the same ready job on every scan without
// duplicating work; the store's claim transition is the final gate anyway.
package queue

import "context"

// Item references one runnable job.
type Item struct {
	ExecutionID string `json:"executionId"`
	JobID       string `json:"jobId"`
}

// Queue is the dispatcher/worker hand-off.
type Queue interface {
	// Enqueue adds an item unless it is already pending.
	Enqueue(ctx context.Context, item Item) error
	// Dequeue pops the oldest pending item. ok is false when the queue is
	// empty.
	Dequeue(ctx context.Context) (item Item, ok bool, err error)
}
