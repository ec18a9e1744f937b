package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "synthome:ready_jobs"

// RedisQueue is the multi-node implementation. Items live in a sorted set
// scored by enqueue time, so ZPOPMIN yields FIFO order and ZADD NX keeps a
// pending item from being enqueued twice.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
}

// NewRedisQueue builds a queue over an existing client. key may be empty to
// use the default.
func NewRedisQueue(client redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

// Enqueue adds the item with the current time as score.
func (q *RedisQueue) Enqueue(ctx context.Context, item Item) error {
	member, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("queue: encode item: %w", err)
	}
	err = q.client.ZAddNX(ctx, q.key, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: zadd: %w", err)
	}
	return nil
}

// Dequeue pops the oldest item.
func (q *RedisQueue) Dequeue(ctx context.Context) (Item, bool, error) {
	entries, err := q.client.ZPopMin(ctx, q.key, 1).Result()
	if err != nil {
		return Item{}, false, fmt.Errorf("queue: zpopmin: %w", err)
	}
	if len(entries) == 0 {
		return Item{}, false, nil
	}
	member, ok := entries[0].Member.(string)
	if !ok {
		return Item{}, false, fmt.Errorf("queue: unexpected member type %T", entries[0].Member)
	}
	var item Item
	if err := json.Unmarshal([]byte(member), &item); err != nil {
		return Item{}, false, fmt.Errorf("queue: decode item: %w", err)
	}
	return item, true, nil
}

var _ Queue = (*RedisQueue)(nil)
