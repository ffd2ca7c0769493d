// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list that carries finished round records
// to the historian.
const DefaultQueueName = "scatter_rounds"

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RoundQueue is a FIFO of round records backed by a Redis list.
type RoundQueue struct {
	rdb  *redis.Client
	name string
}

func NewRoundQueue(rdb *redis.Client, name string) *RoundQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &RoundQueue{rdb: rdb, name: name}
}

// Name returns the Redis list key.
func (q *RoundQueue) Name() string {
	return q.name
}

// RecordRound serializes rec and pushes it to the tail of the queue.
func (q *RoundQueue) RecordRound(ctx context.Context, rec models.RoundRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the head of the queue. It returns nil, nil
// when nothing arrived in time.
func (q *RoundQueue) Pop(ctx context.Context, timeout time.Duration) (*models.RoundRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the key and res[1] the payload
	if len(res) < 2 {
		return nil, nil
	}

	var rec models.RoundRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid round record: %w", err)
	}
	return &rec, nil
}

// Len reports how many records are waiting.
func (q *RoundQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
