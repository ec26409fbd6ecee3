package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a durable work queue on a Redis list: LPUSH to enqueue, BRPOP
// to dequeue. Payloads are JSON-encoded jobs.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisQueue(client *redis.Client, key string, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger.With("component", "queue"),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available or the context is cancelled.
// Payloads that fail to decode are logged and skipped.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		result, err := q.client.BRPop(ctx, 0, q.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to dequeue job: %w", err)
		}

		// result is [key, value]
		if len(result) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			q.logger.Error("failed to unmarshal job, skipping", "error", err, "raw", result[1])
			continue
		}

		return &job, nil
	}
}

func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Close() error {
	return nil
}
