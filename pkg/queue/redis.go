package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Usman209/data-collection/pkg/common/logger"
	"github.com/Usman209/data-collection/pkg/common/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue stores jobs in Redis lists: enqueue pushes to the head of the
// wait list and workers pop from its tail, so delivery is FIFO across the
// queue's lifetime. A received job is moved atomically into the active list,
// where it stays until acked or failed; jobs stranded there by a crashed
// worker are pushed back to wait by Recover. Completed and failed jobs are
// not retained, only counted.
type RedisQueue struct {
	client      *redis.Client
	name        string
	pollTimeout time.Duration
}

func NewRedisQueue(client *redis.Client, name string, pollTimeout time.Duration) *RedisQueue {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &RedisQueue{client: client, name: name, pollTimeout: pollTimeout}
}

func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) waitKey() string   { return "queue:" + q.name + ":wait" }
func (q *RedisQueue) activeKey() string { return "queue:" + q.name + ":active" }
func (q *RedisQueue) doneKey() string   { return "queue:" + q.name + ":completed" }
func (q *RedisQueue) failKey() string   { return "queue:" + q.name + ":failed" }

func (q *RedisQueue) Enqueue(ctx context.Context, payload models.JobPayload) error {
	job := Job{
		ID:         uuid.New().String(),
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	if err := q.client.LPush(ctx, q.waitKey(), raw).Err(); err != nil {
		return fmt.Errorf("enqueuing job on %s: %w", q.name, err)
	}
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context) (*Job, error) {
	raw, err := q.client.BRPopLPush(ctx, q.waitKey(), q.activeKey(), q.pollTimeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("receiving from %s: %w", q.name, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// A payload that does not even parse can never be handled; drop it
		// from active and count it failed.
		logger.Log.WithError(err).WithField("queue", q.name).Error("Discarding malformed job payload")
		q.client.LRem(ctx, q.activeKey(), 1, raw)
		q.client.Incr(ctx, q.failKey())
		return nil, nil
	}
	job.raw = raw
	return &job, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job *Job) error {
	if err := q.client.LRem(ctx, q.activeKey(), 1, job.raw).Err(); err != nil {
		return fmt.Errorf("acking job %s: %w", job.ID, err)
	}
	return q.client.Incr(ctx, q.doneKey()).Err()
}

func (q *RedisQueue) Fail(ctx context.Context, job *Job) error {
	if err := q.client.LRem(ctx, q.activeKey(), 1, job.raw).Err(); err != nil {
		return fmt.Errorf("failing job %s: %w", job.ID, err)
	}
	return q.client.Incr(ctx, q.failKey()).Err()
}

// Recover moves jobs stranded in the active list back to the wait list. Run
// once at worker startup, before any slot begins receiving: anything active at
// that point belonged to a previous process and must be redelivered.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		_, err := q.client.RPopLPush(ctx, q.activeKey(), q.waitKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, fmt.Errorf("recovering %s: %w", q.name, err)
		}
		moved++
	}
}

func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	waiting, err := q.client.LLen(ctx, q.waitKey()).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("reading %s stats: %w", q.name, err)
	}
	active, err := q.client.LLen(ctx, q.activeKey()).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("reading %s stats: %w", q.name, err)
	}

	completed, err := q.client.Get(ctx, q.doneKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("reading %s stats: %w", q.name, err)
	}
	failed, err := q.client.Get(ctx, q.failKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("reading %s stats: %w", q.name, err)
	}

	return Stats{
		Name:      q.name,
		Waiting:   waiting,
		Active:    active,
		Completed: completed,
		Failed:    failed,
	}, nil
}
