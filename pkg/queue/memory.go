package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Usman209/data-collection/pkg/common/models"
	"github.com/google/uuid"
)

// MemoryQueue is a channel-backed Queue for tests and single-process
// deployments without Redis. FIFO and concurrency-safe, but not durable:
// jobs are lost when the process exits.
type MemoryQueue struct {
	name        string
	jobs        chan *Job
	pollTimeout time.Duration

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func NewMemoryQueue(name string, capacity int, pollTimeout time.Duration) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &MemoryQueue{
		name:        name,
		jobs:        make(chan *Job, capacity),
		pollTimeout: pollTimeout,
	}
}

func (q *MemoryQueue) Name() string {
	return q.name
}

func (q *MemoryQueue) Enqueue(ctx context.Context, payload models.JobPayload) error {
	job := &Job{
		ID:         uuid.New().String(),
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Receive(ctx context.Context) (*Job, error) {
	timer := time.NewTimer(q.pollTimeout)
	defer timer.Stop()

	select {
	case job := <-q.jobs:
		q.active.Add(1)
		return job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(ctx context.Context, job *Job) error {
	q.active.Add(-1)
	q.completed.Add(1)
	return nil
}

func (q *MemoryQueue) Fail(ctx context.Context, job *Job) error {
	q.active.Add(-1)
	q.failed.Add(1)
	return nil
}

func (q *MemoryQueue) Stats(ctx context.Context) (Stats, error) {
	return Stats{
		Name:      q.name,
		Waiting:   int64(len(q.jobs)),
		Active:    q.active.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
	}, nil
}
