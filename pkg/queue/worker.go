package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Usman209/data-collection/pkg/common/logger"
	"github.com/Usman209/data-collection/pkg/observability/metrics"
)

// Handler processes one job. A returned error marks the job failed; record
// and group level outcomes inside the batch never surface here.
type Handler func(ctx context.Context, job *Job) error

// WorkerPool drains a queue with a fixed number of concurrent slots. Each
// slot runs one job to completion before receiving the next.
type WorkerPool struct {
	queue       Queue
	handler     Handler
	concurrency int
}

func NewWorkerPool(q Queue, handler Handler, concurrency int) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &WorkerPool{queue: q, handler: handler, concurrency: concurrency}
}

// Run blocks until ctx is canceled and every slot has drained its current job.
func (p *WorkerPool) Run(ctx context.Context) {
	logger.Log.WithFields(map[string]interface{}{
		"queue":       p.queue.Name(),
		"concurrency": p.concurrency,
	}).Info("Worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.runSlot(ctx, slot)
		}(i)
	}
	wg.Wait()

	logger.Log.WithField("queue", p.queue.Name()).Info("Worker pool stopped")
}

func (p *WorkerPool) runSlot(ctx context.Context, slot int) {
	for {
		job, err := p.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.WithError(err).WithField("slot", slot).Error("Failed to receive job")
			// Receive fails fast when the transport is down; don't spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		p.execute(ctx, slot, job)
	}
}

func (p *WorkerPool) execute(ctx context.Context, slot int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(map[string]interface{}{
				"job_id": job.ID,
				"slot":   slot,
				"panic":  fmt.Sprint(r),
			}).Error("Job handler panicked")
			metrics.IncJobsFailed()
			if err := p.queue.Fail(ctx, job); err != nil {
				logger.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to mark job failed")
			}
		}
	}()

	if err := p.handler(ctx, job); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"job_id": job.ID,
			"slot":   slot,
		}).Error("Job failed")
		metrics.IncJobsFailed()
		if err := p.queue.Fail(ctx, job); err != nil {
			logger.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to mark job failed")
		}
		return
	}

	if err := p.queue.Ack(ctx, job); err != nil {
		logger.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to ack job")
	}
}
