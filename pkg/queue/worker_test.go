package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolProcessesAllJobs(t *testing.T) {
	q := NewMemoryQueue("syncDataQueue", 64, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const jobs = 20
	var processed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(jobs)

	handler := func(ctx context.Context, job *Job) error {
		defer wg.Done()
		processed.Add(1)
		return nil
	}

	for i := 0; i < jobs; i++ {
		if err := q.Enqueue(ctx, payloadFor("a")); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	pool := NewWorkerPool(q, handler, 5)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Run(ctx)
	}()

	wg.Wait()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop after cancel")
	}

	if processed.Load() != jobs {
		t.Fatalf("expected %d processed jobs, got %d", jobs, processed.Load())
	}

	stats, _ := q.Stats(context.Background())
	if stats.Completed != jobs || stats.Active != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestWorkerPoolRespectsConcurrencyLimit(t *testing.T) {
	q := NewMemoryQueue("syncDataQueue", 64, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const jobs = 25
	var inFlight, peak atomic.Int64
	var wg sync.WaitGroup
	wg.Add(jobs)

	handler := func(ctx context.Context, job *Job) error {
		defer wg.Done()
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	for i := 0; i < jobs; i++ {
		q.Enqueue(ctx, payloadFor("a"))
	}

	pool := NewWorkerPool(q, handler, 5)
	go pool.Run(ctx)

	wg.Wait()
	cancel()

	if peak.Load() > 5 {
		t.Fatalf("concurrency limit exceeded: %d jobs in flight", peak.Load())
	}
}

func TestWorkerPoolMarksHandlerErrorFailed(t *testing.T) {
	q := NewMemoryQueue("syncDataQueue", 8, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	handler := func(ctx context.Context, job *Job) error {
		defer wg.Done()
		if job.Payload.CollectedDataArray.Data[0].Type == "bad" {
			return errors.New("malformed payload")
		}
		return nil
	}

	q.Enqueue(ctx, payloadFor("bad"))
	q.Enqueue(ctx, payloadFor("good"))

	pool := NewWorkerPool(q, handler, 1)
	go pool.Run(ctx)

	wg.Wait()
	cancel()

	// Single slot, so both acks have settled once a later poll happens; give
	// the slot a moment to call Ack/Fail after the handler returns.
	deadline := time.Now().Add(time.Second)
	for {
		stats, _ := q.Stats(context.Background())
		if stats.Completed == 1 && stats.Failed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("unexpected stats: %+v", stats)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWorkerPoolRecoversFromPanic(t *testing.T) {
	q := NewMemoryQueue("syncDataQueue", 8, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	handler := func(ctx context.Context, job *Job) error {
		defer wg.Done()
		if job.Payload.CollectedDataArray.Data[0].Type == "boom" {
			panic("handler exploded")
		}
		return nil
	}

	q.Enqueue(ctx, payloadFor("boom"))
	q.Enqueue(ctx, payloadFor("fine"))

	pool := NewWorkerPool(q, handler, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Run(ctx)
	}()

	wg.Wait()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not survive the panic")
	}
}
