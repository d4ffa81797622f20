package queue

import (
	"context"
	"time"

	"github.com/Usman209/data-collection/pkg/common/models"
)

// Job is one queued unit of deferred work wrapping a batch. The envelope is
// what travels over the queue transport; Payload carries the batch and the
// processing date computed at intake.
type Job struct {
	ID         string            `json:"id"`
	Payload    models.JobPayload `json:"payload"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`

	// raw is the serialized envelope as it sits in the transport, kept so
	// acknowledgement can remove exactly this entry.
	raw string
}

// Stats is a point-in-time snapshot of a queue for the monitoring surface.
// Completed and failed are counters only; finished jobs are not retained.
type Stats struct {
	Name      string `json:"name"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// Queue is a durable, named, FIFO work queue with at-least-once delivery.
// Receive parks the job as active until Ack or Fail removes it; a job in
// flight when the process dies is redelivered after Recover.
type Queue interface {
	Name() string
	Enqueue(ctx context.Context, payload models.JobPayload) error
	// Receive blocks up to the queue's poll timeout and returns (nil, nil)
	// when no job arrived in that window.
	Receive(ctx context.Context) (*Job, error)
	Ack(ctx context.Context, job *Job) error
	Fail(ctx context.Context, job *Job) error
	Stats(ctx context.Context) (Stats, error)
}
