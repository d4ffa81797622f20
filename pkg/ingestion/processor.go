package ingestion

import (
	"context"
	"time"

	"github.com/Usman209/data-collection/pkg/common/kafka"
	"github.com/Usman209/data-collection/pkg/common/logger"
	"github.com/Usman209/data-collection/pkg/common/models"
	"github.com/Usman209/data-collection/pkg/observability/metrics"
	"github.com/Usman209/data-collection/pkg/queue"
	"github.com/Usman209/data-collection/pkg/storage"
)

// GroupResult captures the outcome of one type group within a batch.
type GroupResult struct {
	Type          string `json:"type"`
	CollectionKey string `json:"collectionKey,omitempty"`
	Attempted     int    `json:"attempted"`
	Written       int    `json:"written"`
	Failed        int    `json:"failed"`
	Skipped       bool   `json:"skipped"`
	Err           error  `json:"-"`
}

// Report aggregates per-group outcomes for one processed batch.
type Report struct {
	Groups []GroupResult `json:"groups"`
}

// Processor drives one batch through the pipeline: per group, validate,
// resolve the (type, date) collection, write every record. Failures are
// contained at the narrowest scope: a bad record never aborts its group, a
// bad group never aborts its siblings.
type Processor struct {
	router *storage.Router
	writer *storage.Writer
	events *kafka.Producer // optional, nil disables event publishing
	now    func() time.Time
}

func NewProcessor(router *storage.Router, writer *storage.Writer, events *kafka.Producer) *Processor {
	return &Processor{
		router: router,
		writer: writer,
		events: events,
		now:    time.Now,
	}
}

// Process attempts every group of batch against collections dated by date.
// Groups are handled sequentially, in input order. The returned Report always
// has one entry per group, whatever happened to it.
func (p *Processor) Process(ctx context.Context, batch models.Batch, date string) Report {
	report := Report{Groups: make([]GroupResult, 0, len(batch.Data))}

	for _, group := range batch.Data {
		report.Groups = append(report.Groups, p.processGroup(ctx, group, date))
	}

	return report
}

func (p *Processor) processGroup(ctx context.Context, group models.TypeGroup, date string) GroupResult {
	result := GroupResult{Type: group.Type}

	if err := ValidateGroup(group); err != nil {
		logger.Log.WithError(err).WithField("type", group.Type).Error("Invalid or missing data for type group")
		metrics.IncGroupsSkipped()
		result.Skipped = true
		result.Err = err
		return result
	}

	key := storage.CollectionKey(group.Type, date)
	result.CollectionKey = key

	col, err := p.router.Resolve(ctx, key)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"type":       group.Type,
			"collection": key,
		}).Error("Failed to resolve collection for type group")
		result.Err = err
		return result
	}

	// One timestamp per group: every record in the group shares the same
	// addedAtServer value, taken when the group starts.
	addedAt := p.now().Format(models.RecordTimeFormat)

	for _, record := range group.Records {
		result.Attempted++
		if err := p.writer.Write(ctx, col, record, addedAt); err != nil {
			result.Failed++
			continue
		}
		result.Written++
	}

	metrics.AddRecordsWritten(result.Written)
	metrics.AddRecordsFailed(result.Failed)

	logger.Log.WithFields(map[string]interface{}{
		"collection": key,
		"attempted":  result.Attempted,
		"written":    result.Written,
		"failed":     result.Failed,
	}).Info("Processed type group")

	return result
}

// HandleJob is the queue handler: it unpacks one job and processes its batch.
// Only a payload the processor cannot work with at all fails the job; record
// and group outcomes are reported, logged, and swallowed.
func (p *Processor) HandleJob(ctx context.Context, job *queue.Job) error {
	payload := job.Payload

	date := payload.CurrentDate
	if date == "" {
		date = p.now().Format(models.CollectionDateFormat)
	}

	report := p.Process(ctx, payload.CollectedDataArray, date)
	metrics.IncJobsProcessed()

	logger.Log.WithFields(map[string]interface{}{
		"job_id": job.ID,
		"groups": len(report.Groups),
	}).Info("Batch processed from queue")

	p.publishReport(ctx, job, date, report)
	return nil
}

func (p *Processor) publishReport(ctx context.Context, job *queue.Job, date string, report Report) {
	if p.events == nil {
		return
	}

	groups := make([]interface{}, 0, len(report.Groups))
	for _, g := range report.Groups {
		groups = append(groups, map[string]interface{}{
			"type":       g.Type,
			"collection": g.CollectionKey,
			"attempted":  g.Attempted,
			"written":    g.Written,
			"failed":     g.Failed,
			"skipped":    g.Skipped,
		})
	}

	data := map[string]interface{}{
		"job_id": job.ID,
		"date":   date,
		"groups": groups,
	}

	if err := p.events.PublishEvent(ctx, "batch-processed", "sync-service", data); err != nil {
		logger.Log.WithError(err).WithField("job_id", job.ID).Warn("Failed to publish batch outcome event")
	}
}
