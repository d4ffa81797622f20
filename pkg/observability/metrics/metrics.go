package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	batchesReceived atomic.Int64
	batchesEnqueued atomic.Int64
	batchesRejected atomic.Int64
	jobsProcessed   atomic.Int64
	jobsFailed      atomic.Int64
	groupsSkipped   atomic.Int64
	recordsWritten  atomic.Int64
	recordsFailed   atomic.Int64
)

func IncBatchesReceived() { batchesReceived.Add(1) }
func IncBatchesEnqueued() { batchesEnqueued.Add(1) }
func IncBatchesRejected() { batchesRejected.Add(1) }
func IncJobsProcessed()   { jobsProcessed.Add(1) }
func IncJobsFailed()      { jobsFailed.Add(1) }
func IncGroupsSkipped()   { groupsSkipped.Add(1) }

func AddRecordsWritten(n int) { recordsWritten.Add(int64(n)) }
func AddRecordsFailed(n int)  { recordsFailed.Add(int64(n)) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeCounter(w, "datacollection_sync_batches_received_total",
		"Number of sync requests received on the intake endpoint.", batchesReceived.Load())
	writeCounter(w, "datacollection_sync_batches_enqueued_total",
		"Number of batches handed to the ingestion queue.", batchesEnqueued.Load())
	writeCounter(w, "datacollection_sync_batches_rejected_total",
		"Number of sync requests rejected with an empty payload.", batchesRejected.Load())
	writeCounter(w, "datacollection_sync_jobs_processed_total",
		"Number of queue jobs processed to completion.", jobsProcessed.Load())
	writeCounter(w, "datacollection_sync_jobs_failed_total",
		"Number of queue jobs that failed in the handler.", jobsFailed.Load())
	writeCounter(w, "datacollection_sync_groups_skipped_total",
		"Number of type groups skipped for failing validation.", groupsSkipped.Load())
	writeCounter(w, "datacollection_sync_records_written_total",
		"Number of records persisted into partition collections.", recordsWritten.Load())
	writeCounter(w, "datacollection_sync_records_failed_total",
		"Number of record writes that failed at the storage layer.", recordsFailed.Load())
}

func writeCounter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
