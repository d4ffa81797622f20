package models

import "time"

// Timestamp layouts shared across the pipeline. CollectionDateFormat dates the
// storage partition a batch lands in; RecordTimeFormat is the value injected
// into every persisted record as addedAtServer.
const (
	CollectionDateFormat = "2006-01-02"
	RecordTimeFormat     = "2006-01-02 15:04:05"
)

// TypeGroup is one named slice of a batch: all records sharing a type. The
// type drives storage routing; record contents are opaque to the pipeline.
type TypeGroup struct {
	Type    string                   `json:"type"`
	Records []map[string]interface{} `json:"records"`
}

// Batch is one client-submitted payload of TypeGroups, in submission order.
type Batch struct {
	Data []TypeGroup `json:"data"`
}

// SyncRequest is the intake request body: a Batch under an outer data key.
type SyncRequest struct {
	Data Batch `json:"data"`
}

type SyncResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// JobPayload is the unit of queue work: one batch plus the processing date
// computed at intake time. Every record in the batch lands in collections
// dated by CurrentDate, never by a per-record timestamp.
type JobPayload struct {
	CollectedDataArray Batch  `json:"collectedDataArray"`
	CurrentDate        string `json:"currentDate"`
}

// Event is published to the event bus after a job finishes, summarising the
// outcome per group. Consumers are downstream dashboards; the original HTTP
// caller never sees it.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
