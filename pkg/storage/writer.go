package storage

import (
	"context"

	"github.com/Usman209/data-collection/pkg/common/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Writer persists single records into resolved collections, enriching each one
// with server-side bookkeeping fields on the way in.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// Write enriches record with isProcessed=false and addedAtServer=addedAt and
// inserts it into col. The input map is never mutated; enrichment happens on a
// shallow copy, and the injected fields overwrite same-named keys the client
// may have sent. A storage error is logged with the collection key and
// returned; callers treat it as a per-record outcome.
func (w *Writer) Write(ctx context.Context, col *Collection, record map[string]interface{}, addedAt string) error {
	enriched := make(map[string]interface{}, len(record)+2)
	for k, v := range record {
		enriched[k] = v
	}
	enriched["isProcessed"] = false
	enriched["addedAtServer"] = addedAt

	doc := &Document{
		ID:   uuid.New().String(),
		Data: datatypes.JSONMap(enriched),
	}

	if err := col.Insert(ctx, doc); err != nil {
		logger.Log.WithError(err).WithField("collection", col.Key()).Error("Failed to insert record")
		return err
	}
	return nil
}
