package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Usman209/data-collection/pkg/common/logger"
	"github.com/Usman209/data-collection/pkg/common/models"
	"github.com/Usman209/data-collection/pkg/observability/metrics"
	"github.com/gorilla/mux"
)

const (
	msgReceived = "Data received. We will process your records soon."
	msgEmpty    = "Data is empty. Please provide data to sync."
	msgInternal = "An error occurred while processing your request."
)

// Enqueuer is the one capability the intake path needs from the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload models.JobPayload) error
}

// HTTPHandler is the intake endpoint: it validates payload shape, acknowledges
// the caller, and hands the batch to the queue. Everything after the
// acknowledgement is fire-and-forget from the caller's point of view.
type HTTPHandler struct {
	enqueuer Enqueuer
	maxBody  int64
	now      func() time.Time
}

func NewHTTPHandler(enqueuer Enqueuer, maxBody int64) *HTTPHandler {
	return &HTTPHandler{enqueuer: enqueuer, maxBody: maxBody, now: time.Now}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/", h.handleSync).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	metrics.IncBatchesReceived()

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("Failed to parse sync payload")
		writeJSON(w, http.StatusInternalServerError, models.SyncResponse{Message: msgInternal})
		return
	}

	batch := req.Data
	if err := ValidateBatch(batch); err != nil {
		metrics.IncBatchesRejected()
		writeJSON(w, http.StatusBadRequest, models.SyncResponse{Message: msgEmpty})
		return
	}

	// The processing date is fixed once per batch, here at intake: every
	// record in this batch lands in collections dated by this value.
	currentDate := h.now().Format(models.CollectionDateFormat)

	// Acknowledge before enqueuing; the caller never waits on, or hears
	// about, anything past this point.
	writeJSON(w, http.StatusOK, models.SyncResponse{Message: msgReceived, Code: http.StatusOK})

	payload := models.JobPayload{
		CollectedDataArray: batch,
		CurrentDate:        currentDate,
	}

	// The request context dies when this handler returns; the enqueue must
	// not be tied to it.
	if err := h.enqueuer.Enqueue(context.WithoutCancel(r.Context()), payload); err != nil {
		logger.Log.WithError(err).Error("Failed to enqueue batch after acknowledging client")
		return
	}

	metrics.IncBatchesEnqueued()
	logger.Log.WithFields(map[string]interface{}{
		"groups": len(batch.Data),
		"date":   currentDate,
	}).Info("Batch queued for processing")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Error("Failed to write response")
	}
}
