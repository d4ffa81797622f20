package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/Usman209/data-collection/pkg/common/logger"
	"github.com/Usman209/data-collection/pkg/queue"
	"github.com/gorilla/mux"
)

// HTTPHandler exposes read-only queue introspection for operational
// dashboards. It only ever reads queue state; it is not part of the ingestion
// contract.
type HTTPHandler struct {
	queues map[string]queue.Queue
	order  []string
}

func NewHTTPHandler(queues ...queue.Queue) *HTTPHandler {
	h := &HTTPHandler{queues: make(map[string]queue.Queue, len(queues))}
	for _, q := range queues {
		if _, ok := h.queues[q.Name()]; ok {
			continue
		}
		h.queues[q.Name()] = q
		h.order = append(h.order, q.Name())
	}
	return h
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/queues", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/queues/{name}", h.handleStats).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.order))
	names = append(names, h.order...)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"queues": names})
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	q, ok := h.queues[name]
	if !ok {
		http.Error(w, "queue not found", http.StatusNotFound)
		return
	}

	stats, err := q.Stats(r.Context())
	if err != nil {
		logger.Log.WithError(err).WithField("queue", name).Error("Failed to read queue stats")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
