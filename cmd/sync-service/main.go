package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Usman209/data-collection/pkg/common/config"
	"github.com/Usman209/data-collection/pkg/common/database"
	"github.com/Usman209/data-collection/pkg/common/kafka"
	"github.com/Usman209/data-collection/pkg/common/logger"
	"github.com/Usman209/data-collection/pkg/ingestion"
	"github.com/Usman209/data-collection/pkg/middleware"
	"github.com/Usman209/data-collection/pkg/monitor"
	"github.com/Usman209/data-collection/pkg/observability/metrics"
	"github.com/Usman209/data-collection/pkg/queue"
	"github.com/Usman209/data-collection/pkg/storage"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	engine := storage.NewPostgresEngine(db)
	router := storage.NewRouter(engine)
	writer := storage.NewWriter()

	var events *kafka.Producer
	if cfg.KafkaEventTopic != "" {
		events = kafka.NewProducer(cfg.KafkaEventTopic)
		defer events.Close()
	}

	processor := ingestion.NewProcessor(router, writer, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, monitored := buildQueues(ctx, cfg)

	pool := queue.NewWorkerPool(q, processor.HandleJob, cfg.QueueConcurrency)
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx)
	}()

	handler := ingestion.NewHTTPHandler(q, cfg.MaxRequestBody)

	httpRouter := mux.NewRouter()
	httpRouter.Use(middleware.Recovery, middleware.Logging)
	httpRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	httpRouter.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	httpRouter.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	handler.Register(httpRouter)

	api := httpRouter.PathPrefix("/api/v1").Subrouter()
	monitor.NewHTTPHandler(monitored...).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      httpRouter,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"queue": cfg.QueueName,
		}).Info("Sync Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Sync Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		logger.Log.Warn("worker pool did not drain before shutdown deadline")
	}

	logger.Log.Info("Sync Service stopped")
}

// buildQueues constructs the ingestion queue plus any extra queues the
// monitoring surface is configured to watch.
func buildQueues(ctx context.Context, cfg *config.Config) (queue.Queue, []queue.Queue) {
	if cfg.QueueDriver == "memory" {
		q := queue.NewMemoryQueue(cfg.QueueName, 0, cfg.QueuePollTimeout)
		logger.Log.WithField("queue", cfg.QueueName).Warn("Using in-memory queue; jobs will not survive a restart")
		return q, []queue.Queue{q}
	}

	client := database.GetRedis()
	q := queue.NewRedisQueue(client, cfg.QueueName, cfg.QueuePollTimeout)

	// Jobs a previous process left mid-flight get redelivered.
	moved, err := q.Recover(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("failed to recover in-flight jobs")
	} else if moved > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"queue": cfg.QueueName,
			"jobs":  moved,
		}).Info("Requeued jobs from a previous run")
	}

	monitored := []queue.Queue{q}

	extra, err := monitor.LoadQueues(cfg.MonitorQueuesFile)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to load monitored queues file")
	}
	for _, name := range extra.Queues {
		if name == cfg.QueueName {
			continue
		}
		monitored = append(monitored, queue.NewRedisQueue(client, name, cfg.QueuePollTimeout))
	}

	return q, monitored
}
