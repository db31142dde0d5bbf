package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/queue"
	"rag-docqa-platform/internal/session"
	"rag-docqa-platform/internal/telemetry"
	"rag-docqa-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// The worker must write snapshots where the API server reads them, so a
	// disk backend only works when both share SESSION_DIR.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	backend, err := session.OpenBackend(cfg, rdb)
	if err != nil {
		log.Fatal("Failed to open session backend:", err)
	}
	ingest, err := services.NewIngestService(cfg, session.NewManager(backend), metrics)
	if err != nil {
		log.Fatal("Failed to create ingest service:", err)
	}

	redisOpt := queue.RedisOpt(cfg)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	queue.NewTaskProcessor(ingest).Register(mux)

	logger.Info("Starting Asynq worker",
		"concurrency", cfg.WorkerConcurrency,
		"redis", redisOpt.Addr,
		"session_backend", cfg.SessionBackend)

	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	server.Shutdown()
	logger.Info("Worker stopped")
}
