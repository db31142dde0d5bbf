package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"rag-docqa-platform/internal/ai"
	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/database"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/queue"
	"rag-docqa-platform/internal/session"
	"rag-docqa-platform/internal/telemetry"
	"rag-docqa-platform/middleware"
	"rag-docqa-platform/routes"
	"rag-docqa-platform/services"
)

const serviceName = "rag-docqa-api"

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
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer(serviceName, cfg.OTELEndpoint, 1.0)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Redis backs rate limiting, the redis session backend and the ingest queue.
	// The server still runs without it when none of those require it.
	var rdb *redis.Client
	if client, err := config.NewRedisClient(cfg); err != nil {
		if cfg.SessionBackend == "redis" || cfg.AsyncIngestEnabled {
			log.Fatal("Failed to connect to Redis:", err)
		}
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
	} else {
		rdb = client
		defer rdb.Close()
	}

	chats, err := openChatStore(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to open chat store:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		chats.Close(ctx)
	}()

	backend, err := session.OpenBackend(cfg, rdb)
	if err != nil {
		log.Fatal("Failed to open session backend:", err)
	}
	sessions := session.NewManager(backend)

	janitor, err := services.NewJanitor(sessions, cfg.SessionTTL, cfg.SessionSweepInterval)
	if err != nil {
		log.Fatal("Failed to create session janitor:", err)
	}
	janitor.Start()
	defer janitor.Stop()

	keys := config.NewAPIKeyStore(cfg.APIKeyFile, cfg.ProviderAPIKey())
	provider, err := ai.NewProvider(context.Background(), cfg, keys, metrics)
	if err != nil {
		log.Fatal("Failed to initialize generative model:", err)
	}
	defer provider.Close()

	ingest, err := services.NewIngestService(cfg, sessions, metrics)
	if err != nil {
		log.Fatal("Failed to create ingest service:", err)
	}
	answers := services.NewAnswerService(cfg, sessions, provider, metrics)

	var enqueuer routes.IngestEnqueuer
	if cfg.AsyncIngestEnabled {
		q := queue.NewEnqueuer(queue.RedisOpt(cfg))
		defer q.Close()
		enqueuer = q
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.AccessLog())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware(serviceName))
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize * int64(cfg.MaxUploadFiles)))

	routes.SetupRAGRoutes(router, routes.NewRAGHandler(cfg, sessions, ingest, answers, provider, enqueuer))
	routes.SetupChatRoutes(router, chats, services.NewExportService(chats))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "chat_store", cfg.ChatStore,
			"session_backend", cfg.SessionBackend, "llm_provider", cfg.LLMProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server exited")
}

func openChatStore(cfg *config.Config, metrics *telemetry.Metrics) (database.ChatStore, error) {
	if cfg.ChatStore == "sqlite" {
		return database.NewSQLiteChatStore(cfg.SQLitePath)
	}
	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		return nil, err
	}
	return database.NewMongoChatStore(client, cfg.DBName, metrics), nil
}
