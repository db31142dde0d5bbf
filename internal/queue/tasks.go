// Package queue carries session ingestion to the background worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/session"
	"rag-docqa-platform/services"
)

const (
	TaskIngestSession = "ingest:session"

	QueueCritical = "critical"
	QueueDefault  = "default"
)

// IngestPayload names the session to rebuild and its staged uploads.
type IngestPayload struct {
	SessionID string                `json:"session_id"`
	Files     []services.StagedFile `json:"files"`
}

func NewIngestTask(p IngestPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIngestSession,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// RedisOpt returns the asynq connection settings for cfg.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// Enqueuer submits ingestion tasks.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(opt asynq.RedisConnOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt)}
}

// EnqueueIngest schedules a rebuild of sessionID and returns the task id.
func (e *Enqueuer) EnqueueIngest(ctx context.Context, sessionID string, files []services.StagedFile) (string, error) {
	task, err := NewIngestTask(IngestPayload{SessionID: sessionID, Files: files})
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue ingest: %w", err)
	}
	return info.ID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Ingester is the part of services.IngestService the worker needs.
type Ingester interface {
	Ingest(ctx context.Context, sessionID string, files []services.UploadedFile) (*services.IngestResult, error)
}

// TaskProcessor handles queued tasks.
type TaskProcessor struct {
	ingest Ingester
}

func NewTaskProcessor(ingest Ingester) *TaskProcessor {
	return &TaskProcessor{ingest: ingest}
}

// Register adds the processor's handlers to mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIngestSession, p.ProcessIngest)
}

func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	log := logger.With("task", t.Type(), "session_id", payload.SessionID)
	log.Info("Processing ingestion", "files", len(payload.Files))

	files, err := services.LoadStaged(payload.Files)
	if err != nil {
		log.Error("Staged files unavailable", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	res, err := p.ingest.Ingest(ctx, payload.SessionID, files)
	if err != nil {
		if permanent(err) {
			p.cleanup(log, payload.Files)
			log.Warn("Ingestion rejected", "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	p.cleanup(log, payload.Files)
	log.Info("Ingestion completed", "processed", len(res.ProcessedFiles), "skipped", len(res.SkippedFiles))
	return nil
}

func (p *TaskProcessor) cleanup(log *slog.Logger, staged []services.StagedFile) {
	if err := services.RemoveStaged(staged); err != nil {
		log.Warn("Failed to remove staged files", "error", err)
	}
}

func permanent(err error) bool {
	return errors.Is(err, services.ErrNoDocuments) || errors.Is(err, services.ErrFileCount) ||
		errors.Is(err, session.ErrInvalidID)
}
