package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/retrieval"
	"rag-docqa-platform/internal/session"
	"rag-docqa-platform/internal/telemetry"
	"rag-docqa-platform/models"
)

var (
	// ErrFileCount is returned when an upload has too few or too many files.
	ErrFileCount = errors.New("wrong number of files")
	// ErrNoDocuments is returned when no uploaded file produced text.
	ErrNoDocuments = errors.New("no file could be processed")
)

// UploadedFile is one file of an ingestion batch.
type UploadedFile struct {
	Name    string
	Content []byte
}

// IngestResult describes a completed ingestion.
type IngestResult struct {
	SessionID      string
	ProcessedFiles []models.ProcessedFile
	SkippedFiles   []string
	Session        *session.Session
}

// Response renders the result in the shape returned by POST /ingest.
func (r *IngestResult) Response() models.IngestResponse {
	return models.IngestResponse{
		Message:        "Archivos procesados e indexados exitosamente.",
		ProcessedFiles: r.ProcessedFiles,
		SkippedFiles:   r.SkippedFiles,
		SessionID:      r.SessionID,
	}
}

// IngestService rebuilds a session from a batch of uploaded files.
type IngestService struct {
	store        session.Store
	extractor    *DocumentExtractor
	chunker      *retrieval.Chunker
	builder      *retrieval.Builder
	minFiles     int
	maxFiles     int
	buildTimeout time.Duration
	metrics      *telemetry.Metrics
}

func NewIngestService(cfg *config.Config, store session.Store, metrics *telemetry.Metrics) (*IngestService, error) {
	chunker, err := cfg.Chunker()
	if err != nil {
		return nil, err
	}
	return &IngestService{
		store:        store,
		extractor:    NewDocumentExtractor(cfg.ExtractTimeout),
		chunker:      chunker,
		builder:      retrieval.NewBuilder(),
		minFiles:     cfg.MinUploadFiles,
		maxFiles:     cfg.MaxUploadFiles,
		buildTimeout: cfg.BuildTimeout,
		metrics:      metrics,
	}, nil
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CheckFileCount validates the size of an upload batch.
func (s *IngestService) CheckFileCount(n int) error {
	if n < s.minFiles || n > s.maxFiles {
		return fmt.Errorf("%w: got %d, want between %d and %d", ErrFileCount, n, s.minFiles, s.maxFiles)
	}
	return nil
}

// Ingest extracts, chunks and indexes files, then replaces the session
// wholesale. An empty sessionID gets a new id. Files with an unsupported
// extension, no readable text or a name already indexed in this batch are
// skipped.
func (s *IngestService) Ingest(ctx context.Context, sessionID string, files []UploadedFile) (*IngestResult, error) {
	if err := s.CheckFileCount(len(files)); err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &IngestResult{SessionID: sessionID}
	var docs []session.Document

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		// document names key citations and /get_document, so a repeated
		// name keeps only its first upload
		if seen[f.Name] {
			logger.Warn("Skipping duplicate document name", "session_id", sessionID, "file", f.Name)
			result.SkippedFiles = append(result.SkippedFiles, f.Name)
			continue
		}
		if !s.extractor.Supported(f.Name) {
			result.SkippedFiles = append(result.SkippedFiles, f.Name)
			continue
		}
		extracted, err := s.extractor.Extract(ctx, f.Name, f.Content)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Skipping document", "session_id", sessionID, "file", f.Name, "error", err)
			result.SkippedFiles = append(result.SkippedFiles, f.Name)
			continue
		}

		seen[f.Name] = true
		chunks := s.chunker.Chunk(f.Name, extracted.Pages)
		docs = append(docs, session.Document{
			Name:    f.Name,
			Content: f.Content,
			Pages:   extracted.Pages,
			Chunks:  chunks,
		})
		result.ProcessedFiles = append(result.ProcessedFiles, models.ProcessedFile{
			Filename:    f.Name,
			ChunksCount: len(chunks),
		})
	}

	if len(docs) == 0 {
		s.metrics.RecordIngest(time.Since(start).Seconds(), 0, 0, "empty")
		return nil, ErrNoDocuments
	}

	buildCtx, cancel := context.WithTimeout(ctx, s.buildTimeout)
	defer cancel()
	bundle, err := s.builder.Build(buildCtx, session.RetrievalDocuments(docs))
	if err != nil {
		s.metrics.RecordIngest(time.Since(start).Seconds(), len(docs), 0, "failed")
		return nil, fmt.Errorf("build index: %w", err)
	}

	sess := &session.Session{
		ID:        sessionID,
		Documents: docs,
		Bundle:    bundle,
		BuiltAt:   time.Now().UTC(),
	}
	if err := s.store.Put(ctx, sess); err != nil {
		s.metrics.RecordIngest(time.Since(start).Seconds(), len(docs), 0, "failed")
		return nil, fmt.Errorf("store session: %w", err)
	}

	chunkCount := 0
	for _, d := range docs {
		chunkCount += len(d.Chunks)
	}
	s.metrics.RecordIngest(time.Since(start).Seconds(), len(docs), chunkCount, "success")
	logger.Info("Session indexed",
		"session_id", sessionID,
		"documents", len(docs),
		"chunks", chunkCount,
		"skipped", len(result.SkippedFiles),
		"duration", time.Since(start).String(),
	)

	result.Session = sess
	return result, nil
}
