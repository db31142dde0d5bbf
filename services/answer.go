package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"rag-docqa-platform/internal/ai"
	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/retrieval"
	"rag-docqa-platform/internal/session"
	"rag-docqa-platform/internal/telemetry"
	"rag-docqa-platform/models"
)

const (
	// NoMatchAnswer is returned without calling the model when retrieval finds nothing.
	NoMatchAnswer = "No encontré coincidencias significativas para tu consulta en los documentos cargados. Por favor, intenta con términos más específicos o reformula tu pregunta."

	maxCitations     = 3
	contextSeparator = "\n\n---\n\n"
)

var (
	// ErrSessionRequired is returned when a request names no session.
	ErrSessionRequired = errors.New("session_id is required")
	// ErrIndexNotReady is returned when the session is unknown or has no index.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrGeneration wraps failures of the generative model.
	ErrGeneration = errors.New("answer generation failed")
)

// TextGenerator is the model dependency of AnswerService.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// AnswerService runs retrieval over a session and grounds model answers in it.
type AnswerService struct {
	store        session.Store
	generator    TextGenerator
	opts         retrieval.SearchOptions
	queryTimeout time.Duration
	llmTimeout   time.Duration
	metrics      *telemetry.Metrics
}

func NewAnswerService(cfg *config.Config, store session.Store, generator TextGenerator, metrics *telemetry.Metrics) *AnswerService {
	return &AnswerService{
		store:        store,
		generator:    generator,
		opts:         cfg.SearchOptions(),
		queryTimeout: cfg.QueryTimeout,
		llmTimeout:   cfg.LLMTimeout,
		metrics:      metrics,
	}
}

// GeneratorConfigured reports whether a model is available for Ask.
func (s *AnswerService) GeneratorConfigured() bool {
	return s.generator != nil && s.generator.Configured()
}

func (s *AnswerService) readySession(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrInvalidID) {
		return nil, ErrIndexNotReady
	}
	if err != nil {
		return nil, err
	}
	if !sess.Ready() {
		return nil, ErrIndexNotReady
	}
	return sess, nil
}

// Search returns the fragments of the session most similar to query.
func (s *AnswerService) Search(ctx context.Context, sessionID, query string) ([]retrieval.ScoredFragment, error) {
	sess, err := s.readySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, sess, query), nil
}

func (s *AnswerService) search(ctx context.Context, sess *session.Session, query string) []retrieval.ScoredFragment {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	res := retrieval.SearchDetailed(ctx, query, sess.Bundle, s.opts)
	s.metrics.RecordSearch(time.Since(start).Seconds(), res.Outcome.String())
	logger.Debug("Search completed",
		"session_id", sess.ID,
		"outcome", res.Outcome.String(),
		"max_score", res.MaxScore,
		"results", len(res.Fragments),
	)
	return res.Fragments
}

// Ask answers question from the session's documents.
func (s *AnswerService) Ask(ctx context.Context, sessionID, question string) (*models.AskResponse, error) {
	sess, err := s.readySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.GeneratorConfigured() {
		return nil, ai.ErrNotConfigured
	}

	fragments := s.search(ctx, sess, question)
	if len(fragments) == 0 {
		return &models.AskResponse{Answer: NoMatchAnswer, Citations: []models.Citation{}}, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()
	answer, err := s.generator.Generate(genCtx, BuildPrompt(question, BuildContext(fragments)))
	if err != nil {
		logger.Error("Model call failed", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return &models.AskResponse{
		Answer:    answer,
		Citations: BuildCitations(fragments, sess),
	}, nil
}

// BuildContext renders fragments in relevance order for the prompt.
func BuildContext(fragments []retrieval.ScoredFragment) string {
	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = "Fuente: " + f.DocumentName + "\nContenido: " + f.Text
	}
	return strings.Join(parts, contextSeparator)
}

// BuildPrompt wraps context and question in the grounding instructions.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf(`Eres un asistente experto en analizar documentos. Basándote EXCLUSIVAMENTE en el siguiente contexto, responde la pregunta del usuario de forma breve y concisa (3-4 líneas).
Cita tus fuentes usando el formato [Fuente: nombre_del_documento.pdf]. Puedes usar múltiples citas si es necesario.
También eres un asistente bilingüe: si la pregunta es en español, responde en español; si la pregunta es en inglés, responde en inglés.

IMPORTANTE: Solo responde si encuentras información RELEVANTE y DIRECTA en el contexto. Si la información no está presente o es muy vaga, NO CITES NADA y responde exactamente: "No encuentro información específica sobre esto en los documentos cargados."

CONTEXTO:
%s

PREGUNTA: %s

RESPUESTA:
`, context, question)
}

// BuildCitations keeps the first fragment of each document whose content is
// known, up to three.
func BuildCitations(fragments []retrieval.ScoredFragment, sess *session.Session) []models.Citation {
	citations := []models.Citation{}
	seen := make(map[string]bool)
	for _, f := range fragments {
		if len(citations) == maxCitations {
			break
		}
		if seen[f.DocumentName] {
			continue
		}
		doc, ok := sess.Document(f.DocumentName)
		if !ok || len(doc.Content) == 0 {
			continue
		}
		seen[f.DocumentName] = true
		citations = append(citations, models.Citation{
			DocumentName: f.DocumentName,
			ContentHex:   hex.EncodeToString(doc.Content),
			PageNumber:   f.PageNumber,
			TextPosition: models.TextPosition{StartPos: f.StartPos, EndPos: f.EndPos},
		})
	}
	return citations
}

// SearchResults converts fragments to the /search response shape.
func SearchResults(fragments []retrieval.ScoredFragment) []models.SearchResult {
	out := make([]models.SearchResult, len(fragments))
	for i, f := range fragments {
		out[i] = models.SearchResult{
			Text:         f.Text,
			DocumentName: f.DocumentName,
			Score:        f.Score,
			PageNumber:   f.PageNumber,
			TextPosition: models.TextPosition{StartPos: f.StartPos, EndPos: f.EndPos},
		}
	}
	return out
}
