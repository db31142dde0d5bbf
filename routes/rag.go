package routes

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"rag-docqa-platform/internal/ai"
	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/session"
	"rag-docqa-platform/middleware"
	"rag-docqa-platform/models"
	"rag-docqa-platform/services"
	"rag-docqa-platform/utils"
)

const minQueryLength = 3

// KeyConfigurer swaps the model API key at runtime.
type KeyConfigurer interface {
	Reconfigure(ctx context.Context, key string) error
	Configured() bool
}

// IngestEnqueuer hands staged uploads to the background worker.
type IngestEnqueuer interface {
	EnqueueIngest(ctx context.Context, sessionID string, files []services.StagedFile) (string, error)
}

// RAGHandler serves ingestion, retrieval and question answering.
type RAGHandler struct {
	cfg      *config.Config
	sessions session.Store
	ingest   *services.IngestService
	answers  *services.AnswerService
	keys     KeyConfigurer
	enqueuer IngestEnqueuer
}

// NewRAGHandler wires the handler. enqueuer may be nil when async ingestion is off.
func NewRAGHandler(cfg *config.Config, sessions session.Store, ingest *services.IngestService, answers *services.AnswerService, keys KeyConfigurer, enqueuer IngestEnqueuer) *RAGHandler {
	return &RAGHandler{
		cfg:      cfg,
		sessions: sessions,
		ingest:   ingest,
		answers:  answers,
		keys:     keys,
		enqueuer: enqueuer,
	}
}

func SetupRAGRoutes(router *gin.Engine, h *RAGHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})
	router.POST("/ingest", h.handleIngest)
	router.GET("/search", h.handleSearch)
	router.POST("/ask", h.handleAsk)
	router.POST("/configure_api_key", h.handleConfigureAPIKey)
	router.GET("/status", h.handleStatus)
	router.GET("/get_document/:name", h.handleGetDocument)
}

func (h *RAGHandler) handleIngest(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		utils.RespondWithBadRequest(c, "Se esperaba un formulario multipart con archivos.", gin.H{"error": err.Error()})
		return
	}
	headers := form.File["files"]
	if err := h.ingest.CheckFileCount(len(headers)); err != nil {
		utils.RespondWithBadRequest(c,
			fmt.Sprintf("Por favor, sube entre %d y %d archivos.", h.cfg.MinUploadFiles, h.cfg.MaxUploadFiles), nil)
		return
	}

	files, err := h.readUploads(headers)
	if err != nil {
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error(),
			gin.H{"max_file_size": h.cfg.MaxFileSize})
		return
	}

	sessionID := c.Query("session_id")
	if sessionID != "" {
		if err := session.ValidateID(sessionID); err != nil {
			utils.RespondWithBadRequest(c, "session_id inválido", nil)
			return
		}
	}

	if c.Query("async") == "true" && h.enqueuer != nil {
		h.enqueueIngest(c, sessionID, files)
		return
	}

	res, err := h.ingest.Ingest(c.Request.Context(), sessionID, files)
	switch {
	case errors.Is(err, services.ErrNoDocuments):
		utils.RespondWithBadRequest(c, "No se pudo procesar ningún archivo.", nil)
		return
	case err != nil:
		logger.Error("Ingestion failed", "request_id", middleware.GetRequestID(c), "error", err)
		utils.RespondWithInternalError(c, "Error al procesar los archivos.", nil)
		return
	}
	c.JSON(http.StatusOK, res.Response())
}

func (h *RAGHandler) enqueueIngest(c *gin.Context, sessionID string, files []services.UploadedFile) {
	if sessionID == "" {
		sessionID = services.NewSessionID()
	}
	staged, err := services.StageUploads(h.cfg.UploadStagingDir, files)
	if err != nil {
		logger.Error("Failed to stage uploads", "error", err)
		utils.RespondWithInternalError(c, "Error al preparar los archivos.", nil)
		return
	}
	taskID, err := h.enqueuer.EnqueueIngest(c.Request.Context(), sessionID, staged)
	if err != nil {
		_ = services.RemoveStaged(staged)
		logger.Error("Failed to enqueue ingestion", "error", err)
		utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable", "No se pudo encolar la ingesta.", nil)
		return
	}
	c.JSON(http.StatusAccepted, models.IngestAcceptedResponse{
		Message:   "Archivos recibidos; la indexación se realizará en segundo plano.",
		SessionID: sessionID,
		TaskID:    taskID,
	})
}

func (h *RAGHandler) readUploads(headers []*multipart.FileHeader) ([]services.UploadedFile, error) {
	files := make([]services.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		if h.cfg.MaxFileSize > 0 && fh.Size > h.cfg.MaxFileSize {
			return nil, fmt.Errorf("el archivo %s supera el tamaño máximo permitido", fh.Filename)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, services.UploadedFile{Name: fh.Filename, Content: content})
	}
	return files, nil
}

func (h *RAGHandler) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if utf8.RuneCountInString(q) < minQueryLength {
		utils.RespondWithBadRequest(c, fmt.Sprintf("q debe tener al menos %d caracteres", minQueryLength), nil)
		return
	}

	frags, err := h.answers.Search(c.Request.Context(), c.Query("session_id"), q)
	switch {
	case errors.Is(err, services.ErrSessionRequired):
		utils.RespondWithBadRequest(c, "session_id es requerido", nil)
		return
	case errors.Is(err, services.ErrIndexNotReady):
		utils.RespondWithNotReady(c, "El índice no está listo.")
		return
	case err != nil:
		logger.Error("Search failed", "error", err)
		utils.RespondWithInternalError(c, "Ocurrió un error al procesar la búsqueda.", nil)
		return
	}
	c.JSON(http.StatusOK, services.SearchResults(frags))
}

func (h *RAGHandler) handleAsk(c *gin.Context) {
	var req models.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	resp, err := h.answers.Ask(c.Request.Context(), req.SessionID, req.Question)
	switch {
	case errors.Is(err, services.ErrSessionRequired):
		utils.RespondWithBadRequest(c, "session_id es requerido", nil)
	case errors.Is(err, services.ErrIndexNotReady):
		utils.RespondWithNotReady(c, "No hay documentos cargados.")
	case errors.Is(err, ai.ErrNotConfigured):
		utils.RespondWithError(c, http.StatusInternalServerError, "api_key_missing",
			"La API Key no está configurada en el servidor.", nil)
	case errors.Is(err, ai.ErrUnavailable):
		utils.RespondWithError(c, http.StatusServiceUnavailable, "model_unavailable",
			"El modelo de lenguaje no está disponible temporalmente.", nil)
	case err != nil:
		utils.RespondWithInternalError(c, "Error al generar la respuesta con el modelo de lenguaje.", nil)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

func (h *RAGHandler) handleConfigureAPIKey(c *gin.Context) {
	var req models.ConfigureAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}
	if err := h.keys.Reconfigure(c.Request.Context(), req.APIKey); err != nil {
		logger.Error("Failed to configure API key", "error", err)
		utils.RespondWithInternalError(c, "Error al configurar la API Key", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API Key configurada exitosamente", "status": "success"})
}

func (h *RAGHandler) handleStatus(c *gin.Context) {
	ctx, cancel := utils.WithShortTimeout(c.Request.Context())
	defer cancel()

	sessionID := c.Query("session_id")
	if sessionID == "" {
		ids, err := h.sessions.List(ctx)
		if err != nil {
			logger.Error("Failed to list sessions", "error", err)
			ids = []string{}
		}
		c.JSON(http.StatusOK, models.GlobalStatusResponse{Sessions: ids, APIKeyConfigured: h.keys.Configured()})
		return
	}

	resp := models.SessionStatusResponse{IndexedDocuments: []string{}, APIKeyConfigured: h.keys.Configured()}
	if sess, err := h.sessions.Get(ctx, sessionID); err == nil {
		resp.IndexedDocuments = sess.DocumentNames()
		resp.IsIndexReady = sess.Ready()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RAGHandler) handleGetDocument(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		utils.RespondWithBadRequest(c, "session_id es requerido", nil)
		return
	}

	sess, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrInvalidID) {
			logger.Error("Failed to load session", "session_id", sessionID, "error", err)
		}
		utils.RespondWithNotFound(c, "Sesión no encontrada")
		return
	}
	doc, ok := sess.Document(c.Param("name"))
	if !ok {
		utils.RespondWithNotFound(c, "Documento no encontrado")
		return
	}
	c.JSON(http.StatusOK, models.DocumentResponse{Name: doc.Name, ContentHex: hex.EncodeToString(doc.Content)})
}
