package routes

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/database"
	"rag-docqa-platform/internal/session"
	"rag-docqa-platform/models"
	"rag-docqa-platform/services"
	"rag-docqa-platform/utils"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func (m *memoryStore) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, session.ErrNotFound
}

func (m *memoryStore) Put(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryStore) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type stubModel struct {
	key    string
	answer string
	err    error
}

func (s *stubModel) Generate(context.Context, string) (string, error) { return s.answer, s.err }
func (s *stubModel) Configured() bool                                 { return s.key != "" }
func (s *stubModel) Reconfigure(_ context.Context, key string) error {
	s.key = key
	return nil
}

type stubQueue struct {
	sessionID string
	files     []services.StagedFile
}

func (q *stubQueue) EnqueueIngest(_ context.Context, sessionID string, files []services.StagedFile) (string, error) {
	q.sessionID = sessionID
	q.files = files
	return "task-1", nil
}

type testServer struct {
	router *gin.Engine
	store  *memoryStore
	model  *stubModel
	queue  *stubQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		TopK:                5,
		SimilarityThreshold: 0.1,
		BuildTimeout:        10 * time.Second,
		QueryTimeout:        5 * time.Second,
		LLMTimeout:          5 * time.Second,
		MinUploadFiles:      3,
		MaxUploadFiles:      10,
		MaxFileSize:         1 << 20,
		UploadStagingDir:    t.TempDir(),
	}
	store := &memoryStore{sessions: map[string]*session.Session{}}
	model := &stubModel{answer: "Vence en marzo [Fuente: contrato.txt]"}
	queue := &stubQueue{}

	ingest, err := services.NewIngestService(cfg, store, nil)
	require.NoError(t, err)
	answers := services.NewAnswerService(cfg, store, model, nil)

	chats, err := database.NewSQLiteChatStore(filepath.Join(t.TempDir(), "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = chats.Close(context.Background()) })

	router := gin.New()
	SetupRAGRoutes(router, NewRAGHandler(cfg, store, ingest, answers, model, queue))
	SetupChatRoutes(router, chats, services.NewExportService(chats))
	return &testServer{router: router, store: store, model: model, queue: queue}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

var uploadFiles = map[string]string{
	"contrato.txt": "El contrato de arrendamiento vence el 31 de marzo.",
	"manual.txt":   "The router manual explains how to reset the password.",
	"recetas.txt":  "La paella lleva arroz, azafrán y pollo.",
}

func uploadRequest(t *testing.T, url string, files map[string]string) *http.Request {
	t.Helper()
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, n := range names {
		part, err := mw.CreateFormFile("files", n)
		require.NoError(t, err)
		_, err = part.Write([]byte(files[n]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, url string, v any) *http.Request {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestIngestThenSearch(t *testing.T) {
	s := newTestServer(t)

	w := s.do(uploadRequest(t, "/ingest?session_id=abc", uploadFiles))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ingest := decode[models.IngestResponse](t, w)
	assert.Equal(t, "abc", ingest.SessionID)
	assert.Len(t, ingest.ProcessedFiles, 3)

	w = s.do(httptest.NewRequest(http.MethodGet, "/search?q=arrendamiento&session_id=abc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	results := decode[[]models.SearchResult](t, w)
	require.NotEmpty(t, results)
	assert.Equal(t, "contrato.txt", results[0].DocumentName)
	assert.Equal(t, 1, results[0].PageNumber)
	assert.Equal(t, 0, results[0].TextPosition.StartPos)

	w = s.do(httptest.NewRequest(http.MethodGet, "/search?q=xyzzy&session_id=abc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestIngest_Validation(t *testing.T) {
	s := newTestServer(t)

	two := map[string]string{"a.txt": "uno dos", "b.txt": "tres cuatro"}
	w := s.do(uploadRequest(t, "/ingest", two))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decode[utils.ErrorResponse](t, w).ErrorCode)

	junk := map[string]string{"a.doc": "x", "b.xls": "y", "c.png": "z"}
	w = s.do(uploadRequest(t, "/ingest", junk))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No se pudo procesar")

	w = s.do(uploadRequest(t, "/ingest?session_id=../x", uploadFiles))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngest_Async(t *testing.T) {
	s := newTestServer(t)

	w := s.do(uploadRequest(t, "/ingest?async=true", uploadFiles))
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[models.IngestAcceptedResponse](t, w)
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Len(t, resp.SessionID, 32)
	assert.Equal(t, resp.SessionID, s.queue.sessionID)
	assert.Len(t, s.queue.files, 3)
}

func TestSearch_Errors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/search?q=ab&session_id=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/search?q=contrato", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/search?q=contrato&session_id=nope", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "index_not_ready", decode[utils.ErrorResponse](t, w).ErrorCode)
}

func TestAsk(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "/ingest?session_id=abc", uploadFiles)).Code)

	ask := models.AskRequest{Question: "¿Cuándo vence el contrato de arrendamiento?", SessionID: "abc"}

	w := s.do(jsonRequest(t, http.MethodPost, "/ask", ask))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "api_key_missing", decode[utils.ErrorResponse](t, w).ErrorCode)

	w = s.do(jsonRequest(t, http.MethodPost, "/configure_api_key", models.ConfigureAPIKeyRequest{APIKey: "k-123"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "k-123", s.model.key)

	w = s.do(jsonRequest(t, http.MethodPost, "/ask", ask))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.AskResponse](t, w)
	assert.Equal(t, s.model.answer, resp.Answer)
	require.NotEmpty(t, resp.Citations)
	assert.Equal(t, "contrato.txt", resp.Citations[0].DocumentName)
	assert.Equal(t, hex.EncodeToString([]byte(uploadFiles["contrato.txt"])), resp.Citations[0].ContentHex)

	w = s.do(jsonRequest(t, http.MethodPost, "/ask", models.AskRequest{Question: "hola"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(jsonRequest(t, http.MethodPost, "/ask", models.AskRequest{Question: "hola", SessionID: "other"}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.model.err = errors.New("quota")
	w = s.do(jsonRequest(t, http.MethodPost, "/ask", ask))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAsk_NoMatch(t *testing.T) {
	s := newTestServer(t)
	s.model.key = "k"
	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "/ingest?session_id=abc", uploadFiles)).Code)

	w := s.do(jsonRequest(t, http.MethodPost, "/ask", models.AskRequest{Question: "qqqq zzzz", SessionID: "abc"}))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.AskResponse](t, w)
	assert.Equal(t, services.NoMatchAnswer, resp.Answer)
	assert.Empty(t, resp.Citations)
}

func TestStatusAndDocument(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	global := decode[models.GlobalStatusResponse](t, w)
	assert.Empty(t, global.Sessions)
	assert.False(t, global.APIKeyConfigured)

	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "/ingest?session_id=abc", uploadFiles)).Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/status?session_id=abc", nil))
	st := decode[models.SessionStatusResponse](t, w)
	assert.True(t, st.IsIndexReady)
	assert.Equal(t, []string{"contrato.txt", "manual.txt", "recetas.txt"}, st.IndexedDocuments)

	w = s.do(httptest.NewRequest(http.MethodGet, "/status?session_id=unknown", nil))
	st = decode[models.SessionStatusResponse](t, w)
	assert.False(t, st.IsIndexReady)
	assert.Empty(t, st.IndexedDocuments)

	w = s.do(httptest.NewRequest(http.MethodGet, "/get_document/manual.txt?session_id=abc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[models.DocumentResponse](t, w)
	assert.Equal(t, hex.EncodeToString([]byte(uploadFiles["manual.txt"])), doc.ContentHex)

	assert.Equal(t, http.StatusBadRequest, s.do(httptest.NewRequest(http.MethodGet, "/get_document/manual.txt", nil)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/get_document/manual.txt?session_id=zz", nil)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/get_document/otro.txt?session_id=abc", nil)).Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
