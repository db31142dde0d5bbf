package models

// TextPosition locates a fragment inside its page.
type TextPosition struct {
	StartPos int `json:"start_pos"`
	EndPos   int `json:"end_pos"`
}

// SearchResult is one fragment returned by GET /search.
type SearchResult struct {
	Text         string       `json:"text"`
	DocumentName string       `json:"document_name"`
	Score        float64      `json:"score"`
	PageNumber   int          `json:"page_number"`
	TextPosition TextPosition `json:"text_position"`
}

type AskRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// Citation points the client at the source document of an answer.
type Citation struct {
	DocumentName string       `json:"document_name"`
	ContentHex   string       `json:"content_hex"`
	PageNumber   int          `json:"page_number"`
	TextPosition TextPosition `json:"text_position"`
}

type AskResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

type ConfigureAPIKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

type ProcessedFile struct {
	Filename    string `json:"filename"`
	ChunksCount int    `json:"chunks_count"`
}

type IngestResponse struct {
	Message        string          `json:"message"`
	ProcessedFiles []ProcessedFile `json:"processed_files"`
	SkippedFiles   []string        `json:"skipped_files,omitempty"`
	SessionID      string          `json:"session_id"`
}

type IngestAcceptedResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
}

type SessionStatusResponse struct {
	IndexedDocuments []string `json:"indexed_documents"`
	IsIndexReady     bool     `json:"is_index_ready"`
	APIKeyConfigured bool     `json:"api_key_configured"`
}

type GlobalStatusResponse struct {
	Sessions         []string `json:"sessions"`
	APIKeyConfigured bool     `json:"api_key_configured"`
}

type DocumentResponse struct {
	Name       string `json:"name"`
	ContentHex string `json:"content_hex"`
}
