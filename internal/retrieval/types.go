// Package retrieval implements chunking, dual TF-IDF indexing and hybrid
// similarity search over a session's documents.
package retrieval

// Defaults used when a caller leaves a tunable unset.
const (
	DefaultChunkSize           = 1000
	DefaultChunkOverlap        = 200
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.1

	// LexicalWeight and CharacterWeight blend the two cosine similarities.
	LexicalWeight   = 0.7
	CharacterWeight = 0.3
)

// Page is one page of extracted document text. Start and End are offsets
// into the document's concatenated text; Number is 1-based.
type Page struct {
	Number int    `json:"page_number" bson:"page_number"`
	Start  int    `json:"start_pos" bson:"start_pos"`
	End    int    `json:"end_pos" bson:"end_pos"`
	Text   string `json:"text" bson:"text"`
}

// Chunk is a window of a single page. StartPos and EndPos are offsets
// relative to the page text, counted in characters.
type Chunk struct {
	DocumentName string `json:"document_name" bson:"document_name"`
	Text         string `json:"text" bson:"text"`
	PageNumber   int    `json:"page_number" bson:"page_number"`
	StartPos     int    `json:"start_pos" bson:"start_pos"`
	EndPos       int    `json:"end_pos" bson:"end_pos"`
}

// Document is the unit handed to the index builder.
type Document struct {
	Name   string
	Chunks []Chunk
}

// ScoredFragment is a chunk returned by a search together with its blended score.
type ScoredFragment struct {
	Text         string  `json:"text"`
	DocumentName string  `json:"document_name"`
	Score        float64 `json:"score"`
	PageNumber   int     `json:"page_number"`
	StartPos     int     `json:"start_pos"`
	EndPos       int     `json:"end_pos"`
}
