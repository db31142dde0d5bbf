// Package session keeps each session's documents and index bundle, backed
// by snapshots on disk or in Redis.
package session

import (
	"context"
	"errors"
	"regexp"
	"time"

	"rag-docqa-platform/internal/retrieval"
)

var (
	// ErrNotFound is returned when a session id is unknown.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for ids that are not safe storage keys.
	ErrInvalidID = errors.New("invalid session id")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateID checks that id can be used as a file name and a Redis key.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// Document is an ingested file: its raw bytes, extracted pages and chunks.
type Document struct {
	Name    string            `bson:"name"`
	Content []byte            `bson:"content"`
	Pages   []retrieval.Page  `bson:"pages"`
	Chunks  []retrieval.Chunk `bson:"chunks"`
}

// Session is immutable once stored. Rebuilds produce a new *Session that
// replaces the old one wholesale.
type Session struct {
	ID        string
	Documents []Document
	Bundle    retrieval.Bundle
	BuiltAt   time.Time
}

// Ready reports whether the session has a searchable index.
func (s *Session) Ready() bool {
	return s != nil && s.Bundle != nil && s.Bundle.Ready()
}

// Document returns the named document.
func (s *Session) Document(name string) (Document, bool) {
	for _, d := range s.Documents {
		if d.Name == name {
			return d, true
		}
	}
	return Document{}, false
}

// DocumentNames lists document names in ingestion order.
func (s *Session) DocumentNames() []string {
	names := make([]string, len(s.Documents))
	for i, d := range s.Documents {
		names[i] = d.Name
	}
	return names
}

// RetrievalDocuments is the builder input for this session's documents.
func RetrievalDocuments(docs []Document) []retrieval.Document {
	out := make([]retrieval.Document, len(docs))
	for i, d := range docs {
		out[i] = retrieval.Document{Name: d.Name, Chunks: d.Chunks}
	}
	return out
}

// Store maps session ids to sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}
