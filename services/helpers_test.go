package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/session"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*session.Session)}
}

func (m *memoryStore) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s, nil
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
	ids := make([]string, 0, len(m.sessions))
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

type fakeGenerator struct {
	mu         sync.Mutex
	answer     string
	err        error
	configured bool
	prompts    []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.answer, g.err
}

func (g *fakeGenerator) Configured() bool { return g.configured }

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func testConfig() *config.Config {
	return &config.Config{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		TopK:                5,
		SimilarityThreshold: 0.1,
		BuildTimeout:        10 * time.Second,
		QueryTimeout:        5 * time.Second,
		LLMTimeout:          5 * time.Second,
		ExtractTimeout:      500 * time.Millisecond,
		MinUploadFiles:      3,
		MaxUploadFiles:      10,
	}
}

func corpusFiles() []UploadedFile {
	return []UploadedFile{
		{Name: "contrato.txt", Content: []byte("El contrato de arrendamiento vence el 31 de marzo. La renta mensual es de 1200 euros.")},
		{Name: "manual.txt", Content: []byte("The installation manual explains how to configure the router and reset the password.")},
		{Name: "recetas.txt", Content: []byte("La receta de paella lleva arroz, azafrán, pollo y verduras frescas.")},
	}
}

// pagelessPDF is a well-formed PDF whose page tree claims one page but has
// no /Kids, which sends the PDF reader into an endless loop.
func pagelessPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Count 1 >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}
