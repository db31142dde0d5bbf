package retrieval

import (
	"context"
	"fmt"
)

// Bundle is the per-session index state. It is either *ReadyIndex or NotReady.
type Bundle interface {
	Ready() bool
	isBundle()
}

// NotReady marks a session whose corpus produced no chunks.
type NotReady struct{}

func (NotReady) Ready() bool { return false }
func (NotReady) isBundle()   {}

// space is one fitted vector space: a vectorizer plus the matrix it produced.
type space struct {
	vectorizer *Vectorizer
	rows       []SparseVector
}

// ReadyIndex holds the lexical and character spaces over the same chunk
// corpus. Row i of both matrices refers to chunks[i]. A ReadyIndex is never
// mutated after Build returns.
type ReadyIndex struct {
	lexical   space
	character space
	chunks    []Chunk
}

func (*ReadyIndex) Ready() bool { return true }
func (*ReadyIndex) isBundle()   {}

// Len is the number of indexed chunks.
func (r *ReadyIndex) Len() int { return len(r.chunks) }

// Chunk returns the chunk behind matrix row i.
func (r *ReadyIndex) Chunk(i int) Chunk { return r.chunks[i] }

// Chunks returns a copy of the corpus in row order.
func (r *ReadyIndex) Chunks() []Chunk {
	out := make([]Chunk, len(r.chunks))
	copy(out, r.chunks)
	return out
}

// LexicalVocabulary returns the fitted word-level vocabulary.
func (r *ReadyIndex) LexicalVocabulary() []string { return r.lexical.vectorizer.Vocabulary() }

// CharacterVocabulary returns the fitted character n-gram vocabulary.
func (r *ReadyIndex) CharacterVocabulary() []string { return r.character.vectorizer.Vocabulary() }

// Builder fits both vector spaces over a session's documents.
type Builder struct {
	lexical   Analyzer
	character Analyzer
}

// NewBuilder returns a Builder using the bilingual word analyzer and the
// character n-gram analyzer.
func NewBuilder() *Builder {
	return &Builder{lexical: NewWordAnalyzer(), character: NewCharAnalyzer()}
}

// Build flattens the chunks of docs in order and fits both spaces. An empty
// corpus yields NotReady and no error.
func (b *Builder) Build(ctx context.Context, docs []Document) (Bundle, error) {
	var chunks []Chunk
	for _, d := range docs {
		chunks = append(chunks, d.Chunks...)
	}
	if len(chunks) == 0 {
		return NotReady{}, nil
	}

	corpus := make([]string, len(chunks))
	for i, c := range chunks {
		corpus[i] = c.Text
	}

	lexVec, lexRows, err := FitTransform(ctx, b.lexical, corpus)
	if err != nil {
		return nil, fmt.Errorf("fit lexical space: %w", err)
	}
	charVec, charRows, err := FitTransform(ctx, b.character, corpus)
	if err != nil {
		return nil, fmt.Errorf("fit character space: %w", err)
	}

	return &ReadyIndex{
		lexical:   space{vectorizer: lexVec, rows: lexRows},
		character: space{vectorizer: charVec, rows: charRows},
		chunks:    chunks,
	}, nil
}

// BuildFromPages chunks each named page set and builds the index in one call.
func (b *Builder) BuildFromPages(ctx context.Context, chunker *Chunker, pages map[string][]Page, order []string) (Bundle, error) {
	docs := make([]Document, 0, len(order))
	for _, name := range order {
		docs = append(docs, Document{Name: name, Chunks: chunker.Chunk(name, pages[name])})
	}
	return b.Build(ctx, docs)
}

// IndexState is the serialisable form of a ReadyIndex.
type IndexState struct {
	Lexical       VectorizerState `bson:"lexical"`
	LexicalRows   []SparseVector  `bson:"lexical_rows"`
	Character     VectorizerState `bson:"character"`
	CharacterRows []SparseVector  `bson:"character_rows"`
	Chunks        []Chunk         `bson:"chunks"`
}

// State exports the index for persistence.
func (r *ReadyIndex) State() IndexState {
	return IndexState{
		Lexical:       r.lexical.vectorizer.State(),
		LexicalRows:   r.lexical.rows,
		Character:     r.character.vectorizer.State(),
		CharacterRows: r.character.rows,
		Chunks:        r.Chunks(),
	}
}

// RestoreIndex rebuilds a bundle from persisted state. A state without
// chunks restores to NotReady.
func RestoreIndex(s IndexState) (Bundle, error) {
	if len(s.Chunks) == 0 {
		return NotReady{}, nil
	}
	if len(s.LexicalRows) != len(s.Chunks) || len(s.CharacterRows) != len(s.Chunks) {
		return nil, fmt.Errorf("restore index: %w: %d chunks, %d lexical rows, %d character rows",
			errCorruptState, len(s.Chunks), len(s.LexicalRows), len(s.CharacterRows))
	}
	lexVec, err := RestoreVectorizer(s.Lexical)
	if err != nil {
		return nil, fmt.Errorf("restore lexical space: %w", err)
	}
	charVec, err := RestoreVectorizer(s.Character)
	if err != nil {
		return nil, fmt.Errorf("restore character space: %w", err)
	}
	return &ReadyIndex{
		lexical:   space{vectorizer: lexVec, rows: s.LexicalRows},
		character: space{vectorizer: charVec, rows: s.CharacterRows},
		chunks:    s.Chunks,
	}, nil
}
