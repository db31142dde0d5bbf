package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFromTexts(t *testing.T, texts map[string]string, order ...string) Bundle {
	t.Helper()
	chunker, err := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	pages := make(map[string][]Page, len(texts))
	for name, text := range texts {
		pages[name] = []Page{{Number: 1, Start: 0, End: len([]rune(text)), Text: text}}
	}
	b, err := NewBuilder().BuildFromPages(context.Background(), chunker, pages, order)
	require.NoError(t, err)
	return b
}

var corpus = map[string]string{
	"pagos.txt":   "El sistema de pagos procesa transferencias bancarias cada noche.",
	"clima.txt":   "Weather forecasts predict heavy rain across the northern valley.",
	"cocina.txt":  "La receta de paella lleva arroz, azafrán y mariscos frescos.",
	"soporte.txt": "Support tickets are answered within two business days by the helpdesk.",
}

var corpusOrder = []string{"pagos.txt", "clima.txt", "cocina.txt", "soporte.txt"}

func TestBuild_EmptyCorpusIsNotReady(t *testing.T) {
	b, err := NewBuilder().Build(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, b.Ready())
	assert.IsType(t, NotReady{}, b)

	b, err = NewBuilder().Build(context.Background(), []Document{{Name: "empty.txt"}})
	require.NoError(t, err)
	assert.False(t, b.Ready())

	res := SearchDetailed(context.Background(), "anything", b, DefaultSearchOptions())
	assert.Empty(t, res.Fragments)
	assert.Equal(t, OutcomeNotReady, res.Outcome)
	assert.Empty(t, Search(context.Background(), "anything", nil, DefaultSearchOptions()))
}

func TestBuild_Deterministic(t *testing.T) {
	a := buildFromTexts(t, corpus, corpusOrder...).(*ReadyIndex)
	b := buildFromTexts(t, corpus, corpusOrder...).(*ReadyIndex)

	assert.Equal(t, a.Chunks(), b.Chunks())
	assert.Equal(t, a.LexicalVocabulary(), b.LexicalVocabulary())
	assert.Equal(t, a.CharacterVocabulary(), b.CharacterVocabulary())
	assert.True(t, sortedStrings(a.LexicalVocabulary()))
}

func TestBuild_RowOrderFollowsDocuments(t *testing.T) {
	idx := buildFromTexts(t, corpus, corpusOrder...).(*ReadyIndex)
	require.Equal(t, len(corpusOrder), idx.Len())
	for i, name := range corpusOrder {
		assert.Equal(t, name, idx.Chunk(i).DocumentName)
	}
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder().Build(ctx, []Document{{Name: "a", Chunks: []Chunk{{DocumentName: "a", Text: "hola mundo"}}}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSearch_CatScenario(t *testing.T) {
	b := buildFromTexts(t, map[string]string{"a.txt": "the cat sat on the mat"}, "a.txt")

	got := Search(context.Background(), "mat", b, DefaultSearchOptions())
	require.Len(t, got, 1)
	assert.Equal(t, "a.txt", got[0].DocumentName)
	assert.Equal(t, "the cat sat on the mat", got[0].Text)
	assert.Greater(t, got[0].Score, 0.0)
	assert.Equal(t, 0, got[0].StartPos)
	assert.Equal(t, 22, got[0].EndPos)
}

func TestSearch_ThresholdAboveOneIsAlwaysEmpty(t *testing.T) {
	b := buildFromTexts(t, corpus, corpusOrder...)
	opts := SearchOptions{TopK: 5, Threshold: 1.1}

	for _, name := range corpusOrder {
		assert.Empty(t, Search(context.Background(), corpus[name], b, opts))
	}
}

func TestSearch_SelfSimilarityRanksFirst(t *testing.T) {
	b := buildFromTexts(t, corpus, corpusOrder...)

	for _, name := range corpusOrder {
		got := Search(context.Background(), corpus[name], b, DefaultSearchOptions())
		require.NotEmpty(t, got, name)
		assert.Equal(t, name, got[0].DocumentName)
		assert.InDelta(t, 1.0, got[0].Score, 1e-4)
		for _, f := range got[1:] {
			assert.LessOrEqual(t, f.Score, got[0].Score)
		}
	}
}

func TestSearch_OutOfVocabularyQuery(t *testing.T) {
	b := buildFromTexts(t, map[string]string{"a.txt": "the cat sat on the mat"}, "a.txt")

	res := SearchDetailed(context.Background(), "zzzz qqqq", b, DefaultSearchOptions())
	assert.Empty(t, res.Fragments)
	assert.Equal(t, OutcomeNoSignificantMatch, res.Outcome)
	assert.Zero(t, res.MaxScore)
}

func TestSearch_AccentInsensitive(t *testing.T) {
	b := buildFromTexts(t, corpus, corpusOrder...)

	got := Search(context.Background(), "azafran", b, DefaultSearchOptions())
	require.NotEmpty(t, got)
	assert.Equal(t, "cocina.txt", got[0].DocumentName)
}

func TestSearch_TopKAndOrdering(t *testing.T) {
	texts := map[string]string{
		"a": "contrato de arrendamiento firmado",
		"b": "contrato de arrendamiento firmado por ambas partes",
		"c": "contrato laboral",
		"d": "receta de cocina",
	}
	b := buildFromTexts(t, texts, "a", "b", "c", "d")

	got := Search(context.Background(), "contrato arrendamiento", b, SearchOptions{TopK: 2, Threshold: 0.05})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].DocumentName)
	assert.Equal(t, "b", got[1].DocumentName)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestSearch_TiesAndThreshold(t *testing.T) {
	const text = "factura pendiente de pago mensual"
	texts := map[string]string{
		"debil.txt": "pago recibido ayer por la tarde",
		"uno.txt":   text,
		"dos.txt":   text,
	}
	b := buildFromTexts(t, texts, "debil.txt", "uno.txt", "dos.txt")

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{"ties keep row order", SearchOptions{TopK: 2, Threshold: 0.01}, []string{"uno.txt", "dos.txt"}},
		{"weak row inside top k", SearchOptions{TopK: 5, Threshold: 0.01}, []string{"uno.txt", "dos.txt", "debil.txt"}},
		{"weak row below threshold is dropped", SearchOptions{TopK: 5, Threshold: 0.99}, []string{"uno.txt", "dos.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := SearchDetailed(context.Background(), text, b, tt.opts)
			assert.Equal(t, OutcomeMatched, res.Outcome)

			names := make([]string, len(res.Fragments))
			for i, f := range res.Fragments {
				names[i] = f.DocumentName
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, res.Fragments[0].Score, res.Fragments[1].Score)
			for _, f := range res.Fragments {
				assert.Greater(t, f.Score, tt.opts.Threshold)
			}
		})
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	b := buildFromTexts(t, corpus, corpusOrder...)
	assert.Empty(t, Search(context.Background(), "   ", b, DefaultSearchOptions()))
}

func TestSearch_ExpiredContextDegradesToEmpty(t *testing.T) {
	b := buildFromTexts(t, corpus, corpusOrder...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, Search(ctx, "paella", b, DefaultSearchOptions()))
}

func TestRestoreIndex_RoundTrip(t *testing.T) {
	b := buildFromTexts(t, corpus, corpusOrder...)
	restored, err := RestoreIndex(b.(*ReadyIndex).State())
	require.NoError(t, err)

	for _, q := range []string{"paella", "weather rain", "tickets helpdesk", "transferencias"} {
		assert.Equal(t,
			Search(context.Background(), q, b, DefaultSearchOptions()),
			Search(context.Background(), q, restored, DefaultSearchOptions()), q)
	}

	empty, err := RestoreIndex(IndexState{})
	require.NoError(t, err)
	assert.False(t, empty.Ready())

	st := b.(*ReadyIndex).State()
	st.LexicalRows = st.LexicalRows[:1]
	_, err = RestoreIndex(st)
	assert.Error(t, err)
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.1235, roundScore(0.123456))
	assert.Equal(t, 1.0, roundScore(0.99999999))
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
