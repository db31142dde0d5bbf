package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
)

// SearchOptions tunes result selection.
type SearchOptions struct {
	TopK      int
	Threshold float64
}

// DefaultSearchOptions returns top 5 with a 0.1 threshold.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{TopK: DefaultTopK, Threshold: DefaultSimilarityThreshold}
}

// Outcome tells callers why a search returned what it did.
type Outcome int

const (
	OutcomeNotReady Outcome = iota
	OutcomeNoSignificantMatch
	OutcomeMatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeNoSignificantMatch:
		return "no_significant_match"
	case OutcomeMatched:
		return "matched"
	}
	return "unknown"
}

// SearchResult is the detailed form of a search.
type SearchResult struct {
	Fragments []ScoredFragment
	Outcome   Outcome
	MaxScore  float64
}

// Search returns at most opts.TopK fragments scoring above opts.Threshold.
// It never fails: a bundle that is not ready, an empty query or an expired
// context all produce an empty result.
func Search(ctx context.Context, query string, b Bundle, opts SearchOptions) []ScoredFragment {
	return SearchDetailed(ctx, query, b, opts).Fragments
}

// SearchDetailed is Search plus the outcome and the best blended score.
func SearchDetailed(ctx context.Context, query string, b Bundle, opts SearchOptions) SearchResult {
	idx, ok := b.(*ReadyIndex)
	if !ok || idx == nil || idx.Len() == 0 {
		return SearchResult{Outcome: OutcomeNotReady}
	}
	if strings.TrimSpace(query) == "" {
		return SearchResult{Outcome: OutcomeNoSignificantMatch}
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	scores, err := idx.blendedScores(ctx, query)
	if err != nil {
		return SearchResult{Outcome: OutcomeNoSignificantMatch}
	}

	best := 0.0
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	if best < opts.Threshold {
		return SearchResult{Outcome: OutcomeNoSignificantMatch, MaxScore: best}
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, c int) bool { return scores[order[a]] > scores[order[c]] })
	if len(order) > opts.TopK {
		order = order[:opts.TopK]
	}

	fragments := make([]ScoredFragment, 0, len(order))
	for _, row := range order {
		if scores[row] <= opts.Threshold {
			continue
		}
		c := idx.chunks[row]
		fragments = append(fragments, ScoredFragment{
			Text:         c.Text,
			DocumentName: c.DocumentName,
			Score:        roundScore(scores[row]),
			PageNumber:   c.PageNumber,
			StartPos:     c.StartPos,
			EndPos:       c.EndPos,
		})
	}

	outcome := OutcomeMatched
	if len(fragments) == 0 {
		outcome = OutcomeNoSignificantMatch
	}
	return SearchResult{Fragments: fragments, Outcome: outcome, MaxScore: best}
}

// blendedScores projects the query into both spaces and returns
// LexicalWeight*lex + CharacterWeight*char for every row.
func (r *ReadyIndex) blendedScores(ctx context.Context, query string) ([]float64, error) {
	lexQ := r.lexical.vectorizer.TransformMap(query)
	charQ := r.character.vectorizer.TransformMap(query)

	scores := make([]float64, len(r.chunks))
	for i := range r.chunks {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		lex := r.lexical.rows[i].Dot(lexQ)
		chr := r.character.rows[i].Dot(charQ)
		scores[i] = LexicalWeight*lex + CharacterWeight*chr
	}
	return scores, nil
}

func roundScore(s float64) float64 {
	return math.Round(s*1e4) / 1e4
}
