package retrieval

import (
	"context"
	"math"
	"sort"
)

// SparseVector holds the non-zero entries of a row, indices ascending.
type SparseVector struct {
	Indices []int     `bson:"i"`
	Values  []float64 `bson:"v"`
}

// Dot returns the inner product with a dense-by-map query vector.
func (v SparseVector) Dot(q map[int]float64) float64 {
	if len(q) == 0 {
		return 0
	}
	sum := 0.0
	for k, idx := range v.Indices {
		if w, ok := q[idx]; ok {
			sum += v.Values[k] * w
		}
	}
	return sum
}

// Vectorizer is a fitted TF-IDF model: a vocabulary with smoothed idf weights.
type Vectorizer struct {
	analyzer   Analyzer
	terms      []string
	vocabulary map[string]int
	idf        []float64
}

// FitTransform learns the vocabulary of corpus and returns its
// L2-normalised TF-IDF matrix, one row per corpus entry.
func FitTransform(ctx context.Context, analyzer Analyzer, corpus []string) (*Vectorizer, []SparseVector, error) {
	analyzed := make([][]string, len(corpus))
	df := make(map[string]int)
	for i, text := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		terms := analyzer.Analyze(text)
		analyzed[i] = terms
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	v := &Vectorizer{
		analyzer:   analyzer,
		terms:      terms,
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	for i, t := range terms {
		v.vocabulary[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	rows := make([]SparseVector, len(analyzed))
	for i, a := range analyzed {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rows[i] = v.weigh(a)
	}
	return v, rows, nil
}

// Transform projects text into the fitted space. Unknown terms are ignored.
func (v *Vectorizer) Transform(text string) SparseVector {
	return v.weigh(v.analyzer.Analyze(text))
}

// TransformMap is Transform keyed by column, convenient for dot products.
func (v *Vectorizer) TransformMap(text string) map[int]float64 {
	row := v.Transform(text)
	out := make(map[int]float64, len(row.Indices))
	for k, idx := range row.Indices {
		out[idx] = row.Values[k]
	}
	return out
}

// Kind reports the analyzer behind this vectorizer.
func (v *Vectorizer) Kind() AnalyzerKind { return v.analyzer.Kind() }

// Vocabulary returns the terms in column order.
func (v *Vectorizer) Vocabulary() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Len is the vocabulary size.
func (v *Vectorizer) Len() int { return len(v.terms) }

func (v *Vectorizer) weigh(terms []string) SparseVector {
	counts := make(map[int]int)
	for _, t := range terms {
		if idx, ok := v.vocabulary[t]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	norm := 0.0
	for k, idx := range indices {
		w := float64(counts[idx]) * v.idf[idx]
		values[k] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for k := range values {
			values[k] /= norm
		}
	}
	return SparseVector{Indices: indices, Values: values}
}

// VectorizerState is the serialisable form of a fitted vectorizer.
type VectorizerState struct {
	Kind  AnalyzerKind `bson:"kind"`
	Terms []string     `bson:"terms"`
	IDF   []float64    `bson:"idf"`
}

// State exports the fitted model.
func (v *Vectorizer) State() VectorizerState {
	idf := make([]float64, len(v.idf))
	copy(idf, v.idf)
	return VectorizerState{Kind: v.Kind(), Terms: v.Vocabulary(), IDF: idf}
}

// RestoreVectorizer rebuilds a vectorizer from its exported state.
func RestoreVectorizer(s VectorizerState) (*Vectorizer, error) {
	if len(s.Terms) != len(s.IDF) {
		return nil, errCorruptState
	}
	v := &Vectorizer{
		analyzer:   analyzerFor(s.Kind),
		terms:      s.Terms,
		vocabulary: make(map[string]int, len(s.Terms)),
		idf:        s.IDF,
	}
	for i, t := range s.Terms {
		v.vocabulary[t] = i
	}
	return v, nil
}
