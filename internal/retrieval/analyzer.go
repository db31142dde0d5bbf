package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AnalyzerKind identifies how a vectorizer turns text into terms.
type AnalyzerKind string

const (
	// AnalyzerWord produces word unigrams and bigrams with stopword removal.
	AnalyzerWord AnalyzerKind = "word"
	// AnalyzerCharWB produces 3..5 character n-grams inside word boundaries.
	AnalyzerCharWB AnalyzerKind = "char_wb"
)

const (
	charMinN = 3
	charMaxN = 5
)

// Analyzer turns raw text into a sequence of terms.
type Analyzer interface {
	Kind() AnalyzerKind
	Analyze(text string) []string
}

// normalize lowercases text and strips combining marks after NFKD
// decomposition. Pure ASCII input is returned lowercased as is.
func normalize(text string) string {
	lower := strings.ToLower(text)
	if isASCII(lower) {
		return lower
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// wordAnalyzer tokenises on runs of two or more word characters, drops
// stopwords and then emits unigrams and bigrams.
type wordAnalyzer struct {
	stopwords map[string]struct{}
}

// NewWordAnalyzer returns the lexical analyzer with the bilingual stopword set.
func NewWordAnalyzer() Analyzer {
	return &wordAnalyzer{stopwords: bilingualStopwords()}
}

func (a *wordAnalyzer) Kind() AnalyzerKind { return AnalyzerWord }

func (a *wordAnalyzer) Analyze(text string) []string {
	tokens := a.tokens(normalize(text))
	if len(tokens) == 0 {
		return nil
	}
	terms := make([]string, 0, 2*len(tokens)-1)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

func (a *wordAnalyzer) tokens(text string) []string {
	var out []string
	start := -1
	count := 0
	flush := func(end int) {
		if start >= 0 && count >= 2 {
			tok := text[start:end]
			if _, stop := a.stopwords[tok]; !stop {
				out = append(out, tok)
			}
		}
		start, count = -1, 0
	}
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			count++
			continue
		}
		flush(i)
	}
	flush(len(text))
	return out
}

// charWBAnalyzer emits character n-grams of each space-padded word. A word
// shorter than n yields itself once and stops longer n-grams for that word.
type charWBAnalyzer struct{}

// NewCharAnalyzer returns the character n-gram analyzer.
func NewCharAnalyzer() Analyzer { return charWBAnalyzer{} }

func (charWBAnalyzer) Kind() AnalyzerKind { return AnalyzerCharWB }

func (charWBAnalyzer) Analyze(text string) []string {
	var terms []string
	for _, word := range strings.Fields(normalize(text)) {
		w := []rune(" " + word + " ")
		wLen := len(w)
		for n := charMinN; n <= charMaxN; n++ {
			offset := 0
			terms = append(terms, string(w[offset:min(offset+n, wLen)]))
			for offset+n < wLen {
				offset++
				terms = append(terms, string(w[offset:offset+n]))
			}
			if offset == 0 {
				break
			}
		}
	}
	return terms
}

func analyzerFor(kind AnalyzerKind) Analyzer {
	if kind == AnalyzerCharWB {
		return NewCharAnalyzer()
	}
	return NewWordAnalyzer()
}
