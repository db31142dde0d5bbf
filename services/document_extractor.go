package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/retrieval"
)

var (
	// ErrUnsupportedFormat is returned for file extensions the extractor does not read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument is returned when a file yields no text.
	ErrEmptyDocument = errors.New("document has no extractable text")
	// ErrExtractionTimeout is returned when a file takes longer than the
	// extraction deadline, which malformed PDFs can do indefinitely.
	ErrExtractionTimeout = errors.New("document extraction timed out")
)

const defaultExtractTimeout = 30 * time.Second

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".html": true,
	".htm":  true,
}

// ExtractedDocument is the text of one uploaded file split into pages.
type ExtractedDocument struct {
	Name  string
	Text  string
	Pages []retrieval.Page
}

// DocumentExtractor turns uploaded bytes into page-annotated plain text.
type DocumentExtractor struct {
	timeout time.Duration
}

// NewDocumentExtractor bounds each file's extraction by timeout. A
// non-positive timeout uses the default of 30s.
func NewDocumentExtractor(timeout time.Duration) *DocumentExtractor {
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	return &DocumentExtractor{timeout: timeout}
}

// Supported reports whether name has an extension the extractor reads.
func (e *DocumentExtractor) Supported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Extract reads content according to the extension of name. Pages carry
// offsets into the concatenated text, where pages are separated by one newline.
func (e *DocumentExtractor) Extract(ctx context.Context, name string, content []byte) (*ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		pageTexts []pageText
		err       error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		pageTexts, err = e.bounded(ctx, func(ctx context.Context) ([]pageText, error) {
			return extractPDF(ctx, content)
		})
	case ".txt":
		pageTexts, err = extractPlainText(content)
	case ".html", ".htm":
		pageTexts, err = extractHTML(content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}

	doc := assemblePages(name, pageTexts)
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}
	return doc, nil
}

type extractResult struct {
	pages []pageText
	err   error
}

// bounded runs fn in its own goroutine and gives up when the deadline or ctx
// expires. The PDF reader can loop forever on some page trees and offers no
// way to interrupt it, so a timed out goroutine is abandoned. Panics from the
// reader become errors.
func (e *DocumentExtractor) bounded(ctx context.Context, fn func(context.Context) ([]pageText, error)) ([]pageText, error) {
	timeout := e.timeout
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan extractResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extractResult{err: fmt.Errorf("malformed document: %v", r)}
			}
		}()
		pages, err := fn(ctx)
		done <- extractResult{pages: pages, err: err}
	}()

	select {
	case res := <-done:
		return res.pages, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrExtractionTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}

type pageText struct {
	number int
	text   string
}

func assemblePages(name string, pageTexts []pageText) *ExtractedDocument {
	doc := &ExtractedDocument{Name: name}
	var sb strings.Builder
	pos := 0
	for _, p := range pageTexts {
		if p.text == "" {
			continue
		}
		n := utf8.RuneCountInString(p.text)
		doc.Pages = append(doc.Pages, retrieval.Page{
			Number: p.number,
			Start:  pos,
			End:    pos + n,
			Text:   p.text,
		})
		sb.WriteString(p.text)
		sb.WriteByte('\n')
		pos += n + 1
	}
	doc.Text = sb.String()
	return doc
}

func extractPDF(ctx context.Context, content []byte) ([]pageText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]pageText, 0, total)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract PDF page", "page", i, "error", err)
			continue
		}
		pages = append(pages, pageText{number: i, text: text})
	}
	return pages, nil
}

func extractPlainText(content []byte) ([]pageText, error) {
	if !utf8.Valid(content) {
		return nil, errors.New("text file is not valid UTF-8")
	}
	return []pageText{{number: 1, text: string(content)}}, nil
}

func extractHTML(content []byte) ([]pageText, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template, svg, nav, footer").Remove()

	root := doc.Find("main, article, [role='main']").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	for _, line := range strings.Split(root.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return []pageText{{number: 1, text: strings.Join(lines, "\n")}}, nil
}
