package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Supported(t *testing.T) {
	e := NewDocumentExtractor(0)
	for _, name := range []string{"a.pdf", "B.PDF", "notes.txt", "page.html", "page.HTM"} {
		assert.True(t, e.Supported(name), name)
	}
	for _, name := range []string{"a.docx", "noext", "img.png"} {
		assert.False(t, e.Supported(name), name)
	}
}

func TestExtractor_PlainText(t *testing.T) {
	doc, err := NewDocumentExtractor(0).Extract(context.Background(), "nota.txt", []byte("canción de cuna"))
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	p := doc.Pages[0]
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 0, p.Start)
	assert.Equal(t, 15, p.End)
	assert.Equal(t, "canción de cuna", p.Text)
	assert.Equal(t, "canción de cuna\n", doc.Text)
}

func TestExtractor_HTML(t *testing.T) {
	html := `<html><head><style>p{}</style><script>var x = 1;</script></head>
<body><nav>menu</nav><h1>Política   de datos</h1>
<p>Los datos se conservan
   durante cinco años.</p></body></html>`

	doc, err := NewDocumentExtractor(0).Extract(context.Background(), "politica.html", []byte(html))
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Política de datos\nLos datos se conservan\ndurante cinco años.", doc.Pages[0].Text)
	assert.NotContains(t, doc.Text, "var x")
	assert.NotContains(t, doc.Text, "menu")
}

func TestExtractor_Errors(t *testing.T) {
	e := NewDocumentExtractor(0)
	ctx := context.Background()

	_, err := e.Extract(ctx, "a.docx", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = e.Extract(ctx, "blank.txt", []byte(" \n\t"))
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = e.Extract(ctx, "bad.txt", []byte{0xff, 0xfe, 0x00})
	assert.Error(t, err)

	_, err = e.Extract(ctx, "broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Extract(cancelled, "nota.txt", []byte("hola"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssemblePages_Offsets(t *testing.T) {
	doc := assemblePages("x.pdf", []pageText{
		{number: 1, text: "abc"},
		{number: 2, text: ""},
		{number: 3, text: "ñandú"},
	})
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, 0, doc.Pages[0].Start)
	assert.Equal(t, 3, doc.Pages[0].End)
	assert.Equal(t, 3, doc.Pages[1].Number)
	assert.Equal(t, 4, doc.Pages[1].Start)
	assert.Equal(t, 9, doc.Pages[1].End)
	assert.Equal(t, "abc\nñandú\n", doc.Text)
}

func TestExtractor_MalformedPDFTimesOut(t *testing.T) {
	e := NewDocumentExtractor(200 * time.Millisecond)

	start := time.Now()
	_, err := e.Extract(context.Background(), "roto.pdf", pagelessPDF())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExtractor_Bounded(t *testing.T) {
	e := NewDocumentExtractor(100 * time.Millisecond)
	ctx := context.Background()

	pages, err := e.bounded(ctx, func(context.Context) ([]pageText, error) {
		return []pageText{{number: 1, text: "ok"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []pageText{{number: 1, text: "ok"}}, pages)

	_, err = e.bounded(ctx, func(context.Context) ([]pageText, error) {
		return nil, errors.New("open pdf: bad xref")
	})
	assert.EqualError(t, err, "open pdf: bad xref")

	_, err = e.bounded(ctx, func(context.Context) ([]pageText, error) {
		panic("index out of range")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index out of range")

	release := make(chan struct{})
	defer close(release)
	_, err = e.bounded(ctx, func(context.Context) ([]pageText, error) {
		<-release
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrExtractionTimeout)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.bounded(cancelled, func(context.Context) ([]pageText, error) {
		<-release
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
