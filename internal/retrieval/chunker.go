package retrieval

// Chunker splits pages into overlapping fixed-size windows.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker validates the parameters and returns a Chunker.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if err := ValidateChunkParams(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the window length in characters.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the number of characters shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk windows every page of a document. Chunks never span a page and
// their offsets are relative to the page text. The window that reaches the
// end of a page is the last one for that page.
func (c *Chunker) Chunk(documentName string, pages []Page) []Chunk {
	step := c.chunkSize - c.overlap

	var chunks []Chunk
	for _, page := range pages {
		runes := []rune(page.Text)
		n := len(runes)

		for start := 0; start < n; start += step {
			end := min(start+c.chunkSize, n)
			chunks = append(chunks, Chunk{
				DocumentName: documentName,
				Text:         string(runes[start:end]),
				PageNumber:   page.Number,
				StartPos:     start,
				EndPos:       end,
			})
			if end == n {
				break
			}
		}
	}
	return chunks
}

// ChunkPages is a convenience wrapper validating the parameters on every call.
func ChunkPages(documentName string, pages []Page, chunkSize, overlap int) ([]Chunk, error) {
	c, err := NewChunker(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(documentName, pages), nil
}
