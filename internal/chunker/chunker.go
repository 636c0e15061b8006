// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"github.com/hyperjump/kotae/internal/models"
)

// Chunker splits text into overlapping rune windows.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Overlap must satisfy 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Validate checks chunk size and overlap.
func Validate(size, overlap int) error {
	if size <= 0 {
		return models.NewConfigurationError("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return models.NewConfigurationError("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return nil
}

// Size returns the window length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text for docID. Empty text yields no chunks.
// Windows advance by size-overlap; the final window is truncated to the remaining text.
func (c *Chunker) Split(docID, text string) []models.Chunk {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	step := c.size - c.overlap
	chunks := make([]models.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			DocumentID: docID,
			Index:      len(chunks),
			Start:      start,
			Length:     end - start,
			Text:       string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Split is a convenience wrapper that validates size and overlap and splits text.
func Split(text string, size, overlap int) ([]models.Chunk, error) {
	c, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split("", text), nil
}
