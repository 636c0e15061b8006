// Package models defines core data structures for documents, chunks, answers, and errors.
package models

import "time"

// Document is a text blob handed to the orchestrator for indexing.
type Document struct {
	ID      string `json:"id"`
	Source  string `json:"source,omitempty"`
	Content string `json:"content"`
}

// DocumentInput is the input for ingesting a document over the API.
// Either Content or Path must be set; Path is read on the server side.
type DocumentInput struct {
	ID      string `json:"id,omitempty"`
	Source  string `json:"source,omitempty"`
	Content string `json:"content,omitempty"`
	Path    string `json:"path,omitempty"`
}

// AskRequest is the body of an ask call.
type AskRequest struct {
	Question string `json:"question"`
}

// Chunk is a contiguous substring of a document. Start and Length count runes, not bytes.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Start      int    `json:"start"`
	Length     int    `json:"length"`
	Text       string `json:"text"`
}

// End returns the rune offset just past the chunk.
func (c Chunk) End() int {
	return c.Start + c.Length
}

// IndexEntry pairs a chunk with its embedding.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// ScoredChunk is a single retrieval hit.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// IngestResult describes a completed ingestion.
type IngestResult struct {
	DocumentID string        `json:"document_id"`
	Source     string        `json:"source,omitempty"`
	Chunks     int           `json:"chunks"`
	Dimensions int           `json:"dimensions"`
	Duration   time.Duration `json:"duration_ns"`
}
