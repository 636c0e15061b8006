package models

import (
	"fmt"
	"time"
)

// AnswerStatus tags the outcome of a question.
type AnswerStatus int

const (
	// AnswerNotReady means no document has been ingested yet.
	AnswerNotReady AnswerStatus = iota
	// AnswerGenerated means the text came from the language model.
	AnswerGenerated
)

// NotReadyMessage is the user-facing text for AnswerNotReady.
const NotReadyMessage = "Please load documents first."

// String returns the wire name of the status.
func (s AnswerStatus) String() string {
	switch s {
	case AnswerNotReady:
		return "not_ready"
	case AnswerGenerated:
		return "answered"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s AnswerStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *AnswerStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "not_ready":
		*s = AnswerNotReady
	case "answered":
		*s = AnswerGenerated
	default:
		return fmt.Errorf("unknown answer status %q", text)
	}
	return nil
}

// Answer is the result of Ask. Text is the model output verbatim when Status is AnswerGenerated.
type Answer struct {
	Status   AnswerStatus  `json:"status"`
	Text     string        `json:"answer"`
	Sources  []ScoredChunk `json:"sources,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// NotReadyAnswer returns the answer reported before any document is loaded.
func NotReadyAnswer() Answer {
	return Answer{Status: AnswerNotReady, Text: NotReadyMessage}
}

// Ready reports whether the answer was produced by the model.
func (a Answer) Ready() bool {
	return a.Status == AnswerGenerated
}

// IndexState is the orchestrator lifecycle state.
type IndexState string

const (
	StateEmpty IndexState = "empty"
	StateReady IndexState = "ready"
)

// Status is a snapshot of the orchestrator.
type Status struct {
	State        IndexState `json:"state"`
	DocumentID   string     `json:"document_id,omitempty"`
	Source       string     `json:"source,omitempty"`
	Chunks       int        `json:"chunks"`
	Dimensions   int        `json:"dimensions"`
	TopK         int        `json:"top_k"`
	ChunkSize    int        `json:"chunk_size"`
	ChunkOverlap int        `json:"chunk_overlap"`
	IngestedAt   time.Time  `json:"ingested_at,omitempty"`
}

// HistoryCounts summarizes the history store.
type HistoryCounts struct {
	Ingestions    int64 `json:"ingestions"`
	Questions     int64 `json:"questions"`
	DatabaseBytes int64 `json:"database_bytes"`
}

// StatusReport is the status returned by the API and printed by the CLI.
type StatusReport struct {
	Index   Status         `json:"index"`
	History *HistoryCounts `json:"history,omitempty"`
}
