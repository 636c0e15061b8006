package models

import "time"

// IngestionRecord is an audit entry for one successful ingestion.
type IngestionRecord struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Source     string    `json:"source" db:"source"`
	Chunks     int       `json:"chunks" db:"chunks"`
	Dimensions int       `json:"dimensions" db:"dimensions"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// QuestionRecord is an audit entry for one question.
type QuestionRecord struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Question   string    `json:"question" db:"question"`
	Answer     string    `json:"answer" db:"answer"`
	Status     string    `json:"status" db:"status"`
	Error      string    `json:"error,omitempty" db:"error"`
	DurationMs int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
