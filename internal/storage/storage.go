// Package storage keeps an audit history of ingestions and questions.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// HistoryStore records what was ingested and asked. It does not persist the vector index.
type HistoryStore interface {
	RecordIngestion(ctx context.Context, rec *models.IngestionRecord) error
	RecordQuestion(ctx context.Context, rec *models.QuestionRecord) error

	ListQuestions(ctx context.Context, offset, limit int) ([]*models.QuestionRecord, error)
	ListIngestions(ctx context.Context, offset, limit int) ([]*models.IngestionRecord, error)

	CountIngestions(ctx context.Context) (int64, error)
	CountQuestions(ctx context.Context) (int64, error)

	Close() error
}
