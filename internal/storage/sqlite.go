package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements HistoryStore using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingestions (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		source TEXT,
		chunks INTEGER NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ingestions_created_at ON ingestions(created_at);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		document_id TEXT,
		question TEXT NOT NULL,
		answer TEXT,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at);
	CREATE INDEX IF NOT EXISTS idx_questions_document_id ON questions(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// RecordIngestion inserts an ingestion record. Empty ID and zero CreatedAt are filled in.
func (s *SQLiteStorage) RecordIngestion(ctx context.Context, rec *models.IngestionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestions (id, document_id, source, chunks, dimensions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Source, rec.Chunks, rec.Dimensions, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion: %w", err)
	}
	return nil
}

// RecordQuestion inserts a question record. Empty ID and zero CreatedAt are filled in.
func (s *SQLiteStorage) RecordQuestion(ctx context.Context, rec *models.QuestionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (id, document_id, question, answer, status, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Question, rec.Answer, rec.Status, rec.Error, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// ListQuestions returns questions, newest first.
func (s *SQLiteStorage) ListQuestions(ctx context.Context, offset, limit int) ([]*models.QuestionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, question, answer, status, error, duration_ms, created_at
		 FROM questions ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.QuestionRecord
	for rows.Next() {
		var rec models.QuestionRecord
		var docID, answer, errText sql.NullString
		if err := rows.Scan(&rec.ID, &docID, &rec.Question, &answer, &rec.Status, &errText, &rec.DurationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.DocumentID = docID.String
		rec.Answer = answer.String
		rec.Error = errText.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// ListIngestions returns ingestions, newest first.
func (s *SQLiteStorage) ListIngestions(ctx context.Context, offset, limit int) ([]*models.IngestionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, source, chunks, dimensions, created_at
		 FROM ingestions ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.IngestionRecord
	for rows.Next() {
		var rec models.IngestionRecord
		var source sql.NullString
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &source, &rec.Chunks, &rec.Dimensions, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Source = source.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// CountIngestions returns the number of recorded ingestions.
func (s *SQLiteStorage) CountIngestions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingestions`).Scan(&n)
	return n, err
}

// CountQuestions returns the number of recorded questions.
func (s *SQLiteStorage) CountQuestions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
