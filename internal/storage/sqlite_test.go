package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Ingestions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &models.IngestionRecord{DocumentID: "doc1", Source: "a.txt", Chunks: 3, Dimensions: 384}
	if err := store.RecordIngestion(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt should be filled in")
	}

	n, err := store.CountIngestions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountIngestions=%d", n)
	}
	list, err := store.ListIngestions(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].DocumentID != "doc1" || list[0].Chunks != 3 || list[0].Source != "a.txt" {
		t.Errorf("got %+v", list)
	}
}

func TestSQLiteStorage_QuestionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, q := range []string{"first?", "second?", "third?"} {
		rec := &models.QuestionRecord{
			DocumentID: "doc1",
			Question:   q,
			Answer:     "a" + q,
			Status:     "answered",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.RecordQuestion(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.RecordQuestion(ctx, &models.QuestionRecord{Question: "early?", Status: "not_ready", CreatedAt: base.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	list, err := store.ListQuestions(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Question != "third?" || list[1].Question != "second?" {
		t.Errorf("unexpected order: %+v", list)
	}
	list, _ = store.ListQuestions(ctx, 3, 10)
	if len(list) != 1 || list[0].Question != "early?" || list[0].DocumentID != "" {
		t.Errorf("offset page: %+v", list)
	}
	n, _ := store.CountQuestions(ctx)
	if n != 4 {
		t.Errorf("CountQuestions=%d", n)
	}
}

func TestSQLiteStorage_RecordsFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := &models.QuestionRecord{Question: "q", Status: "failed", Error: "generation failed: status 500: server error"}
	if err := store.RecordQuestion(ctx, rec); err != nil {
		t.Fatal(err)
	}
	list, _ := store.ListQuestions(ctx, 0, 1)
	if list[0].Error != rec.Error || list[0].Status != "failed" {
		t.Errorf("got %+v", list[0])
	}
}

func TestSQLiteStorage_DuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := &models.QuestionRecord{ID: "same", Question: "q", Status: "answered"}
	if err := store.RecordQuestion(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordQuestion(ctx, &models.QuestionRecord{ID: "same", Question: "q2", Status: "answered"}); err == nil {
		t.Error("expected primary key violation")
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.RecordIngestion(context.Background(), &models.IngestionRecord{DocumentID: "d", Chunks: 1, Dimensions: 2})
	_ = store.Close()

	store, err = NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	n, _ := store.CountIngestions(context.Background())
	if n != 1 {
		t.Errorf("history lost across reopen: %d", n)
	}
	if store.Path() != path {
		t.Errorf("Path=%q", store.Path())
	}
}
