// Package rag ties chunking, embedding, retrieval, and generation together.
package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// Recorder receives an audit entry for every ingestion and question.
type Recorder interface {
	RecordIngestion(ctx context.Context, rec *models.IngestionRecord) error
	RecordQuestion(ctx context.Context, rec *models.QuestionRecord) error
}

// Orchestrator answers questions about the most recently ingested document.
// It starts Empty and becomes Ready after the first successful Ingest.
type Orchestrator struct {
	cfg        Config
	chunker    *chunker.Chunker
	provider   *embedding.Provider
	generator  llm.Generator
	prompt     *template.Template
	recorder   Recorder
	httpClient *http.Client
	logger     *zap.Logger

	// mu guards index contents and the fields below it.
	mu         sync.RWMutex
	index      vector.VectorIndex
	state      models.IndexState
	doc        models.Document
	chunks     int
	ingestedAt time.Time
}

// New validates cfg and returns an Empty orchestrator that embeds with emb.
func New(cfg Config, emb embedding.Embedder, opts ...Option) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, models.NewConfigurationError("embedder required")
	}
	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	tmpl, err := parsePrompt(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:     cfg,
		chunker: ch,
		prompt:  tmpl,
		logger:  zap.NewNop(),
		state:   models.StateEmpty,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.provider = embedding.NewProvider(emb,
		embedding.WithBatchSize(cfg.EmbedBatchSize),
		embedding.WithLogger(o.logger))

	if o.index == nil {
		idx, err := vector.NewMemoryIndex(0)
		if err != nil {
			return nil, err
		}
		o.index = idx
	}
	if o.generator == nil {
		llmOpts := []llm.Option{
			llm.WithOptions(cfg.RequestOptions),
			llm.WithLogger(o.logger),
		}
		if o.httpClient != nil {
			llmOpts = append(llmOpts, llm.WithHTTPClient(o.httpClient))
		} else {
			llmOpts = append(llmOpts, llm.WithTimeout(cfg.Timeout))
		}
		gen, err := llm.NewHTTPClient(cfg.Endpoint, cfg.APIKey, llmOpts...)
		if err != nil {
			return nil, err
		}
		o.generator = gen
	}
	return o, nil
}

// Ingest chunks, embeds, and indexes doc, replacing any previously ingested document.
// On failure the orchestrator keeps its previous state and index.
func (o *Orchestrator) Ingest(ctx context.Context, doc models.Document) (*models.IngestResult, error) {
	start := time.Now()
	if doc.ID == "" {
		doc.ID = fileid.DocID(doc.Source, doc.Content)
	}

	chunks := o.chunker.Split(doc.ID, doc.Content)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := o.provider.Embed(ctx, texts)
	if err != nil {
		o.logger.Warn("ingest failed", zap.String("document_id", doc.ID), zap.Error(err))
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	entries := make([]models.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = models.IndexEntry{Chunk: chunks[i], Vector: vecs[i]}
	}

	o.mu.Lock()
	if err := o.index.Build(ctx, entries); err != nil {
		o.mu.Unlock()
		o.logger.Warn("ingest failed", zap.String("document_id", doc.ID), zap.Error(err))
		return nil, fmt.Errorf("build index: %w", err)
	}
	o.state = models.StateReady
	o.doc = models.Document{ID: doc.ID, Source: doc.Source}
	o.chunks = len(chunks)
	o.ingestedAt = time.Now()
	dims := o.index.Dimensions()
	o.mu.Unlock()

	result := &models.IngestResult{
		DocumentID: doc.ID,
		Source:     doc.Source,
		Chunks:     len(chunks),
		Dimensions: dims,
		Duration:   time.Since(start),
	}
	o.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("source", doc.Source),
		zap.Int("chunks", result.Chunks),
		zap.Duration("elapsed", result.Duration))

	if o.recorder != nil {
		rec := &models.IngestionRecord{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Source:     doc.Source,
			Chunks:     result.Chunks,
			Dimensions: dims,
			CreatedAt:  time.Now().UTC(),
		}
		if err := o.recorder.RecordIngestion(ctx, rec); err != nil {
			o.logger.Warn("record ingestion", zap.Error(err))
		}
	}
	return result, nil
}

// Ask answers question from the ingested document. Before any ingestion it returns a
// NotReady answer and no error. Generation failures are returned as *models.GenerationError.
func (o *Orchestrator) Ask(ctx context.Context, question string) (models.Answer, error) {
	start := time.Now()
	o.mu.RLock()
	ready := o.state == models.StateReady
	o.mu.RUnlock()
	if !ready {
		answer := models.NotReadyAnswer()
		o.record(ctx, question, "", answer, nil, start)
		return answer, nil
	}

	answer, docID, err := o.answer(ctx, question)
	answer.Duration = time.Since(start)
	o.record(ctx, question, docID, answer, err, start)
	if err != nil {
		o.logger.Warn("ask failed", zap.Error(err))
		return models.Answer{}, err
	}
	o.logger.Debug("question answered",
		zap.String("document_id", docID),
		zap.Int("sources", len(answer.Sources)),
		zap.Duration("elapsed", answer.Duration))
	return answer, nil
}

func (o *Orchestrator) answer(ctx context.Context, question string) (models.Answer, string, error) {
	qvec, err := o.provider.EmbedOne(ctx, question)
	if err != nil {
		return models.Answer{}, "", fmt.Errorf("embed question: %w", err)
	}

	o.mu.RLock()
	hits, err := o.index.Search(ctx, qvec, o.cfg.TopK)
	docID := o.doc.ID
	o.mu.RUnlock()
	if err != nil {
		return models.Answer{}, docID, fmt.Errorf("search: %w", err)
	}

	prompt, err := BuildPrompt(o.prompt, hits, question)
	if err != nil {
		return models.Answer{}, docID, err
	}
	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		var ge *models.GenerationError
		if !errors.As(err, &ge) {
			err = &models.GenerationError{Err: err}
		}
		return models.Answer{}, docID, err
	}
	return models.Answer{Status: models.AnswerGenerated, Text: text, Sources: hits}, docID, nil
}

func (o *Orchestrator) record(ctx context.Context, question, docID string, answer models.Answer, askErr error, start time.Time) {
	if o.recorder == nil {
		return
	}
	rec := &models.QuestionRecord{
		ID:         uuid.New().String(),
		DocumentID: docID,
		Question:   question,
		Answer:     answer.Text,
		Status:     answer.Status.String(),
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if askErr != nil {
		rec.Status = "failed"
		rec.Answer = ""
		rec.Error = askErr.Error()
	}
	if err := o.recorder.RecordQuestion(ctx, rec); err != nil {
		o.logger.Warn("record question", zap.Error(err))
	}
}

// Status returns a snapshot of the orchestrator state.
func (o *Orchestrator) Status() models.Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return models.Status{
		State:        o.state,
		DocumentID:   o.doc.ID,
		Source:       o.doc.Source,
		Chunks:       o.chunks,
		Dimensions:   o.index.Dimensions(),
		TopK:         o.cfg.TopK,
		ChunkSize:    o.cfg.ChunkSize,
		ChunkOverlap: o.cfg.ChunkOverlap,
		IngestedAt:   o.ingestedAt,
	}
}

// Ready reports whether a document has been ingested.
func (o *Orchestrator) Ready() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state == models.StateReady
}

// Close releases the index. The embedder belongs to the caller.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = models.StateEmpty
	return o.index.Close()
}
