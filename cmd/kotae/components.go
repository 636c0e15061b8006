package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services for direct (serverless) use.
type Components struct {
	Embedder     embedding.Embedder
	History      *storage.SQLiteStorage
	Orchestrator *rag.Orchestrator
	Extractor    *extract.Extractor
}

// Close releases everything Components opened.
func (c *Components) Close() {
	if c.Orchestrator != nil {
		_ = c.Orchestrator.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.History != nil {
		_ = c.History.Close()
	}
}

// Load reads the file at path and ingests it.
func (c *Components) Load(ctx context.Context, path string) (*models.IngestResult, error) {
	doc, err := c.Extractor.Load(path)
	if err != nil {
		return nil, err
	}
	return c.Orchestrator.Ingest(ctx, doc)
}

// Ask answers a question from the loaded document.
func (c *Components) Ask(ctx context.Context, question string) (models.Answer, error) {
	return c.Orchestrator.Ask(ctx, question)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Extractor: extract.NewExtractor()}

	emb, err := newEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	c.Embedder = emb

	opts := []rag.Option{rag.WithLogger(logger)}
	if !cfg.Storage.Disabled {
		store, err := openHistory(cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.History = store
		opts = append(opts, rag.WithRecorder(store))
	}

	orch, err := rag.New(cfg.RAGConfig(), emb, opts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Orchestrator = orch
	return c, nil
}

func openHistory(cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history storage: %w", err)
	}
	return store, nil
}

// newEmbedder builds the configured embedding provider. With Fallback set, an ONNX model
// that cannot be loaded is replaced by the hash embedder.
func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderHash:
		return embedding.NewHashEmbedder(cfg.Dimensions), nil
	case config.ProviderOpenAI:
		emb, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
		if err != nil {
			return nil, &models.EmbeddingUnavailableError{Err: err}
		}
		return emb, nil
	case config.ProviderONNX:
		emb, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.LibraryPath, cfg.Dimensions, cfg.MaxTokens)
		if err == nil {
			return emb, nil
		}
		if !cfg.Fallback {
			return nil, &models.EmbeddingUnavailableError{Err: err}
		}
		logger.Warn("onnx embedder unavailable, using hash embedder",
			zap.String("model_path", cfg.ModelPath),
			zap.Error(err))
		return embedding.NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, models.NewConfigurationError("unknown embedding provider %q", cfg.Provider)
	}
}
