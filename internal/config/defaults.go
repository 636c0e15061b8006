package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath returns ~/.config/kotae/config.yaml, or config.yaml when the
// home directory is unknown.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "kotae", "config.yaml")
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "kotae")
	}
	return "."
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 180 * time.Second
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
		cfg.Embedding.Fallback = true
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = filepath.Join(defaultDataDir(), "models", "sentence-embedding.onnx")
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 384
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.OpenAI.Model == "" {
		cfg.Embedding.OpenAI.Model = "text-embedding-3-small"
	}
	// The default overlap only pairs with the default size; an explicit size without
	// an overlap means no overlap.
	if cfg.RAG.ChunkOverlap == nil {
		overlap := 0
		if cfg.RAG.ChunkSize == 0 {
			overlap = 200
		}
		cfg.RAG.ChunkOverlap = &overlap
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 4
	}
	if cfg.Storage.HistoryPath == "" {
		cfg.Storage.HistoryPath = filepath.Join(defaultDataDir(), "history.db")
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
