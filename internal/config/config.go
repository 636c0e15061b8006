// Package config provides configuration loading and structs for kotae.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/rag"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Storage   StorageConfig   `yaml:"storage"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// DocumentRoots are the directories the server may read when a client ingests by
	// path. Empty disables ingest by path.
	DocumentRoots []string `yaml:"document_roots"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig holds the generation endpoint settings.
type LLMConfig struct {
	EndpointURL string         `yaml:"endpoint_url"`
	APIKey      string         `yaml:"api_key"`
	Timeout     time.Duration  `yaml:"timeout"`
	Options     map[string]any `yaml:"options"`
}

// Embedding providers.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// EmbeddingConfig selects and configures the embedding model.
type EmbeddingConfig struct {
	Provider    string       `yaml:"provider"`
	ModelPath   string       `yaml:"model_path"`
	LibraryPath string       `yaml:"library_path"`
	Dimensions  int          `yaml:"dimensions"`
	MaxTokens   int          `yaml:"max_tokens"`
	BatchSize   int          `yaml:"batch_size"`
	Fallback    bool         `yaml:"fallback"`
	OpenAI      OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// RAGConfig holds chunking, retrieval, and prompt settings.
type RAGConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   *int   `yaml:"chunk_overlap"`
	TopK           int    `yaml:"top_k"`
	PromptTemplate string `yaml:"prompt_template"`
}

// Overlap returns the configured chunk overlap.
func (r RAGConfig) Overlap() int {
	if r.ChunkOverlap == nil {
		return 0
	}
	return *r.ChunkOverlap
}

// StorageConfig holds the history database location.
type StorageConfig struct {
	HistoryPath string `yaml:"history_path"`
	Disabled    bool   `yaml:"disabled"`
}

// WatchConfig holds the document to load at startup and whether to reload it on change.
type WatchConfig struct {
	Document string        `yaml:"document"`
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.HistoryPath = expandPath(cfg.Storage.HistoryPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Embedding.LibraryPath != "" {
		cfg.Embedding.LibraryPath = expandPath(cfg.Embedding.LibraryPath, configDir)
	}
	for i, root := range cfg.Server.DocumentRoots {
		cfg.Server.DocumentRoots[i] = expandPath(root, configDir)
	}
	if cfg.Watch.Document != "" {
		cfg.Watch.Document = expandPath(cfg.Watch.Document, configDir)
	}

	return &cfg, nil
}

// LoadOrDefault loads path, or returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// RAGConfig builds the orchestrator configuration.
func (c *Config) RAGConfig() rag.Config {
	return rag.Config{
		Endpoint:       c.LLM.EndpointURL,
		APIKey:         c.LLM.APIKey,
		ChunkSize:      c.RAG.ChunkSize,
		ChunkOverlap:   c.RAG.Overlap(),
		TopK:           c.RAG.TopK,
		Timeout:        c.LLM.Timeout,
		RequestOptions: c.LLM.Options,
		PromptTemplate: c.RAG.PromptTemplate,
		EmbedBatchSize: c.Embedding.BatchSize,
	}
}

// expandPath converts a path to absolute. "~/" is the home directory; other relative
// paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
