package rag

import (
	"time"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/models"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 4
)

// Config is everything the orchestrator needs. It is built by the caller;
// the orchestrator never reads the environment.
type Config struct {
	Endpoint string
	APIKey   string

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	// Timeout bounds one generation request. Zero uses the client default.
	Timeout time.Duration
	// RequestOptions are extra fields sent with every generation request.
	RequestOptions map[string]any
	// PromptTemplate overrides DefaultPromptTemplate.
	PromptTemplate string
	// EmbedBatchSize is the number of chunks embedded per model call.
	EmbedBatchSize int
}

// withDefaults fills zero values. A zero ChunkSize selects both default size and overlap.
func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
		if c.ChunkOverlap == 0 {
			c.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	return c
}

// Validate reports the first configuration problem.
func (c Config) Validate() error {
	if c.Endpoint == "" || c.APIKey == "" {
		return models.NewConfigurationError("endpoint and key required")
	}
	if err := chunker.Validate(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.TopK < 0 {
		return models.NewConfigurationError("top_k must be positive, got %d", c.TopK)
	}
	if c.Timeout < 0 {
		return models.NewConfigurationError("timeout must not be negative")
	}
	return nil
}
