package rag

import (
	"net/http"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a logger for lifecycle and debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithGenerator replaces the HTTP generation client.
func WithGenerator(g llm.Generator) Option {
	return func(o *Orchestrator) { o.generator = g }
}

// WithIndex replaces the default in-memory vector index.
func WithIndex(idx vector.VectorIndex) Option {
	return func(o *Orchestrator) { o.index = idx }
}

// WithRecorder records ingestions and questions, for example to the history store.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithHTTPClient sets the *http.Client used by the default generation client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.httpClient = c }
}
