// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// Assistant is the question-answering backend served over HTTP.
type Assistant interface {
	Ingest(ctx context.Context, doc models.Document) (*models.IngestResult, error)
	Ask(ctx context.Context, question string) (models.Answer, error)
	Status() models.Status
}

// History exposes recorded questions and counts. It may be nil.
type History interface {
	ListQuestions(ctx context.Context, offset, limit int) ([]*models.QuestionRecord, error)
	CountIngestions(ctx context.Context) (int64, error)
	CountQuestions(ctx context.Context) (int64, error)
}

// DocumentLoader reads a document from a local path. It may be nil, in which case
// ingest requests must carry content.
type DocumentLoader interface {
	Load(path string) (models.Document, error)
}

// Server is the HTTP server for the kotae API.
type Server struct {
	assistant Assistant
	history   History
	loader    DocumentLoader
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	assistant Assistant,
	history History,
	loader DocumentLoader,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		assistant: assistant,
		history:   history,
		loader:    loader,
		config:    cfg,
		logger:    logger,
	}
}

// Router returns the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents", s.handleIngest)
		r.Post("/ask", s.handleAsk)
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
