package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	maxBodyBytes        = 32 << 20
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc := models.Document{ID: input.ID, Source: input.Source, Content: input.Content}
	if input.Path != "" && input.Content == "" {
		if s.loader == nil || len(s.config.DocumentRoots) == 0 {
			s.respondError(w, http.StatusForbidden, "loading by path is not enabled")
			return
		}
		if !withinRoots(input.Path, s.config.DocumentRoots) {
			s.logger.Warn("ingest path outside document roots", zap.String("path", input.Path))
			s.respondError(w, http.StatusForbidden, "path is outside the allowed document roots")
			return
		}
		loaded, err := s.loader.Load(input.Path)
		if err != nil {
			s.logger.Debug("load document failed", zap.String("path", input.Path), zap.Error(err))
			s.respondError(w, loadErrorStatus(err), err.Error())
			return
		}
		doc = loaded
		if input.ID != "" {
			doc.ID = input.ID
		}
	}
	s.logger.Debug("ingest request", zap.String("id", doc.ID), zap.String("source", doc.Source), zap.Int("bytes", len(doc.Content)))
	result, err := s.assistant.Ingest(r.Context(), doc)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question cannot be empty")
		return
	}
	s.logger.Debug("ask request", zap.Int("question_len", len(req.Question)))
	answer, err := s.assistant.Ask(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := models.StatusReport{Index: s.assistant.Status()}
	if s.history != nil {
		counts, err := HistoryCounts(r.Context(), s.history)
		if err != nil {
			s.logger.Error("status: count history failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		report.History = counts
	}
	s.respondJSON(w, http.StatusOK, report)
}

// HistoryCounts collects record counts and, when h exposes its path, the database size.
func HistoryCounts(ctx context.Context, h History) (*models.HistoryCounts, error) {
	ingestions, err := h.CountIngestions(ctx)
	if err != nil {
		return nil, err
	}
	questions, err := h.CountQuestions(ctx)
	if err != nil {
		return nil, err
	}
	counts := &models.HistoryCounts{Ingestions: ingestions, Questions: questions}
	if p, ok := h.(interface{ Path() string }); ok {
		if size, err := storage.DatabaseSizeBytes(p.Path()); err == nil {
			counts.DatabaseBytes = size
		}
	}
	return counts, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	questions, err := s.history.ListQuestions(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if questions == nil {
		questions = []*models.QuestionRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// withinRoots reports whether path, after resolving symlinks, lies inside one of roots.
func withinRoots(path string, roots []string) bool {
	p := resolvePath(path)
	if p == "" {
		return false
	}
	for _, root := range roots {
		r := resolvePath(root)
		if r == "" {
			continue
		}
		rel, err := filepath.Rel(r, p)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolvePath returns the absolute, symlink-free form of path. For a missing file
// only its directory is resolved.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}
	return filepath.Clean(abs)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var (
		ce *models.ConfigurationError
		ee *models.EmbeddingUnavailableError
		ge *models.GenerationError
	)
	switch {
	case errors.As(err, &ce):
		return http.StatusBadRequest
	case errors.As(err, &ee):
		return http.StatusServiceUnavailable
	case errors.As(err, &ge):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func loadErrorStatus(err error) int {
	var ue *extract.UnsupportedFormatError
	if errors.As(err, &ue) {
		return http.StatusUnsupportedMediaType
	}
	return http.StatusBadRequest
}

// respondFailure writes err with its mapped status. Generation errors carry the
// upstream status and body.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	var ge *models.GenerationError
	if errors.As(err, &ge) {
		s.respondJSON(w, status, map[string]interface{}{
			"error":           err.Error(),
			"upstream_status": ge.StatusCode,
			"upstream_body":   ge.Body,
		})
		return
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
