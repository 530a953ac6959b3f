// Package server exposes the retrieval pipeline over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
	"github.com/AhmedEldessouki1982/cdns/internal/types"
	"github.com/AhmedEldessouki1982/cdns/pkg/extract"
	"github.com/AhmedEldessouki1982/cdns/pkg/rag"
)

// Engine is the slice of the pipeline the HTTP layer needs.
type Engine interface {
	IngestField(ctx context.Context, ref rag.FieldRef, content string, tags []string) (int, error)
	Retrieve(ctx context.Context, question string, k int, tags []string) ([]models.RetrievedChunk, error)
	Answer(ctx context.Context, question string) (models.Answer, error)
	Backfill(ctx context.Context, source rag.RecordSource, opts rag.BackfillOptions) (rag.BackfillStats, error)
}

type Config struct {
	Addr string
	// DocsDir receives uploaded documents before extraction.
	DocsDir string
	// BackfillField and BackfillBatchSize configure the backfill walk
	// triggered over HTTP.
	BackfillField     string
	BackfillBatchSize int
}

type Server struct {
	config  Config
	engine  Engine
	records rag.RecordSource
	logger  zerolog.Logger
	router  chi.Router
}

// New wires the routes. records may be nil when no record database is
// configured; the backfill route then responds 400.
func New(config Config, engine Engine, records rag.RecordSource, logger zerolog.Logger) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.DocsDir == "" {
		config.DocsDir = "docs"
	}

	s := &Server{
		config:  config,
		engine:  engine,
		records: records,
		logger:  logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/rag", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Get("/search", s.handleSearch)
		r.Get("/answer", s.handleAnswer)
		r.Post("/backfill", s.handleBackfill)
	})
	r.Post("/documents", s.handleUploadDocument)
	r.Get("/health", s.handleHealth)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.config.Addr).Msg("listening")
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	return srv.ListenAndServe()
}

type ingestRequest struct {
	SourceTable string   `json:"source_table"`
	SourcePK    string   `json:"source_pk"`
	Field       string   `json:"field"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.Validationf("invalid request body: %v", err))
		return
	}

	ref := rag.FieldRef{SourceTable: req.SourceTable, SourcePK: req.SourcePK, Field: req.Field}
	n, err := s.engine.IngestField(r.Context(), ref, req.Content, req.Tags)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"chunks": n})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, types.Validationf("k must be an integer, got %q", raw))
			return
		}
		k = parsed
	}

	results, err := s.engine.Retrieve(r.Context(), question, k, queryTags(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []models.RetrievedChunk{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	answer, err := s.engine.Answer(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		s.writeError(w, types.Validationf("no record database configured"))
		return
	}

	stats, err := s.engine.Backfill(r.Context(), s.records, rag.BackfillOptions{
		Field:     s.config.BackfillField,
		BatchSize: s.config.BackfillBatchSize,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{
		"records": stats.Records,
		"chunks":  stats.Chunks,
		"failed":  stats.Failed,
	})
}

// handleUploadDocument accepts a multipart PDF upload, stores it in the
// docs directory and ingests each page as its own field keyed by page
// number.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, types.Validationf("multipart field %q is required: %v", "file", err))
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.config.DocsDir, 0o755); err != nil {
		s.writeError(w, err)
		return
	}

	docID := uuid.NewString()
	path := filepath.Join(s.config.DocsDir, docID+filepath.Ext(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		s.writeError(w, err)
		return
	}
	if err := dst.Close(); err != nil {
		s.writeError(w, err)
		return
	}

	pages, err := extract.PDFPages(path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	total := 0
	for _, page := range pages {
		if page.Text == "" {
			continue
		}
		ref := rag.FieldRef{
			SourceTable: "documents",
			SourcePK:    docID,
			Field:       fmt.Sprintf("page_%d", page.Number),
		}
		n, err := s.engine.IngestField(r.Context(), ref, page.Text, queryTags(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		total += n
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"document_id": docID,
		"pages":       len(pages),
		"chunks":      total,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryTags(r *http.Request) []string {
	raw := r.URL.Query().Get("tags")
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var verr *types.ValidationError
	var perr *types.ProviderError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &perr):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
