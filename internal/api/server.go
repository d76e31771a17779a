package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/VaultSign/internal/config"
	"github.com/dharsanguruparan/VaultSign/internal/lifecycle"
)

// Server exposes the setup, upload, share and sign endpoints plus the read
// views over a lifecycle.Controller.
type Server struct {
	cfg    *config.Config
	ctl    *lifecycle.Controller
	log    logrus.FieldLogger
	blobs  http.Handler
	server *http.Server
	once   sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, ctl *lifecycle.Controller, log logrus.FieldLogger) *Server {
	return &Server{cfg: cfg, ctl: ctl, log: log}
}

// MountBlobs serves h under /blobs/. Used by the memory blob store so its
// public URLs resolve.
func (s *Server) MountBlobs(h http.Handler) {
	s.blobs = h
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/setup-db", s.handleSetup)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/share", s.handleShare)
	mux.HandleFunc("/api/documents", s.handleDocuments)
	mux.HandleFunc("/api/documents/", s.handleDocumentRoute)
	mux.HandleFunc("/api/sign/", s.handleSignRoute)
	if s.blobs != nil {
		mux.Handle("/blobs/", http.StripPrefix("/blobs", s.blobs))
	}
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.WithField("address", s.cfg.Address).Info("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if err := s.ctl.Setup(r.Context()); err != nil {
		s.fail(w, r, err, "Failed to set up database")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Database and storage buckets set up successfully",
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxPDFSize+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer part.Close()
	doc, err := s.ctl.Ingest(r.Context(), lifecycle.Upload{
		Name:        part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	})
	if err != nil {
		s.fail(w, r, err, "Failed to upload document")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"path":     doc.FilePath,
		"document": doc,
	})
}

type shareBody struct {
	Email        string `json:"email"`
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body shareBody
	if err := decodeJSON(w, r, &body, maxJSONBody); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Email) == "" || strings.TrimSpace(body.DocumentID) == "" {
		respondError(w, http.StatusBadRequest, "Email and document ID are required")
		return
	}
	_, err := s.ctl.Share(r.Context(), lifecycle.ShareRequest{
		DocumentID:   body.DocumentID,
		Email:        body.Email,
		DocumentName: body.DocumentName,
	})
	if err != nil {
		s.fail(w, r, err, "Failed to share document")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	entries, err := s.ctl.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to load documents")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDocumentRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		doc, err := s.ctl.Get(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "Failed to load document")
			return
		}
		respondJSON(w, http.StatusOK, doc)
		return
	}
	if parts[1] != "view" {
		http.NotFound(w, r)
		return
	}
	view, err := s.ctl.View(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Failed to load document")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type signBody struct {
	Signature string `json:"signature"`
}

func (s *Server) handleSignRoute(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sign/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		page, err := s.ctl.SigningPage(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "Failed to load document")
			return
		}
		respondJSON(w, http.StatusOK, page)
	case http.MethodPost:
		s.handleSign(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request, id string) {
	// Base64 inflates by 4/3; twice the image limit leaves room for the
	// JSON envelope.
	limit := s.cfg.MaxSigSize * 2
	req := lifecycle.SignRequest{DocumentID: id}
	switch contentType := r.Header.Get("Content-Type"); {
	case strings.HasPrefix(contentType, "image/"):
		data, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read signature")
			return
		}
		req.Image = data
	default:
		var body signBody
		if err := decodeJSON(w, r, &body, limit); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.DataURL = body.Signature
	}
	doc, err := s.ctl.Sign(r.Context(), req)
	if err != nil {
		s.fail(w, r, err, "Failed to sign document")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "document": doc})
}

// fail maps lifecycle errors onto status codes. Dependency failures are
// logged in full and answered with the generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, generic string) {
	var depErr *lifecycle.DependencyError
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrNotFound):
		respondError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, lifecycle.ErrAlreadySigned):
		respondError(w, http.StatusConflict, "Document already signed")
	case errors.Is(err, lifecycle.ErrNotSigned):
		respondError(w, http.StatusConflict, "Document not signed")
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "Document status does not allow this action")
	case errors.As(err, &depErr):
		s.log.WithError(err).WithField("path", r.URL.Path).Error(generic)
		respondError(w, http.StatusInternalServerError, generic)
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("unexpected error")
		respondError(w, http.StatusInternalServerError, generic)
	}
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("encode response")
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}
