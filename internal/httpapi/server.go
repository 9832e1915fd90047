package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orufy/signbridge/internal/captions"
	"github.com/orufy/signbridge/internal/config"
	"github.com/orufy/signbridge/internal/corrections"
	"github.com/orufy/signbridge/internal/observability"
	"github.com/orufy/signbridge/internal/session"
)

// Capture is the read-only view of the running pipeline exposed over HTTP.
type Capture interface {
	Session() session.Snapshot
	Captions() captions.Snapshot
}

type Server struct {
	cfg     config.Config
	capture Capture
	store   corrections.Store
	metrics *observability.Metrics
}

func New(cfg config.Config, capture Capture, store corrections.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		capture: capture,
		store:   store,
		metrics: metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/session", s.handleGetSession)
	r.Get("/v1/captions", s.handleGetCaptions)
	r.Post("/v1/corrections", s.handleCreateCorrection)
	r.Get("/v1/corrections", s.handleListCorrections)
	r.Post("/v1/corrections/processed", s.handleMarkProcessed)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := session.StateDisconnected
	if s.capture != nil {
		state = s.capture.Session().State
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"connection_state": state,
		"corrections":      s.storeMode(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	if s.capture == nil {
		respondError(w, http.StatusServiceUnavailable, "no_session", "capture pipeline not running")
		return
	}
	respondJSON(w, http.StatusOK, s.capture.Session())
}

func (s *Server) handleGetCaptions(w http.ResponseWriter, _ *http.Request) {
	if s.capture == nil {
		respondError(w, http.StatusServiceUnavailable, "no_session", "capture pipeline not running")
		return
	}
	respondJSON(w, http.StatusOK, s.capture.Captions())
}

type correctionRequest struct {
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	OriginalText  string `json:"original_text"`
	CorrectedText string `json:"corrected_text"`
}

func (s *Server) handleCreateCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.OriginalText) == "" || strings.TrimSpace(req.CorrectedText) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "original_text and corrected_text are required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" && s.capture != nil {
		req.SessionID = s.capture.Session().SessionID
	}
	if strings.TrimSpace(req.UserID) == "" && s.capture != nil {
		req.UserID = s.capture.Session().UserID
	}

	c := corrections.Correction{
		SessionID:     req.SessionID,
		UserID:        req.UserID,
		OriginalText:  req.OriginalText,
		CorrectedText: req.CorrectedText,
	}
	if err := s.store.Save(r.Context(), c); err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "accepted"})
}

func (s *Server) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	pending, err := s.store.Unprocessed(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	if pending == nil {
		pending = []corrections.Correction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"corrections": pending})
}

func (s *Server) handleMarkProcessed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "ids are required")
		return
	}
	if err := s.store.MarkProcessed(r.Context(), req.IDs); err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) storeMode() string {
	switch s.store.(type) {
	case nil:
		return "disabled"
	case *corrections.InMemoryStore:
		return "in-memory"
	default:
		return "postgres"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
