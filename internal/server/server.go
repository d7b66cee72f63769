// Package server exposes the HTTP trigger for the auto-reply loop.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/cors"

	"github.com/joshsymonds/vacationd/internal/responder"
)

// Controller is the lifecycle surface the handlers drive.
type Controller interface {
	Start(ctx context.Context) (responder.Status, error)
	Stop(ctx context.Context) (responder.Status, error)
	Status() responder.Status
}

type Server struct {
	ctrl Controller
	log  *slog.Logger
}

// NewServer wires the routes. CORS is only enabled when origins are given.
func NewServer(ctrl Controller, logger *slog.Logger, corsOrigins []string) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{ctrl: ctrl, log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withLogging(logger))
	r.Use(middleware.Recoverer)
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler)
	}

	r.Get("/", s.handleStart)
	r.Get("/status", s.handleStatus)
	r.Post("/stop", s.handleStop)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// GET / sets up on first use and starts the loop.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Start(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "start auto-reply",
			"error", err, "request_id", middleware.GetReqID(r.Context()))
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Stop(r.Context())
	switch {
	case errors.Is(err, responder.ErrNotStarted), errors.Is(err, responder.ErrNotRunning):
		writeJSON(w, http.StatusConflict, st)
	case err != nil:
		s.log.ErrorContext(r.Context(), "stop auto-reply",
			"error", err, "request_id", middleware.GetReqID(r.Context()))
		internalError(w)
	default:
		writeJSON(w, http.StatusOK, st)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}
