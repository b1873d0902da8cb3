package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/agentdash/agentdash/internal/jobmanager"
	"github.com/agentdash/agentdash/internal/sessionlog"
)

type server struct {
	manager    *jobmanager.Manager
	sessions   *sessionlog.Reader
	logger     *slog.Logger
	httpServer *http.Server
}

func newServer(
	manager *jobmanager.Manager,
	sessions *sessionlog.Reader,
	logger *slog.Logger,
) *server {
	return &server{manager: manager, sessions: sessions, logger: logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)

	return mux
}

func (s *server) start(listener net.Listener) error {
	s.httpServer = &http.Server{Handler: s.routes()}

	if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *server) shutdown(ctx context.Context) {
	if s.httpServer == nil {
		return
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown", "err", err)
	}
}

type submitJobRequest struct {
	AgentWorkerTask json.RawMessage `json:"agent_worker_task"`
	Config          json.RawMessage `json:"config"`
	Workdir         string          `json:"workdir"`
}

func (s *server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := s.manager.Submit(req.AgentWorkerTask, req.Config, req.Workdir)
	if err != nil {
		s.mapError(w, "submit job", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

func (s *server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	record, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.mapError(w, "get job", err)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	record, err := s.manager.Cancel(r.PathValue("id"))
	if err != nil {
		s.mapError(w, "cancel job", err)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	records, err := s.sessions.List()
	if err != nil {
		s.mapError(w, "list sessions", err)
		return
	}

	s.writeJSON(w, http.StatusOK, records)
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	record, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.mapError(w, "get session", err)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

// mapError translates domain errors to HTTP status codes.
func (s *server) mapError(w http.ResponseWriter, logMsg string, err error) {
	switch {
	case errors.As(err, new(jobmanager.ValidationError)):
		s.logger.Warn(logMsg, "err", err)
		s.writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, jobmanager.ErrJobNotFound),
		errors.Is(err, sessionlog.ErrSessionNotFound),
		errors.Is(err, sessionlog.ErrMissingMetadata):
		s.logger.Warn(logMsg, "err", err)
		s.writeError(w, http.StatusNotFound, err.Error())

	default:
		s.logger.Error(logMsg, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", "err", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
