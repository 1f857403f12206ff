// Package collector receives engagement snapshots, stores them in SQLite and
// scores finished sessions.
package collector

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/svchittilla/gamemycourse/internal/database"
	"github.com/svchittilla/gamemycourse/internal/models"
	"github.com/svchittilla/gamemycourse/internal/server"
)

const (
	StatusEnded           = "ended"
	StatusAlreadyIngested = "already_ingested"
	StatusRecorded        = "recorded"
)

type Server struct {
	db      *database.Database
	address string
	logger  *slog.Logger
}

func NewServer(db *database.Database, address string) *Server {
	return &Server{
		db:      db,
		address: address,
		logger:  slog.Default(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeSnapshot(w http.ResponseWriter, request *http.Request) (models.Snapshot, bool) {
	var snapshot models.Snapshot
	if err := json.NewDecoder(request.Body).Decode(&snapshot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return snapshot, false
	}
	if err := s.db.ValidateSnapshot(snapshot); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return snapshot, false
	}
	return snapshot, true
}

func (s *Server) handleIngest(w http.ResponseWriter, request *http.Request) {
	snapshot, ok := s.decodeSnapshot(w, request)
	if !ok {
		return
	}

	session, created, err := s.db.EndSession(snapshot, Score(snapshot))
	if err != nil {
		s.logger.Error("failed to store final snapshot", "session_id", snapshot.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store session")
		return
	}

	status := StatusEnded
	if !created {
		status = StatusAlreadyIngested
	}
	s.logger.Info("session ingested", "session_id", session.SessionID, "status", status, "content_type", session.ContentType)
	writeJSON(w, http.StatusOK, models.IngestResponse{
		SessionID:           session.SessionID,
		PredictedEngagement: session.PredictedEngagement,
		Status:              status,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, request *http.Request) {
	snapshot, ok := s.decodeSnapshot(w, request)
	if !ok {
		return
	}
	if err := s.db.RecordSnapshot(snapshot); err != nil {
		s.logger.Error("failed to store snapshot", "session_id", snapshot.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store snapshot")
		return
	}
	writeJSON(w, http.StatusOK, models.IngestResponse{SessionID: snapshot.SessionID, Status: StatusRecorded})
}

func (s *Server) handleSession(w http.ResponseWriter, request *http.Request) {
	session, found, err := s.db.FindSession(request.PathValue("id"))
	if err != nil {
		s.logger.Error("failed to load session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /events/ingest", s.handleIngest)
	mux.HandleFunc("POST /events/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /sessions/{id}", s.handleSession)
	return mux
}

func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) Start(ctx context.Context) error {
	return server.ListenAndServe(ctx, "collector", s.address, s.setupRoutes())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
