package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/svchittilla/gamemycourse/internal/models"
)

// Tracker is the part of tracker.Tracker the agent server drives.
type Tracker interface {
	Submit(ctx context.Context, events ...models.Event) error
	Snapshot(ctx context.Context) (models.Snapshot, bool, error)
	End(ctx context.Context) (models.Snapshot, bool, error)
	Reset(ctx context.Context) error
}

// Ingester submits a final snapshot to the collector.
type Ingester interface {
	Ingest(ctx context.Context, snapshot models.Snapshot) (models.IngestResponse, error)
}

type Server struct {
	tracker  Tracker
	ingester Ingester
	address  string
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(tracker Tracker, ingester Ingester, address string) *Server {
	return &Server{
		tracker:  tracker,
		ingester: ingester,
		address:  address,
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// The tracker runs inside a browser extension with its own origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// EndResponse is the reply to POST /session/end.
type EndResponse struct {
	Snapshot            models.Snapshot `json:"snapshot"`
	PredictedEngagement *float64        `json:"predicted_engagement"`
	Status              string          `json:"status,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleEvents(w http.ResponseWriter, request *http.Request) {
	var batch models.Batch
	if err := json.NewDecoder(request.Body).Decode(&batch); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(batch.Events) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.tracker.Submit(request.Context(), batch.Events...); err != nil {
		if errors.Is(err, models.ErrInvalidEvent) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("failed to submit events", "error", err)
		http.Error(w, "Failed to apply events", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamMessage accepts either a single event or a batch.
type streamMessage struct {
	models.Event
	Events []models.Event `json:"events"`
}

func (m streamMessage) events() []models.Event {
	if m.Events != nil {
		return m.Events
	}
	return []models.Event{m.Event}
}

func (s *Server) handleStream(w http.ResponseWriter, request *http.Request) {
	conn, err := s.upgrader.Upgrade(w, request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("event stream closed", "error", err)
			}
			return
		}

		var message streamMessage
		if err := json.Unmarshal(data, &message); err != nil {
			conn.WriteJSON(map[string]string{"error": "invalid JSON format"})
			continue
		}
		if err := s.tracker.Submit(ctx, message.events()...); err != nil {
			if !errors.Is(err, models.ErrInvalidEvent) {
				s.logger.Error("failed to submit streamed events", "error", err)
				return
			}
			conn.WriteJSON(map[string]string{"error": err.Error()})
		}
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, request *http.Request) {
	snapshot, ok, err := s.tracker.Snapshot(request.Context())
	if err != nil {
		http.Error(w, "Tracker unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleEnd(w http.ResponseWriter, request *http.Request) {
	snapshot, ok, err := s.tracker.End(request.Context())
	if err != nil {
		http.Error(w, "Tracker unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	response := EndResponse{Snapshot: snapshot}
	if s.ingester != nil {
		reply, err := s.ingester.Ingest(request.Context(), snapshot)
		if err != nil {
			s.logger.Warn("final snapshot delivery failed", "session_id", snapshot.SessionID, "error", err)
		} else {
			response.PredictedEngagement = reply.PredictedEngagement
			response.Status = reply.Status
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleReset(w http.ResponseWriter, request *http.Request) {
	if err := s.tracker.Reset(request.Context()); err != nil {
		http.Error(w, "Tracker unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /events", s.handleEvents)
	mux.HandleFunc("GET /events/stream", s.handleStream)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /session/end", s.handleEnd)
	mux.HandleFunc("POST /session/reset", s.handleReset)
	return cors(mux)
}

// Handler returns the routed agent API.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	return ListenAndServe(ctx, "agent", s.address, s.setupRoutes())
}

// cors allows the browser extension to call the local API.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ListenAndServe runs handler on address until ctx is done.
func ListenAndServe(ctx context.Context, name, address string, handler http.Handler) error {
	server := &http.Server{
		Addr:         address,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("listening", "component", name, "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server", "component", name)
	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownContext); err != nil {
		return err
	}
	slog.Info("server exited", "component", name)
	return nil
}
