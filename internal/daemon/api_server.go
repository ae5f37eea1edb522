package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"thermolog/internal/config"
	"thermolog/internal/logging"
	"thermolog/internal/queue"
	"thermolog/internal/status"
	"thermolog/internal/syncer"
)

const maxRecordBody = 64 << 10

// entryService is the slice of Daemon the HTTP handlers use.
type entryService interface {
	Status(ctx context.Context) Status
	Record(ctx context.Context, record queue.LogRecord) (*queue.Entry, error)
	ListEntries(ctx context.Context, states ...queue.SyncState) ([]*queue.Entry, error)
	SyncNow(ctx context.Context) syncer.SweepResult
}

// EntryListResponse is returned by GET /api/entries.
type EntryListResponse struct {
	Entries []*queue.Entry `json:"entries"`
}

// EntryResponse is returned by POST /api/entries.
type EntryResponse struct {
	Entry *queue.Entry `json:"entry"`
}

// SyncResponse is returned by POST /api/sync.
type SyncResponse struct {
	Result syncer.SweepResult `json:"result"`
	Queue  status.Snapshot    `json:"queue"`
}

type apiServer struct {
	bind    string
	logger  *slog.Logger
	service entryService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger,
		service: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken, d.metrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// POST /api/sync holds the connection for a whole sweep.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, s.handleStatus))
	mux.HandleFunc("/api/entries", authMiddleware(token, s.handleEntries))
	mux.HandleFunc("/api/sync", authMiddleware(token, s.handleSync))
	mux.Handle("/metrics", metricsHandler)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.service.Status(r.Context()))
}

func (s *apiServer) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listEntries(w, r)
	case http.MethodPost:
		s.recordEntry(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listEntries(w http.ResponseWriter, r *http.Request) {
	var states []queue.SyncState
	for _, value := range r.URL.Query()["state"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		state, ok := queue.ParseSyncState(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", trimmed))
			return
		}
		states = append(states, state)
	}
	entries, err := s.service.ListEntries(r.Context(), states...)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	if entries == nil {
		entries = []*queue.Entry{}
	}
	s.writeJSON(w, http.StatusOK, EntryListResponse{Entries: entries})
}

func (s *apiServer) recordEntry(w http.ResponseWriter, r *http.Request) {
	var record queue.LogRecord
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRecordBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&record); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	entry, err := s.service.Record(r.Context(), record)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, EntryResponse{Entry: entry})
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result := s.service.SyncNow(r.Context())
	s.writeJSON(w, http.StatusOK, SyncResponse{
		Result: result,
		Queue:  s.service.Status(r.Context()).Queue,
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, queue.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
