package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"task-api/internal/result"
	"task-api/internal/task"
)

const maxBodyBytes = 1 << 20

type Server struct {
	tasks           *task.Manager
	log             *slog.Logger
	shutdownTimeout time.Duration
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.log = l } }

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

func New(m *task.Manager, opts ...Option) *Server {
	s := &Server{tasks: m, log: slog.Default(), shutdownTimeout: 5 * time.Second}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed API with request id and access log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /tasks", s.handleCreate)
	mux.HandleFunc("GET /tasks", s.handleList)
	mux.HandleFunc("GET /tasks/{id}", s.handleGet)
	mux.HandleFunc("PUT /tasks/{id}/done", s.handleMarkDone)
	mux.HandleFunc("DELETE /tasks/{id}/done", s.handleClearDone)
	mux.HandleFunc("GET /export", s.handleExport)
	return requestID(accessLog(s.log, mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type createReq struct {
	Title string `json:"title"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err)
		return
	}
	t, err := s.tasks.Create(r.Context(), req.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	all, err := s.tasks.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, all)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeErr(w, http.StatusNotFound, task.ErrNotFound)
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleMarkDone(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeErr(w, http.StatusNotFound, task.ErrNotFound)
		return
	}
	t, err := s.tasks.MarkDone(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleClearDone(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeErr(w, http.StatusNotFound, task.ErrNotFound)
		return
	}
	if err := s.tasks.ClearDone(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	b, err := result.NewExporter(s.tasks).Export(r.Context(), format)
	if errors.Is(err, result.ErrUnknownFormat) {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.ContentType(format))
	_, _ = w.Write(b)
}

// fail maps domain errors to status codes; anything unknown is a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, task.ErrAlreadyDone):
		writeErr(w, http.StatusBadRequest, err)
	case errors.Is(err, task.ErrNotFound):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, task.ErrInvalidTitle):
		writeErr(w, http.StatusUnprocessableEntity, err)
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()), "err", err)
		writeErr(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func taskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
