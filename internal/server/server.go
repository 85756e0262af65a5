// Package server exposes the task list over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/cors"

	"todosync/internal/logging"
	"todosync/internal/reconciler"
	"todosync/internal/service"
	"todosync/internal/view"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// maxBodyBytes caps request bodies; task text is at most a few hundred bytes.
const maxBodyBytes = 16 << 10

// Activity receives the interaction signals the refresh loop is gated on.
// *poller.Poller satisfies it.
type Activity interface {
	Touch()
	SetVisible(visible bool)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithNoticeCapacity sets how many notices are retained.
func WithNoticeCapacity(n int) Option {
	return func(s *Server) {
		s.notices = newNoticeRing(n)
	}
}

// Server serves one reconciler over HTTP.
type Server struct {
	rec      *reconciler.Reconciler
	activity Activity
	logger   *log.Logger
	origins  []string
	notices  *noticeRing
	detach   func()
	handler  http.Handler
}

// New builds a server over rec and starts recording notices from observers.
// Call Close to stop recording.
func New(rec *reconciler.Reconciler, observers *reconciler.Broadcast, activity Activity, opts ...Option) *Server {
	s := &Server{
		rec:      rec,
		activity: activity,
		logger:   logging.Discard(),
		origins:  []string{"*"},
		notices:  newNoticeRing(DefaultNoticeCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detach = observers.Add(s.notices)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /api/tasks", s.listTasks)
	mux.HandleFunc("POST /api/tasks", s.addTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.renameTask)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", s.toggleTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.removeTask)
	mux.HandleFunc("POST /api/tasks/clear-completed", s.clearCompleted)
	mux.HandleFunc("PUT /api/filter", s.setFilter)
	mux.HandleFunc("POST /api/reload", s.reload)
	mux.HandleFunc("POST /api/visibility", s.setVisibility)
	mux.HandleFunc("GET /api/notices", s.listNotices)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	s.handler = c.Handler(s.touch(mux))
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close stops recording notices.
func (s *Server) Close() {
	s.detach()
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// touch counts every request as user activity.
func (s *Server) touch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.activity.Touch()
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

type statsJSON struct {
	Total             int    `json:"total"`
	Active            int    `json:"active"`
	Completed         int    `json:"completed"`
	CanClearCompleted bool   `json:"can_clear_completed"`
	Summary           string `json:"summary"`
}

type stateJSON struct {
	Filter view.Filter    `json:"filter"`
	Tasks  []service.Task `json:"tasks"`
	Stats  statsJSON      `json:"stats"`
}

func (s *Server) state(f view.Filter) stateJSON {
	all := s.rec.Tasks()
	st := view.Summarize(all)
	return stateJSON{
		Filter: f,
		Tasks:  view.Apply(all, f),
		Stats: statsJSON{
			Total:             st.Total,
			Active:            st.Active,
			Completed:         st.Completed,
			CanClearCompleted: st.CanClearCompleted(),
			Summary:           st.Summary(),
		},
	}
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	f := s.rec.Filter()
	if q := r.URL.Query().Get("filter"); q != "" {
		parsed, err := view.ParseFilter(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f = parsed
	}
	writeJSON(w, http.StatusOK, s.state(f))
}

type textBody struct {
	Text string `json:"text"`
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if !decode(w, r, &body) {
		return
	}
	if _, err := s.rec.Add(r.Context(), body.Text); err != nil {
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.state(s.rec.Filter()))
}

func (s *Server) renameTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.knownID(w, r)
	if !ok {
		return
	}
	var body textBody
	if !decode(w, r, &body) {
		return
	}
	if _, err := s.rec.Rename(r.Context(), id, body.Text); err != nil {
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state(s.rec.Filter()))
}

func (s *Server) toggleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.knownID(w, r)
	if !ok {
		return
	}
	s.rec.Toggle(r.Context(), id)
	writeJSON(w, http.StatusOK, s.state(s.rec.Filter()))
}

func (s *Server) removeTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.knownID(w, r)
	if !ok {
		return
	}
	s.rec.Remove(r.Context(), id)
	writeJSON(w, http.StatusOK, s.state(s.rec.Filter()))
}

func (s *Server) clearCompleted(w http.ResponseWriter, r *http.Request) {
	s.rec.ClearCompleted(r.Context())
	writeJSON(w, http.StatusOK, s.state(s.rec.Filter()))
}

func (s *Server) setFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter string `json:"filter"`
	}
	if !decode(w, r, &body) {
		return
	}
	f, err := view.ParseFilter(body.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.rec.SetFilter(f)
	writeJSON(w, http.StatusOK, s.state(f))
}

type reloadJSON struct {
	Source      reconciler.Source `json:"source"`
	Count       int               `json:"count"`
	Unreachable bool              `json:"unreachable"`
	stateJSON
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	res := s.rec.Load(r.Context())
	writeJSON(w, http.StatusOK, reloadJSON{
		Source:      res.Source,
		Count:       res.Count,
		Unreachable: res.Unreachable,
		stateJSON:   s.state(s.rec.Filter()),
	})
}

func (s *Server) setVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Visible *bool `json:"visible"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Visible == nil {
		writeError(w, http.StatusBadRequest, "visible is required")
		return
	}
	s.activity.SetVisible(*body.Visible)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNotices(w http.ResponseWriter, r *http.Request) {
	var since int64
	if q := r.URL.Query().Get("since"); q != "" {
		n, err := strconv.ParseInt(q, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %s", q))
			return
		}
		since = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"notices": s.notices.since(since)})
}

func (s *Server) knownID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, ok := s.rec.Find(id); !ok {
		writeError(w, http.StatusNotFound, "task not found: "+id)
		return "", false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
