package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
	"github.com/JakeFAU/playback-beacon/internal/config"
	"github.com/JakeFAU/playback-beacon/internal/metrics"
	"github.com/JakeFAU/playback-beacon/internal/player"
	"github.com/JakeFAU/playback-beacon/internal/policy/ratelimit"
	"github.com/JakeFAU/playback-beacon/internal/session"
	"github.com/JakeFAU/playback-beacon/internal/store"
	"github.com/JakeFAU/playback-beacon/internal/tracker"
)

// Sessions is the registry surface the API drives.
type Sessions interface {
	Attach(opts tracker.Options, dataSetup string, state player.State) (string, error)
	Dispatch(id, event string, state player.State) (int, error)
	SendBeacon(id, action string, nonInteraction bool, value *float64) error
	Describe(id string) (session.Summary, error)
	Detach(id string) error
	Exists(id string) bool
}

// Server wires HTTP handlers to the session registry and beacon history.
type Server struct {
	router   chi.Router
	sessions Sessions
	history  *HistoryHandler
	limiter  *ratelimit.Limiter
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. history may be
// nil when no beacon table is configured; gatherer defaults to the global
// Prometheus registry; httpMetrics and limiter may be nil.
func NewServer(
	sessions Sessions,
	history store.BeaconRepository,
	cfg config.Config,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTP,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions: sessions,
		history:  NewHistoryHandler(history, logger),
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware)
	}
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	r.Route("/v1/sessions", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/", s.attachSession)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", s.describeSession)
			r.Delete("/", s.detachSession)
			r.Post("/events", s.dispatchEvent)
			r.Post("/beacons", s.sendBeacon)
			r.Get("/beacons", s.history.ListSessionBeacons)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type attachRequest struct {
	Options   tracker.Options `json:"options"`
	DataSetup string          `json:"data_setup"`
	State     player.State    `json:"state"`
}

type eventRequest struct {
	Event string        `json:"event"`
	State *player.State `json:"state"`
}

type beaconRequest struct {
	Action         string   `json:"action"`
	NonInteraction bool     `json:"non_interaction"`
	Value          *float64 `json:"value"`
}

func (s *Server) attachSession(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	id, err := s.sessions.Attach(req.Options, req.DataSetup, req.State)
	if err != nil {
		s.writeSessionError(w, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) describeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	summary, err := s.sessions.Describe(id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) detachSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if err := s.sessions.Detach(id); err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	s.limiter.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dispatchEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.State == nil {
		writeError(w, http.StatusBadRequest, "state required")
		return
	}
	id := chi.URLParam(r, "session_id")
	if !s.allow(w, id) {
		return
	}
	handled, err := s.sessions.Dispatch(id, req.Event, *req.State)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"handlers": handled})
}

func (s *Server) sendBeacon(w http.ResponseWriter, r *http.Request) {
	var req beaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	id := chi.URLParam(r, "session_id")
	if !s.allow(w, id) {
		return
	}
	if err := s.sessions.SendBeacon(id, req.Action, req.NonInteraction, req.Value); err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// allow consults the per-session limiter only for live sessions so unknown
// ids never allocate a bucket.
func (s *Server) allow(w http.ResponseWriter, id string) bool {
	if !s.sessions.Exists(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return false
	}
	if !s.limiter.Allow(id) {
		writeError(w, http.StatusTooManyRequests, "session event rate exceeded")
		return false
	}
	return true
}

func (s *Server) writeSessionError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.limiter.Forget(id)
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrTooManySessions):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, session.ErrUnknownEvent),
		errors.Is(err, tracker.ErrInvalidDataSetup),
		errors.Is(err, tracker.ErrInvalidOptions),
		errors.Is(err, beacon.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("session request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("error", rec),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
