// Package httpapi exposes the evaluations over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/model"
	"github.com/ppiankov/corridorwatch/internal/ratelimit"
	"github.com/ppiankov/corridorwatch/internal/registry"
	"github.com/ppiankov/corridorwatch/internal/rpc"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Evaluator is the subset of the server the HTTP routes call.
type Evaluator interface {
	Envelope(rpc.EnvelopeRequest) rpc.EnvelopeResponse
	Action(rpc.ActionRequest) (rpc.ActionResponse, error)
	Access(rpc.AccessRequest) rpc.AccessResponse
	Corridor(id string) (rpc.CorridorRecord, error)
	Corridors() rpc.ListResponse
}

// Config holds HTTP facade configuration.
type Config struct {
	Port int
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// RateLimits caps /evaluate requests per client address.
	RateLimits ratelimit.Config
}

// Server is the HTTP facade.
type Server struct {
	eval Evaluator
	srv  *http.Server

	mu   sync.Mutex
	addr net.Addr
}

// NewServer builds the router.
func NewServer(eval Evaluator, cfg Config) *Server {
	s := &Server{eval: eval}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewHandler(eval, cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// NewHandler returns the routes without a listener. For testing and embedding.
// Port is ignored.
func NewHandler(eval Evaluator, cfg Config) http.Handler {
	h := &handlers{eval: eval}
	limit := func(string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.RateLimits.HasLimits() {
		limiter := ratelimit.New(cfg.RateLimits)
		limit = func(category string) func(http.Handler) http.Handler {
			return rateLimited(limiter, category)
		}
	}

	r := chi.NewRouter()
	r.Get("/health", h.health)
	r.Route("/evaluate", func(api chi.Router) {
		api.With(limit("envelope")).Post("/envelope", h.envelope)
		api.With(limit("action")).Post("/action", h.action)
		api.With(limit("mfa")).Post("/mfa", h.mfa)
	})
	r.Get("/corridors", h.listCorridors)
	r.Get("/corridors/{id}", h.getCorridor)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	return r
}

// rateLimited answers 429 once the client exceeds the category limit.
func rateLimited(l *ratelimit.Limiter, category string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				client = r.RemoteAddr
			}
			if res := l.Allow(client, category, time.Now()); res.Exceeded {
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "rate_limited", res.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Start begins listening. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	return s.StartOn(ctx, nil)
}

// StartOn serves on ln, or on the configured port when ln is nil.
func (s *Server) StartOn(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.srv.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
		}
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr returns the listen address. Only valid after Start is called.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return s.srv.Addr
	}
	return s.addr.String()
}

type handlers struct {
	eval Evaluator
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) envelope(w http.ResponseWriter, r *http.Request) {
	var req rpc.EnvelopeRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.eval.Envelope(req))
}

func (h *handlers) action(w http.ResponseWriter, r *http.Request) {
	var req rpc.ActionRequest
	if !readJSON(w, r, &req) {
		return
	}
	resp, err := h.eval.Action(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) mfa(w http.ResponseWriter, r *http.Request) {
	var req rpc.AccessRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.eval.Access(req))
}

func (h *handlers) listCorridors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eval.Corridors())
}

func (h *handlers) getCorridor(w http.ResponseWriter, r *http.Request) {
	rec, err := h.eval.Corridor(chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	}
}

// readJSON decodes the body into v, writing a 400 on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		code := "BAD_JSON"
		if errors.Is(err, model.ErrScoreOutOfRange) || errors.Is(err, corridor.ErrEmptyID) {
			code = "BAD_REQUEST"
		}
		writeError(w, http.StatusBadRequest, code, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
