package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/pbaille/audit/internal/config"
	"github.com/pbaille/audit/internal/domain"
	"github.com/pbaille/audit/internal/logger"
	"github.com/pbaille/audit/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// VersionStore is what the HTTP layer needs from the version log.
type VersionStore interface {
	LoadAll(ctx context.Context) []domain.Version
	AppendVersion(ctx context.Context, content string) (domain.Version, error)
	Get(ctx context.Context, id string) (domain.Version, error)
	Ping(ctx context.Context) error
}

// Server handles HTTP requests for the audit API
type Server struct {
	store    VersionStore
	cfg      config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l.Component("http") }
}

// WithMetrics instruments handlers with m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// New creates a new API server
func New(st VersionStore, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		store: st,
		cfg:   cfg,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
// Every route is also served under the /api prefix.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, prefix := range []string{"", "/api"} {
		s.handle(mux, "POST "+prefix+"/save-version", s.saveVersion)
		s.handle(mux, "GET "+prefix+"/versions", s.listVersions)
		s.handle(mux, "GET "+prefix+"/versions/{id}", s.getVersion)
		s.handle(mux, "GET "+prefix+"/health", s.health)
	}

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return Chain(
		RequestID(),
		Recovery(s.log),
		AccessLog(s.log),
		CORS(s.cfg.CORS),
	)(mux)
}

// handle registers h and records per-route metrics.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if s.metrics == nil {
		mux.HandleFunc(pattern, h)
		return
	}

	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)

		s.metrics.RecordHTTPRequest(r.Method, pattern, sw.status, time.Since(start))
	})
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) saveVersion(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	content, err := parseContent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := s.store.AppendVersion(r.Context(), content)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to save version")
		return
	}

	writeJSON(w, http.StatusCreated, v)
}

// parseContent extracts the "content" string from a JSON object body.
func parseContent(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("invalid JSON body")
	}
	if !gjson.ParseBytes(body).IsObject() {
		return "", errors.New("request body must be a JSON object")
	}

	content := gjson.GetBytes(body, "content")
	if !content.Exists() {
		return "", errors.New("content (string) is required")
	}
	if content.Type != gjson.String {
		return "", errors.New("content must be a string")
	}
	return content.String(), nil
}

// listVersions returns the log newest first, or oldest first with
// ?order=asc.
func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	order := r.URL.Query().Get("order")
	if order != "" && order != "asc" && order != "desc" {
		writeError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	versions := s.store.LoadAll(r.Context())
	if order != "asc" {
		slices.Reverse(versions)
	}

	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err, "failed to read version")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HealthResponse is the JSON response for /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("storage ping failed")
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "down", Timestamp: time.Now()})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now()})
}

// writeStoreError maps domain errors to status codes. Server errors are
// logged and answered with msg only.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error().
			Err(err).
			Str("request_id", RequestIDFromContext(r.Context())).
			Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
