// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ytget/kwikdl"
	"github.com/ytget/kwikdl/internal/logger"
	"github.com/ytget/kwikdl/internal/metrics"
	"github.com/ytget/kwikdl/pkg/client"
)

const (
	// DefaultPort is used when PORT is not set.
	DefaultPort = "5000"

	defaultResolveTimeout = 90 * time.Second
	shutdownTimeout       = 5 * time.Second
	maxRequestBodyBytes   = 64 << 10
)

// Config holds the HTTP surface settings. Zero values use defaults.
type Config struct {
	Addr string
	// RequestsPerSecond is the per-client rate on /api routes. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	AllowedOrigin     string
	ResolveTimeout    time.Duration
}

// DefaultConfig listens on $PORT (or 5000) and allows two API requests per
// second per client with a burst of five.
func DefaultConfig() Config {
	return Config{
		Addr:              AddrFromEnv(),
		RequestsPerSecond: 2,
		Burst:             5,
		AllowedOrigin:     "*",
		ResolveTimeout:    defaultResolveTimeout,
	}
}

// AddrFromEnv returns ":$PORT", or ":5000" when PORT is unset.
func AddrFromEnv() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = DefaultPort
	}
	return ":" + port
}

// Server routes API requests to a Resolver and a Fetcher.
type Server struct {
	cfg      Config
	resolver *kwikdl.Resolver
	fetcher  client.Fetcher
	metrics  *metrics.Metrics
	limiters *clientLimiters
	log      *logger.ComponentLogger
	router   *mux.Router
}

// New builds the router. A nil fetcher uses the direct client; m may be nil.
func New(cfg Config, resolver *kwikdl.Resolver, fetcher client.Fetcher, m *metrics.Metrics) *Server {
	if cfg.Addr == "" {
		cfg.Addr = AddrFromEnv()
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = defaultResolveTimeout
	}
	if resolver == nil {
		resolver = kwikdl.New()
	}
	if fetcher == nil {
		fetcher = client.New()
	}

	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		fetcher:  fetcher,
		metrics:  m,
		limiters: newClientLimiters(cfg.RequestsPerSecond, cfg.Burst),
		log:      logger.WithComponent(logger.ComponentServer),
	}
	s.routes()
	return s
}

// WithLogger sets the logger for request logs.
func (s *Server) WithLogger(l *logger.Logger) *Server {
	if l != nil {
		s.log = l.WithComponent(logger.ComponentServer)
	}
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter().UseEncodedPath()
	r.SkipClean(true)
	r.Use(s.requestID, s.cors, s.instrument)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimit)
	api.HandleFunc("/resolve", s.handleResolve).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/extract", s.handleResolve).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/fetch/{target:.+}", s.handleFetch).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", map[string]interface{}{"addr": s.cfg.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
