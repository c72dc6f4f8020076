package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	applog "boletim/internal/log"
	"boletim/internal/provider"
)

// Provider is the Data Provider the server fronts.
type Provider interface {
	provider.RecordReader
	provider.FooterReader
	provider.AttendanceWriter
}

// ReadinessChecker reports whether a dependency can serve requests.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	provider    Provider
	ready       ReadinessChecker
	validate    *validator.Validate
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	logger      *applog.StructuredLogger

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithReadiness makes /readyz report the checker's state.
func WithReadiness(c ReadinessChecker) Option {
	return func(s *Server) { s.ready = c }
}

// WithRateLimit sets the POST requests allowed per client per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimiter.limit = perMinute }
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *applog.Logger) Option {
	return func(s *Server) { s.logger = applog.NewStructuredLogger(l) }
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, p Provider, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		provider:    p,
		validate:    validator.New(),
		rateLimiter: newRateLimiter(60, time.Minute),
		metrics:     &securityMetrics{},
		logger:      applog.NewStructuredLogger(applog.New(applog.DefaultConfig())),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/tabela/{date...}", s.withMiddleware(s.handleGetTable))
	mux.HandleFunc("POST /api/tabela", s.withMiddleware(s.handleSave))

	return s
}

// Shutdown stops background routines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
