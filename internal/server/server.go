// Package server exposes a proxy and its recorded invocations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
	"github.com/tjfontaine/callpipe/internal/telemetry"
)

// Caller is the proxy surface the API serves.
type Caller interface {
	Methods() []*domain.Method
	Lookup(name string) (*domain.Method, bool)
	Call(ctx context.Context, name string, args ...any) (*domain.Result, error)
}

// Options configures a Server. Store and Metrics are optional; their routes
// are left out or answer 503 when missing.
type Options struct {
	Port           int
	Logger         *slog.Logger
	Caller         Caller
	Store          ports.InvocationStore
	Metrics        *telemetry.Metrics
	RequestTimeout time.Duration
}

type Server struct {
	Router *chi.Mux
	Port   int

	logger     *slog.Logger
	caller     Caller
	store      ports.InvocationStore
	metrics    *telemetry.Metrics
	httpServer *http.Server
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "callpipe")
	})

	s := &Server{
		Router:  r,
		Port:    opts.Port,
		logger:  logger,
		caller:  opts.Caller,
		store:   opts.Store,
		metrics: opts.Metrics,
		httpServer: &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.Router.Handle("/metrics", s.metrics.Handler())
	}

	s.Router.Route("/v1", func(r chi.Router) {
		r.Get("/methods", s.handleListMethods)
		r.Post("/methods/{name}/invoke", s.handleInvoke)
		r.Get("/invocations", s.handleListInvocations)
		r.Get("/invocations/{id}", s.handleGetInvocation)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Start listens on the configured port and serves until Shutdown is called,
// in which case it returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
