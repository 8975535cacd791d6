// Package mockbackend is an in-memory stand-in for the Echostash backend. It
// serves the same routes and error shapes so the suites and client tests run
// without network access.
package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/mockbackend/middleware"
	"github.com/echostash/echostash-automation/internal/observability"
)

// Options configures a mock backend.
type Options struct {
	Host string
	Port int

	// DisableAutomation hides the /automation routes, like a production backend.
	DisableAutomation bool

	// AdminEmails are granted access to /api/admin.
	AdminEmails []string

	// Users are email/password pairs accepted by /api/auth/login.
	Users map[string]string

	// AdminToken enables POST /admin/signal when set.
	AdminToken string
}

// Server is the mock backend HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	opts   Options
	state  *state
	faults *faults

	mu       sync.Mutex
	listener net.Listener
}

// New builds a mock backend. The router is ready immediately, so tests can
// mount Handler() on httptest without calling Start.
func New(opts Options) *Server {
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = "127.0.0.1"
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestMetrics)
	r.Use(middleware.Recovery(respondPanic))

	s := &Server{
		router: r,
		host:   opts.Host,
		port:   opts.Port,
		opts:   opts,
		state:  newState(),
		faults: newFaults(),
	}

	r.Use(s.faults.middleware)
	r.Use(s.identify)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s.registerRoutes()
	return s
}

// Start listens and serves until Shutdown. With Port 0 a free port is picked;
// Port reports it once Start has bound.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting mock backend",
			zap.String("host", s.host),
			zap.Int("port", s.Port()),
			zap.Bool("automation", !s.opts.DisableAutomation))
	}

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down mock backend")
	}
	return srv.Shutdown(ctx)
}

// Handler exposes the router for httptest and instrumentation.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port, or the bound port after Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the base URL of a started server.
func (s *Server) URL() string {
	return "http://" + net.JoinHostPort(s.host, fmt.Sprintf("%d", s.Port()))
}

// FailNext makes the next n requests to path answer with status.
func (s *Server) FailNext(path string, status, n int) {
	s.faults.add(path, status, n)
}

// ClearFaults drops every pending injected failure.
func (s *Server) ClearFaults() {
	s.faults.clear()
}
