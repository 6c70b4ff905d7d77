package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/teremich/spotify-true-random/internal/services"
	"github.com/teremich/spotify-true-random/internal/session"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/teremich/spotify-true-random/internal/tasks"
	"golang.org/x/sync/errgroup"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the route patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the web service is built from.
type Deps struct {
	Config   *shared.Config
	Provider services.Provider
	Replayer tasks.Replayer
	Codec    *session.Codec
	Logger   *log.Logger
}

// Server is the shuffle-and-replay web service.
type Server struct {
	config *shared.Config
	logger *log.Logger
	router *BasicRouter
	states *StateStore
}

// New wires the handlers and middleware.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Provider == nil || deps.Replayer == nil || deps.Codec == nil {
		return nil, fmt.Errorf("%w: server needs config, provider, replayer and codec", shared.ErrMissingConfig)
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	states := NewStateStore(deps.Config.StateTTL(), 10_000)

	router := NewBasicRouter()
	router.Use(RequestLogger(logger), Recover(logger), Reporting(), MaxBytes(deps.Config.Server.MaxBodyBytes))

	router.Handler(NewAuthHandler(deps.Provider, deps.Codec, states, deps.Config.Server.VerifyState, logger))
	router.Handler(NewPlaylistHandler(deps.Replayer, deps.Codec, logger))
	router.Handler(NewPagesHandler(logger))

	if !router.Static(deps.Config.Server.StaticDir) {
		logger.Debug("static directory not found, skipping", "dir", deps.Config.Server.StaticDir)
	}

	return &Server{config: deps.Config, logger: logger, router: router, states: states}, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LoginURL is the local address that starts the authorization flow.
func (s *Server) LoginURL() string {
	return fmt.Sprintf("http://localhost:%d/login", s.config.Server.Port)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	defer s.states.Stop()

	wg, wgCtx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		s.logger.Info("listening", "addr", srv.Addr, "login", s.LoginURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	wg.Go(func() error {
		<-wgCtx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	})

	return wg.Wait()
}
