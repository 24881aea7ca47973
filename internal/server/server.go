package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/michaelbrown/schoolbot/internal/agent"
	"github.com/michaelbrown/schoolbot/internal/storage"
)

// Chatter answers one chat request.
type Chatter interface {
	Chat(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// Options configures a Server.
type Options struct {
	AllowedOrigin  string
	RequestTimeout time.Duration // 0 means no limit
	Store          storage.Store // optional audit log
	Logger         *slog.Logger
}

// Server is the HTTP front end of the orchestrator.
type Server struct {
	chat   Chatter
	opts   Options
	logger *slog.Logger
	router chi.Router
	http   *http.Server
}

// New creates a new Server.
func New(chat Chatter, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		chat:   chat,
		opts:   opts,
		logger: opts.Logger,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.opts.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.With(jsonContentType).Post("/chat", s.handleChat)

	// WebSocket (no JSON content-type)
	r.Get("/chat/ws", s.handleWebSocket)
}

// jsonContentType sets Content-Type to application/json.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("schoolbot server starting", "addr", "http://localhost"+addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
