package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"qtermsim/internal/config"
	"qtermsim/internal/session"
)

// Config holds server configuration
type Config struct {
	Log    zerolog.Logger
	Config *config.Config
	Store  *session.Store
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	cfg      *config.Config
	store    *session.Store
	validate *validator.Validate
}

// New creates a new HTTP server. A nil Store gets one built from the config
// limits.
func New(cfg Config) *Server {
	store := cfg.Store
	if store == nil {
		store = session.NewStore(Limits(cfg.Config), cfg.Config.Sampler.Seed, cfg.Log)
	}
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		cfg:      cfg.Config,
		store:    store,
		validate: validator.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	ioTimeout := connTimeout(cfg.Config.Server.RequestTimeout)
	s.server = &http.Server{
		Addr:         cfg.Config.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

const (
	minConnTimeout   = 15 * time.Second
	connTimeoutSlack = 5 * time.Second
)

// connTimeout keeps the connection deadlines past the request timeout so a
// timed-out handler can still write its 503.
func connTimeout(request time.Duration) time.Duration {
	return max(minConnTimeout, request+connTimeoutSlack)
}

// Limits derives session limits from the configuration.
func Limits(cfg *config.Config) session.Limits {
	return session.Limits{
		MaxQubits:        cfg.Simulator.MaxQubits,
		UnitaryMaxQubits: cfg.Simulator.UnitaryMaxQubits,
		MaxShots:         cfg.Sampler.MaxShots,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	if t := s.cfg.Server.RequestTimeout; t > 0 {
		s.router.Use(middleware.Timeout(t))
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !s.cfg.Server.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/simulate", s.handleSimulate)
		r.Post("/unitary", s.handleUnitary)
		r.Post("/qasm", s.handleQASM)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Put("/circuit", s.handleSetCircuit)
				r.Post("/sample", s.handleSample)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
