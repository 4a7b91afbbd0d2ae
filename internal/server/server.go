// Package server wires the HTTP surface of the dashboard.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/avramidis/tipfolio/internal/auth"
	"github.com/avramidis/tipfolio/internal/config"
	"github.com/avramidis/tipfolio/internal/database"
	earningshandlers "github.com/avramidis/tipfolio/internal/modules/earnings/handlers"
	tipshandlers "github.com/avramidis/tipfolio/internal/modules/tips/handlers"
	"github.com/avramidis/tipfolio/internal/session"
)

// ServerConfig holds everything the server needs to run.
type ServerConfig struct {
	Config           *config.Config
	Log              zerolog.Logger
	TipsDB           *database.DB
	CacheDB          *database.DB
	EarningsHandlers *earningshandlers.Handler
	EarningsStream   *earningshandlers.StreamHandler
	TipsHandlers     *tipshandlers.Handler
	Watchdog         *session.Watchdog

	// OnSessionStart runs once per activity window, on the first request
	// that carries a credential. ResetSession opens a new window.
	OnSessionStart func(token string)
}

// Server is the HTTP server for the dashboard API.
type Server struct {
	router         chi.Router
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	tipsDB         *database.DB
	cacheDB        *database.DB
	systemHandlers *SystemHandlers
	watchdog       *session.Watchdog
	startupTime    time.Time

	onSessionStart func(token string)
	sessionActive  atomic.Bool
}

// NewServer creates and configures the HTTP server.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		cfg:         cfg.Config,
		tipsDB:      cfg.TipsDB,
		cacheDB:     cfg.CacheDB,
		watchdog:    cfg.Watchdog,
		startupTime: time.Now(),

		onSessionStart: cfg.OnSessionStart,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, s.startupTime, cfg.TipsDB, cfg.CacheDB)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes(cfg)

	// No WriteTimeout: the earnings stream holds its connection open.
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes(cfg ServerConfig) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.activityMiddleware)

		cfg.EarningsHandlers.RegisterRoutes(r, cfg.EarningsStream)
		cfg.TipsHandlers.RegisterRoutes(r)
		s.systemHandlers.RegisterRoutes(r)
	})
}

// activityMiddleware feeds the session watchdog on every API request and
// fires the session-start hook on the first credentialed request of a window.
func (s *Server) activityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.watchdog != nil {
			s.watchdog.Touch()
		}
		if s.onSessionStart != nil {
			if token, ok := auth.BearerToken(r); ok && s.sessionActive.CompareAndSwap(false, true) {
				go s.onSessionStart(token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ResetSession marks the activity window closed; the next credentialed
// request starts a fresh session.
func (s *Server) ResetSession() {
	s.sessionActive.Store(false)
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, db := range []*database.DB{s.tipsDB, s.cacheDB} {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","uptime_seconds":%d}`, int64(time.Since(s.startupTime).Seconds()))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
