// Package server exposes scan state and automation controls over HTTP.
// State reads hit the store directly; long-running operations are started
// fire-and-forget and report progress through the event stream.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"igcurator/pkg/automation"
	"igcurator/pkg/config"
	"igcurator/pkg/events"
	"igcurator/pkg/logger"
	"igcurator/pkg/store"
)

// Automation is the slice of the automation service the handlers use.
type Automation interface {
	StartSync(autoUnfollow bool)
	StartUnfollow()
	CancelRun() bool
	ActiveRun() automation.RunType
}

// Server wires the router to the store, the broadcaster, and the automation
// service.
type Server struct {
	router      *chi.Mux
	store       *store.Store
	automation  Automation
	broadcaster *events.Broadcaster
	cfg         config.ServerConfig
	logger      logger.Logger
}

// New builds the server and its routes.
func New(st *store.Store, auto Automation, broadcaster *events.Broadcaster, cfg config.ServerConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Server{
		router:      chi.NewRouter(),
		store:       st,
		automation:  auto,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/scans", s.handleScans)
		r.Get("/stats", s.handleStats)
		r.Get("/view", s.handleView)
		r.Get("/favorites", s.handleFavorites)
		r.Post("/favorites/{username}/toggle", s.handleToggleFavorite)
		r.Post("/sync/start", s.handleSyncStart)
		r.Post("/sync/cancel", s.handleRunCancel)
		r.Post("/unfollow/start", s.handleUnfollowStart)
		r.Post("/unfollow/cancel", s.handleRunCancel)
		r.Get("/run", s.handleRun)
	})
}

// Handler returns the routed handler. Used by tests and by Start.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the event stream holds its connection open.
		IdleTimeout: 60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.cfg.Addr).Info("server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return err
		}
	case sig := <-quit:
		s.logger.WithField("signal", sig.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugWithFields("request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		})
	})
}
