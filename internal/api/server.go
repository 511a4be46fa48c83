// Package api serves the engine's read surface: REST endpoints over the
// live opportunity set and world state, a websocket stream of emissions,
// and the prometheus scrape endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/VrindaBansal/mevscope/internal/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the HTTP server hosting the read API.
type Server struct {
	cfg      config.ServerConfig
	log      *zap.Logger
	server   *http.Server
	handlers *Handlers
	auth     *APIKeyAuth
	limiter  *RateLimiter
	hub      *WebSocketHub
	cancel   context.CancelFunc
}

// NewServer wires the router, middleware, and routes.
func NewServer(cfg config.ServerConfig, handlers *Handlers, hub *WebSocketHub, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		handlers: handlers,
		auth:     NewAPIKeyAuth(cfg.APIKey),
		limiter:  NewRateLimiter(cfg.RateLimit),
		hub:      hub,
	}
	s.setupServer()
	return s
}

// Start begins serving; the listener error is logged, not returned, so a
// failed bind surfaces in logs without tearing down detection.
func (s *Server) Start(ctx context.Context) error {
	// The hub and cleanup loops outlive the startup context; Stop ends them.
	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if err := s.hub.Start(ctx); err != nil {
		return fmt.Errorf("start websocket hub: %w", err)
	}
	go s.limiterCleanup(ctx)
	go func() {
		s.log.Info("api server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.hub.Stop(ctx); err != nil {
		s.log.Warn("websocket hub stop", zap.Error(err))
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	return nil
}

// Router returns the configured handler, used by tests.
func (s *Server) Router() http.Handler {
	return s.server.Handler
}

func (s *Server) setupServer() {
	router := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	router.Use(s.loggingMiddleware)
	router.Use(s.limiter.Middleware)

	// Public routes.
	router.Handle("/health", NewHealthHandler(s.handlers.store)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/ws", s.hub.HandleWebSocket)

	// Protected routes.
	apiRoutes := router.PathPrefix("/api/v1").Subrouter()
	apiRoutes.Use(s.auth.Middleware)
	apiRoutes.HandleFunc("/status", s.handlers.GetStatus).Methods("GET")
	apiRoutes.HandleFunc("/opportunities", s.handlers.GetOpportunities).Methods("GET")
	apiRoutes.HandleFunc("/opportunities/{id}", s.handlers.GetOpportunityByID).Methods("GET")
	apiRoutes.HandleFunc("/mempool/{hash}", s.handlers.GetPendingTransaction).Methods("GET")

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Int("status", wrapper.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr))
	})
}

func (s *Server) limiterCleanup(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.CleanupExpired()
		}
	}
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
