package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/auth"
	"github.com/infinitehq/aimlgw/internal/config"
	"github.com/infinitehq/aimlgw/internal/middleware"
	"github.com/infinitehq/aimlgw/internal/observability"
	"github.com/infinitehq/aimlgw/internal/routes"
	"github.com/infinitehq/aimlgw/internal/session"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// Options holds the collaborators the server wires together.
type Options struct {
	Config   *config.Config
	Logger   observability.Logger
	Verifier *auth.Verifier
	Handlers *routes.Handlers
	Sessions session.Store
	Auditor  apierror.Auditor
	Registry *prometheus.Registry
}

// Server is the gateway HTTP server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     observability.Logger
	sessions   session.Store
	cfg        *config.Config
}

// New assembles the engine and returns the server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.Use(
		middleware.RecoveryWithAuditor(logger, opts.Auditor),
		middleware.RequestID(),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger:    logger,
			SkipPaths: []string{"/healthz", "/metrics"},
		}),
		middleware.CORS(),
		middleware.RateLimit(&opts.Config.RateLimit, logger),
	)

	s := &Server{
		engine:   engine,
		logger:   logger,
		sessions: opts.Sessions,
		cfg:      opts.Config,
	}

	// Public surface.
	engine.GET("/", s.statusHandler)
	engine.GET("/status", s.statusHandler)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", metricsHandler(opts.Registry))

	// Everything else requires a verified bearer token.
	api := engine.Group("")
	api.Use(auth.Middleware(opts.Verifier, logger))
	api.GET("/protected", func(c *gin.Context) {
		claims, _ := auth.ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"message": "Hello, " + claims.Subject})
	})

	if opts.Handlers != nil {
		opts.Handlers.Register(api)
	}

	return s
}

// Engine returns the underlying gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// metricsHandler serves the prometheus registry, falling back to the
// default gatherer.
func metricsHandler(registry *prometheus.Registry) gin.HandlerFunc {
	var handler http.Handler
	if registry != nil {
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	} else {
		handler = promhttp.Handler()
	}
	return gin.WrapH(handler)
}

// statusHandler reports service status including session store
// connectivity. Store failures are reported, never fatal.
func (s *Server) statusHandler(c *gin.Context) {
	now := time.Now().UTC().Format(time.RFC3339)

	if s.sessions == nil {
		c.JSON(http.StatusOK, gin.H{
			"message":  "Service status retrieved successfully.",
			"server":   "API",
			"time":     now,
			"sessions": "unconfigured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.sessions.Ping(ctx); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"message":  "Service status retrieval encountered an error.",
			"server":   "API",
			"time":     now,
			"sessions": "down",
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Service status retrieved successfully.",
		"server":   "API",
		"time":     now,
		"sessions": "up",
	})
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Address(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			observability.String("address", s.httpServer.Addr),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
