// Package adminserver exposes the agent's metrics and health endpoints.
package adminserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sapcc/f5agent/internal/observability"
)

// Default server timeouts.
const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// ReadyProbe reports whether the agent's devices are reachable.
type ReadyProbe func(ctx context.Context) error

// Server serves /metrics, /healthz and /readyz.
type Server struct {
	server *http.Server
	logger observability.Logger
	ready  ReadyProbe
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithReadyProbe sets the readiness probe.
func WithReadyProbe(probe ReadyProbe) ServerOption {
	return func(s *Server) {
		s.ready = probe
	}
}

// New creates an admin server listening on addr.
func New(addr string, opts ...ServerOption) *Server {
	s := &Server{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", s.handleHealthz)
	router.GET("/readyz", s.handleReadyz)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("admin server listening",
		observability.String("address", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// handleHealthz reports process liveness.
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReadyz reports device reachability through the probe.
func (s *Server) handleReadyz(c *gin.Context) {
	if s.ready == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if err := s.ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
