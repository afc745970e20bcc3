// Package server hosts the gin engine and the health endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker is a dependency whose reachability gates /health.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouteRegistrar is implemented by the API services.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRouter)
}

type Server struct {
	Engine *gin.Engine
	Addr   string
	health HealthChecker
	done   <-chan struct{}
}

// New builds the engine. health may be nil when no database is configured.
// done, when closed, marks the service unhealthy.
func New(addr, mode string, health HealthChecker, done <-chan struct{}, services ...RouteRegistrar) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{Engine: r, Addr: addr, health: health, done: done}
	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	for _, svc := range services {
		svc.RegisterRoutes(r)
	}
	return s
}

// requestLogger logs each request through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("[HTTP] Request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	if s.done != nil {
		select {
		case <-s.done:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "runner stopped",
			})
			return
		default:
		}
	}

	database := "disabled"
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.PingContext(ctx); err != nil {
			slog.Error("[HTTP] Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		database = "connected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": database,
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("[HTTP] Starting server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("[HTTP] Stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("[HTTP] Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
