// Package server exposes the resolver and self transfers over HTTP for
// diagnostics and conformance runs.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danmuck/msgbuf/internal/observability"
	"github.com/danmuck/msgbuf/internal/protocol/frame"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	version = "0.1.0"

	// DefaultMaxSweepLen caps the buffer length a single HTTP sweep may request.
	DefaultMaxSweepLen = 64

	shutdownTimeout = 5 * time.Second
)

type Server struct {
	ID       string    `json:"id"`
	Addr     string    `json:"addr"`
	Appeared time.Time `json:"appeared"`

	// MaxSweepLen bounds max_len in POST /v1/sweep.
	MaxSweepLen int          `json:"-"`
	// Limits applies to every self transfer the server runs.
	Limits      frame.Limits `json:"-"`

	router   *gin.Engine
	basePath string
}

func Appear(id, addr string, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(corsOrigins),
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type", observability.HeaderRequestID},
		ExposeHeaders: []string{observability.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:          id,
		Addr:        addr,
		Appeared:    time.Now(),
		MaxSweepLen: DefaultMaxSweepLen,
		Limits:      frame.DefaultLimits(),
		router:      r,
	}
}

// Attach mounts the routes on an existing router under basePath.
func Attach(id string, router *gin.Engine, basePath string) *Server {
	return &Server{
		ID:          id,
		Appeared:    time.Now(),
		MaxSweepLen: DefaultMaxSweepLen,
		Limits:      frame.DefaultLimits(),
		router:      router,
		basePath:    basePath,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	routes := s.routes()
	routes.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})
	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := routes.Group("/v1")
	v1.GET("/datatypes", s.handleDatatypes)
	v1.POST("/resolve", s.handleResolve)
	v1.POST("/sendrecv", s.handleSendrecv)
	v1.POST("/sweep", s.handleSweep)
}

// Run serves until ctx is done, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("server", s.ID).Str("addr", s.Addr).Msg("msgbuf api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Str("server", s.ID).Msg("msgbuf api stopped")
	return nil
}

func (s *Server) routes() *gin.RouterGroup {
	return s.router.Group(s.basePath)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
