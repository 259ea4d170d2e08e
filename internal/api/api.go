// Package api exposes the TraceLens HTTP API.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/tracelens/tracelens/internal/api/handler"
	"github.com/tracelens/tracelens/internal/config"
	"github.com/tracelens/tracelens/internal/engine"
)

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	engine    *engine.Engine
	httpSrv   *http.Server
}

// New creates the API server.
func New(ctx context.Context, cfg *config.Config, e *engine.Engine, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		engine:    e,
	}
	s.ginEngine.Use(gin.Recovery())
	if cfg.Gzip {
		s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression))
	}
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	h := handler.New(s.engine)

	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.ginEngine.Group("/api")
	api.GET("/services", h.Services)
	api.GET("/services/:service/operations", h.Operations)
	api.GET("/search", h.Search)
	api.GET("/traces/:id", h.Trace)
	api.GET("/pins", h.ListPins)
	api.POST("/pins", h.CreatePin)
	api.DELETE("/pins/:id", h.DeletePin)
	api.GET("/searches/recent", h.RecentSearches)
	api.POST("/jobs/:id/run", h.RunJob)
	api.POST("/refresh", h.Refresh)
	api.GET("/status", h.Status)
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down API server")
	return s.httpSrv.Shutdown(ctx)
}
