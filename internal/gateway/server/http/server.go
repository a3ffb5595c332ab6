// Package http provides the HTTP server of the gateway.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/placegw/internal/backend"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// Forwarder sends a request to a named backend.
type Forwarder interface {
	Forward(ctx context.Context, name string, r *http.Request) (*http.Response, error)
}

// Server is the gateway's HTTP server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     observability.Logger
	config     *ServerConfig
	mu         sync.RWMutex
	running    bool
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Port           int
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	// MaxRequestBodySize is the maximum allowed request body size in bytes.
	// Set to 0 to disable the limit.
	MaxRequestBodySize int64
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:               8080,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       60 * time.Second,
		IdleTimeout:        120 * time.Second,
		MaxHeaderBytes:     1 << 20,  // 1 MB
		MaxRequestBodySize: 10 << 20, // 10 MB
	}
}

// Dependencies are the components the server routes requests to.
type Dependencies struct {
	Pipeline  *Pipeline
	Router    *backend.Router
	Forwarder Forwarder
	// Health serves /health and /actuator/health when set.
	Health gin.HandlerFunc
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  observability.Logger
}

// NewServer creates the server and registers its routes.
func NewServer(config *ServerConfig, deps Dependencies) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if deps.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if deps.Router == nil || deps.Forwarder == nil {
		return nil, errors.New("router and forwarder are required")
	}
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.HandleMethodNotAllowed = false

	s := &Server{
		engine: engine,
		logger: deps.Logger,
		config: config,
	}

	engine.Use(deps.Pipeline.Handlers()...)
	if config.MaxRequestBodySize > 0 {
		engine.Use(s.maxRequestBodySizeMiddleware())
	}
	registerRoutes(engine, deps)

	return s, nil
}

// maxRequestBodySizeMiddleware returns a middleware that limits request body size.
func (s *Server) maxRequestBodySizeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxRequestBodySize)
		c.Next()
	}
}

// Handler returns the server's request handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := s.Addr()
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", addr),
		observability.Duration("readTimeout", s.config.ReadTimeout),
		observability.Duration("writeTimeout", s.config.WriteTimeout),
	)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
