// Package api provides the HTTP API server for Landscaper. It uses the
// Echo framework to serve the graph query endpoints and a WebSocket feed
// of landscape changes.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/open-landscape/landscaper/internal/config"
	"github.com/open-landscape/landscaper/models"
)

// GraphStore is the slice of the landscape store the API reads from.
type GraphStore interface {
	GetGraph(ctx context.Context, at, timeframe int64) (*models.Graph, error)
	GetSubgraph(ctx context.Context, id string, at, timeframe int64) (*models.Graph, error)
	GetNode(ctx context.Context, id string, at, timeframe int64) (*models.Graph, error)
	QueryNodes(ctx context.Context, props map[string]any, at, timeframe int64) (*models.Graph, error)
	SetCoordinates(ctx context.Context, updates []models.CoordinateUpdate, geoTypes []string, ts int64) error
	Ping(ctx context.Context) error
}

// Server represents the Landscaper API server.
type Server struct {
	echo     *echo.Echo
	store    GraphStore
	config   *config.Config
	wsHub    *Hub // WebSocket hub for real-time updates
	validate *validator.Validate
}

// debugLog logs a message only if debug mode is enabled in config
func (s *Server) debugLog(format string, args ...interface{}) {
	if s.config.Server.Debug {
		log.Printf(format, args...)
	}
}

// New creates a new API server instance.
func New(cfg *config.Config, store GraphStore) *Server {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug

	e.HTTPErrorHandler = HTTPErrorHandler

	hub := NewHub()

	server := &Server{
		echo:     e,
		store:    store,
		config:   cfg,
		wsHub:    hub,
		validate: validator.New(),
	}

	// Start WebSocket hub in background
	go hub.Run()

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))

	s.echo.Use(middleware.Recover())

	s.echo.Use(SecurityHeaders)

	if len(s.config.Security.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.config.Security.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPut},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	s.echo.Use(middleware.RequestID())

	if s.config.Security.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.Security.RateLimit),
		)))
	}

	s.echo.Use(ValidateContentType)
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/", s.healthCheck)

	s.echo.GET("/graph", s.getGraph)
	s.echo.GET("/subgraph/:id", s.getSubgraph, ValidateIDFormat)
	s.echo.GET("/node/:id", s.getNode, ValidateIDFormat)
	s.echo.GET("/nodes", s.queryNodes)
	s.echo.PUT("/coordinates", s.putCoordinates)

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/ws/graph", s.handleWebSocket)
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Landscaper API listening on %s", addr)
		if s.config.Server.TLSEnabled {
			errCh <- s.echo.StartTLS(addr, s.config.Server.TLSCert, s.config.Server.TLSKey)
		} else {
			errCh <- s.echo.Start(addr)
		}
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// healthCheck reports whether the API and its store are alive.
func (s *Server) healthCheck(c echo.Context) error {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.debugLog("Health check failed: %v", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]any{
		"status":     status,
		"ws_clients": s.wsHub.ClientCount(),
	})
}
