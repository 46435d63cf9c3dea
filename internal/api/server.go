// Package api exposes the engine and the store over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/dshills/flowgraph/graph"
	"github.com/dshills/flowgraph/graph/store"
)

// Runner executes a graph and records the run when workflowID is set.
// *app.App implements it.
type Runner interface {
	Execute(ctx context.Context, g *graph.Graph, workflowID string) (*graph.Run, error)
}

// Deps are the components the handlers use.
type Deps struct {
	Runner Runner
	Store  store.Store
	Logger *slog.Logger

	// Gatherer backs /metrics; the route is not mounted when nil.
	Gatherer prometheus.Gatherer

	// TraceService enables otelecho request spans under this service name.
	TraceService string
}

// Server holds the dependencies for the API server.
type Server struct {
	runner Runner
	store  store.Store
	logger *slog.Logger
	echo   *echo.Echo
}

// NewServer builds the echo instance and mounts every route.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{runner: d.Runner, store: d.Store, logger: logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds()}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error.Error())
			}
			logger.Debug("http request", attrs...)
			return nil
		},
	}))
	if d.TraceService != "" {
		e.Use(otelecho.Middleware(d.TraceService))
	}

	e.GET("/healthz", s.Health)
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := e.Group("/api/v1")
	v1.POST("/execute", s.Execute)
	v1.POST("/validate", s.Validate)
	v1.GET("/workflows", s.ListWorkflows)
	v1.POST("/workflows", s.CreateWorkflow)
	v1.GET("/workflows/:id", s.GetWorkflow)
	v1.PUT("/workflows/:id", s.UpdateWorkflow)
	v1.POST("/workflows/:id/run", s.RunWorkflow)
	v1.GET("/runs", s.ListRuns)
	v1.GET("/runs/:id", s.GetRun)

	s.echo = e
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo { return s.echo }

type errorResponse struct {
	Error string `json:"error"`
}

// handleError writes every error as {"error": message}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Error("write error response", "error", err)
	}
}

// Health pings the store.
// (GET /healthz)
func (s *Server) Health(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
