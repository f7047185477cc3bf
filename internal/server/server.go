// Package server exposes the planning pipeline over HTTP: Canvas
// authentication and assignment fetches, plan generation, and the Google
// Calendar flow.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"studyplanner/internal/canvas"
	"studyplanner/internal/config"
	"studyplanner/internal/gcal"
	"studyplanner/internal/planner"
)

const requestIDKey = "request_id"

// Server wires the HTTP routes to the domain services.
type Server struct {
	echo    *echo.Echo
	cfg     config.Config
	logger  *zap.Logger
	planner *planner.Service
	canvas  *canvas.Client
	sink    *gcal.Sink
}

func New(cfg config.Config, logger *zap.Logger, svc *planner.Service, cv *canvas.Client, sink *gcal.Sink) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		cfg:     cfg,
		logger:  logger,
		planner: svc,
		canvas:  cv,
		sink:    sink,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(s.requestLogging)

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/", s.handleRoot)

	e.POST("/canvas/authenticate", s.handleCanvasAuthenticate)
	e.GET("/canvas/assignments", s.handleAssignments)
	e.GET("/canvas/assignments/:course_id", s.handleCourseAssignments)

	e.POST("/study-plan/generate", s.handleGeneratePlan)
	e.POST("/study-plan/complete", s.handleCompletePlan)
	e.POST("/study-plan/classify", s.handleClassify)

	e.GET("/google/auth/url", s.handleGoogleAuthURL)
	e.GET("/google/auth/callback", s.handleGoogleCallback)
	e.POST("/google/authenticate", s.handleGoogleAuthenticate)
	e.POST("/calendar/create-events", s.handleCreateEvents)
	e.GET("/calendar/free-slots", s.handleFreeSlots)
	e.DELETE("/calendar/event/:event_id", s.handleDeleteEvent)
}

// requestLogging tags each request with an ID and logs its outcome.
func (s *Server) requestLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Response().Header().Set("X-Request-ID", id)

		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)))
		return nil
	}
}

// Start runs the HTTP listener until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
