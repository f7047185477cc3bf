package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"studyplanner/internal/canvas"
	"studyplanner/internal/gcal"
	"studyplanner/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service":              "study-planner",
		"status":               "ok",
		"canvas_authenticated": s.canvas.Authenticated(),
		"calendar_authorized":  s.sink != nil && s.sink.Authorized(),
	})
}

type authenticateRequest struct {
	CanvasURL   string `json:"canvas_url"`
	AccessToken string `json:"access_token"`
}

func (s *Server) handleCanvasAuthenticate(c echo.Context) error {
	var req authenticateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := s.canvas.Authenticate(c.Request().Context(), req.CanvasURL, req.AccessToken); err != nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "authenticated"})
}

func (s *Server) handleAssignments(c echo.Context) error {
	assignments, err := s.canvas.FetchAssignments(c.Request().Context())
	if err != nil {
		return canvasError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"assignments": assignments,
		"count":       len(assignments),
	})
}

func (s *Server) handleCourseAssignments(c echo.Context) error {
	courseID, err := strconv.ParseInt(c.Param("course_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "course_id must be an integer"})
	}
	assignments, err := s.canvas.FetchCourseAssignments(c.Request().Context(), courseID)
	if err != nil {
		return canvasError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"assignments": assignments,
		"count":       len(assignments),
	})
}

func canvasError(c echo.Context, err error) error {
	if errors.Is(err, canvas.ErrNotAuthenticated) {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "authenticate with Canvas first"})
	}
	return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
}

type generateRequest struct {
	Assignments []types.Assignment `json:"assignments"`
	Preferences *types.Preferences `json:"preferences"`
	FreeSlots   []types.FreeSlot   `json:"free_slots"`
}

func (s *Server) handleGeneratePlan(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if len(req.Assignments) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "no assignments provided"})
	}

	prefs := types.DefaultPreferences()
	if req.Preferences != nil {
		prefs = *req.Preferences
	}

	plan, err := s.planner.Generate(c.Request().Context(), req.Assignments, prefs, req.FreeSlots)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, plan)
}

type completeRequest struct {
	Preferences  *types.Preferences `json:"preferences"`
	CreateEvents bool               `json:"create_events"`
}

// handleCompletePlan runs the full pipeline: fetch assignments, read
// availability, generate a plan, and optionally write it to the calendar.
func (s *Server) handleCompletePlan(c echo.Context) error {
	ctx := c.Request().Context()

	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	prefs := types.DefaultPreferences()
	if req.Preferences != nil {
		prefs = *req.Preferences
	}

	assignments, err := s.canvas.FetchAssignments(ctx)
	if err != nil {
		return canvasError(c, err)
	}

	var freeSlots []types.FreeSlot
	if s.sink != nil && s.sink.Authorized() {
		now := time.Now()
		freeSlots, err = s.sink.FreeSlots(ctx, now, now.AddDate(0, 0, 14), prefs.SessionMinutes)
		if err != nil {
			s.logger.Warn("free slot lookup failed", zap.Error(err))
			freeSlots = nil
		}
	}

	plan, err := s.planner.Generate(ctx, assignments, prefs, freeSlots)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}

	var events []types.CalendarEvent
	if req.CreateEvents {
		if s.sink == nil || !s.sink.Authorized() {
			return c.JSON(http.StatusConflict, errorResponse{Error: "authorize Google Calendar before creating events"})
		}
		events, err = s.sink.CreateStudyEvents(ctx, plan.Tasks)
		if err != nil {
			return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"plan":            plan,
		"calendar_events": events,
	})
}

type classifyRequest struct {
	Assignments []types.Assignment `json:"assignments"`
}

func (s *Server) handleClassify(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if len(req.Assignments) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "no assignments provided"})
	}
	classifications := s.planner.Classify(c.Request().Context(), req.Assignments)
	return c.JSON(http.StatusOK, map[string]any{"classifications": classifications})
}

func (s *Server) handleGoogleAuthURL(c echo.Context) error {
	if s.sink == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "google calendar is not configured"})
	}
	state := c.QueryParam("state")
	if state == "" {
		state = "study-planner"
	}
	return c.JSON(http.StatusOK, map[string]string{"auth_url": s.sink.AuthURL(state)})
}

func (s *Server) handleGoogleCallback(c echo.Context) error {
	if s.sink == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "google calendar is not configured"})
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing authorization code"})
	}
	if err := s.sink.HandleCallback(c.Request().Context(), code); err != nil {
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "authorized"})
}

type googleTokenRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry"`
}

// handleGoogleAuthenticate authorizes the calendar sink from a token the
// caller already holds, without the web consent flow.
func (s *Server) handleGoogleAuthenticate(c echo.Context) error {
	if s.sink == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "google calendar is not configured"})
	}
	var req googleTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.AccessToken == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "access_token is required"})
	}

	token := &oauth2.Token{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	}
	if req.Expiry != "" {
		expiry, err := time.Parse(time.RFC3339, req.Expiry)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "expiry must be RFC3339"})
		}
		token.Expiry = expiry
	}

	if err := s.sink.AuthorizeToken(c.Request().Context(), token); err != nil {
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "authorized"})
}

type createEventsRequest struct {
	Tasks []types.StudyTask `json:"tasks"`
}

func (s *Server) handleCreateEvents(c echo.Context) error {
	var req createEventsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if len(req.Tasks) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "no tasks provided"})
	}
	events, err := s.createEvents(c, req.Tasks)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"events":  events,
		"created": len(events),
	})
}

func (s *Server) createEvents(c echo.Context, tasks []types.StudyTask) ([]types.CalendarEvent, error) {
	if s.sink == nil {
		return nil, c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "google calendar is not configured"})
	}
	events, err := s.sink.CreateStudyEvents(c.Request().Context(), tasks)
	if err != nil {
		if errors.Is(err, gcal.ErrNotAuthorized) {
			return nil, c.JSON(http.StatusConflict, errorResponse{Error: "authorize Google Calendar first"})
		}
		return nil, c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
	return events, nil
}

func (s *Server) handleFreeSlots(c echo.Context) error {
	if s.sink == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "google calendar is not configured"})
	}

	days := 7
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "days must be between 1 and 60"})
		}
		days = n
	}
	minMinutes := 30
	if v := c.QueryParam("min_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "min_minutes must be a positive integer"})
		}
		minMinutes = n
	}

	now := time.Now()
	slots, err := s.sink.FreeSlots(c.Request().Context(), now, now.AddDate(0, 0, days), minMinutes)
	if err != nil {
		if errors.Is(err, gcal.ErrNotAuthorized) {
			return c.JSON(http.StatusConflict, errorResponse{Error: "authorize Google Calendar first"})
		}
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"free_slots": slots,
		"count":      len(slots),
	})
}

func (s *Server) handleDeleteEvent(c echo.Context) error {
	if s.sink == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "google calendar is not configured"})
	}
	eventID := c.Param("event_id")
	if err := s.sink.DeleteEvent(c.Request().Context(), eventID); err != nil {
		if errors.Is(err, gcal.ErrNotAuthorized) {
			return c.JSON(http.StatusConflict, errorResponse{Error: "authorize Google Calendar first"})
		}
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}
