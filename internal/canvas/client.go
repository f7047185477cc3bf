// Package canvas fetches assignments from a Canvas LMS instance. The
// client tolerates partially broken instances: individual endpoint
// failures are logged and skipped so that callers always get the best
// available assignment set.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"studyplanner/internal/types"
)

const (
	maxResponseBytes   = 10 * 1024 * 1024
	courseFetchWorkers = 4
	perPage            = 100
)

// ErrNotAuthenticated is returned when assignment fetches are attempted
// before a successful Authenticate call.
var ErrNotAuthenticated = errors.New("canvas: not authenticated")

// Client talks to the Canvas REST API with a user access token.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger

	mu      sync.RWMutex
	baseURL string
	token   string
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Authenticate verifies the URL and token against the Canvas self endpoint
// and stores them for subsequent fetches.
func (c *Client) Authenticate(ctx context.Context, canvasURL, token string) error {
	canvasURL = strings.TrimRight(canvasURL, "/")
	if canvasURL == "" || token == "" {
		return errors.New("canvas: url and access token are required")
	}

	var self struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, canvasURL, token, "/api/v1/users/self", nil, &self); err != nil {
		return fmt.Errorf("canvas: authentication failed: %w", err)
	}

	c.mu.Lock()
	c.baseURL = canvasURL
	c.token = token
	c.mu.Unlock()

	c.logger.Info("canvas authenticated",
		zap.String("url", canvasURL),
		zap.Int64("user_id", self.ID))
	return nil
}

func (c *Client) credentials() (baseURL, token string, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == "" || c.token == "" {
		return "", "", ErrNotAuthenticated
	}
	return c.baseURL, c.token, nil
}

// Authenticated reports whether credentials have been stored.
func (c *Client) Authenticated() bool {
	_, _, err := c.credentials()
	return err == nil
}

// rawAssignment is the Canvas wire shape for one assignment, covering both
// the assignment endpoints and the todo/upcoming wrappers.
type rawAssignment struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	CourseID        int64    `json:"course_id"`
	DueAt           *string  `json:"due_at"`
	PointsPossible  *float64 `json:"points_possible"`
	Description     string   `json:"description"`
	SubmissionTypes []string `json:"submission_types"`
	HTMLURL         string   `json:"html_url"`
}

type rawCourse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FetchAssignments gathers upcoming assignments from the todo list, the
// upcoming-events feed, and every active course, deduplicated by ID and
// sorted by due date with undated work last. Past-due assignments are
// dropped.
func (c *Client) FetchAssignments(ctx context.Context) ([]types.Assignment, error) {
	baseURL, token, err := c.credentials()
	if err != nil {
		return nil, err
	}

	courses, err := c.activeCourses(ctx, baseURL, token)
	if err != nil {
		return nil, err
	}
	courseNames := make(map[int64]string, len(courses))
	for _, course := range courses {
		courseNames[course.ID] = course.Name
	}

	seen := make(map[int64]bool)
	var mu sync.Mutex
	var all []rawAssignment
	add := func(items []rawAssignment) {
		mu.Lock()
		defer mu.Unlock()
		for _, item := range items {
			if item.ID == 0 || seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			all = append(all, item)
		}
	}

	// Todo and upcoming feeds are best effort; some instances disable them.
	var todo []struct {
		Assignment *rawAssignment `json:"assignment"`
	}
	if err := c.getJSON(ctx, baseURL, token, "/api/v1/users/self/todo", nil, &todo); err != nil {
		c.logger.Warn("canvas todo fetch failed", zap.Error(err))
	} else {
		var items []rawAssignment
		for _, t := range todo {
			if t.Assignment != nil {
				items = append(items, *t.Assignment)
			}
		}
		add(items)
	}

	var upcoming []struct {
		Assignment *rawAssignment `json:"assignment"`
	}
	if err := c.getJSON(ctx, baseURL, token, "/api/v1/users/self/upcoming_events", nil, &upcoming); err != nil {
		c.logger.Warn("canvas upcoming events fetch failed", zap.Error(err))
	} else {
		var items []rawAssignment
		for _, u := range upcoming {
			if u.Assignment != nil {
				items = append(items, *u.Assignment)
			}
		}
		add(items)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(courseFetchWorkers)
	for _, course := range courses {
		course := course
		g.Go(func() error {
			items, err := c.courseAssignments(gctx, baseURL, token, course.ID)
			if err != nil {
				c.logger.Warn("canvas course fetch failed",
					zap.Int64("course_id", course.ID),
					zap.Error(err))
				return nil
			}
			add(items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]types.Assignment, 0, len(all))
	for _, raw := range all {
		a := convertAssignment(raw, courseNames)
		if a.DueAt != nil && a.DueAt.Before(now) {
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		switch {
		case out[i].DueAt == nil:
			return false
		case out[j].DueAt == nil:
			return true
		default:
			return out[i].DueAt.Before(*out[j].DueAt)
		}
	})

	c.logger.Info("canvas assignments fetched",
		zap.Int("courses", len(courses)),
		zap.Int("assignments", len(out)))
	return out, nil
}

// FetchCourseAssignments returns the upcoming assignments of one course.
func (c *Client) FetchCourseAssignments(ctx context.Context, courseID int64) ([]types.Assignment, error) {
	baseURL, token, err := c.credentials()
	if err != nil {
		return nil, err
	}

	var course rawCourse
	names := map[int64]string{}
	if err := c.getJSON(ctx, baseURL, token, fmt.Sprintf("/api/v1/courses/%d", courseID), nil, &course); err == nil {
		names[course.ID] = course.Name
	}

	items, err := c.courseAssignments(ctx, baseURL, token, courseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]types.Assignment, 0, len(items))
	for _, raw := range items {
		if raw.CourseID == 0 {
			raw.CourseID = courseID
		}
		a := convertAssignment(raw, names)
		if a.DueAt != nil && a.DueAt.Before(now) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		switch {
		case out[i].DueAt == nil:
			return false
		case out[j].DueAt == nil:
			return true
		default:
			return out[i].DueAt.Before(*out[j].DueAt)
		}
	})
	return out, nil
}

func (c *Client) activeCourses(ctx context.Context, baseURL, token string) ([]rawCourse, error) {
	var courses []rawCourse
	params := url.Values{
		"enrollment_state": {"active"},
		"per_page":         {fmt.Sprint(perPage)},
	}
	if err := c.getJSON(ctx, baseURL, token, "/api/v1/courses", params, &courses); err != nil {
		return nil, fmt.Errorf("canvas: list courses: %w", err)
	}
	return courses, nil
}

func (c *Client) courseAssignments(ctx context.Context, baseURL, token string, courseID int64) ([]rawAssignment, error) {
	var items []rawAssignment
	params := url.Values{
		"bucket":   {"upcoming"},
		"per_page": {fmt.Sprint(perPage)},
	}
	path := fmt.Sprintf("/api/v1/courses/%d/assignments", courseID)
	if err := c.getJSON(ctx, baseURL, token, path, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, baseURL, token, path string, params url.Values, out any) error {
	u := baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func convertAssignment(raw rawAssignment, courseNames map[int64]string) types.Assignment {
	a := types.Assignment{
		ID:              raw.ID,
		Title:           raw.Name,
		CourseID:        raw.CourseID,
		CourseName:      courseNames[raw.CourseID],
		Category:        inferCategory(raw.Name),
		Description:     stripHTML(raw.Description),
		SubmissionTypes: raw.SubmissionTypes,
		HTMLURL:         raw.HTMLURL,
		Points:          raw.PointsPossible,
	}
	if a.CourseName == "" {
		a.CourseName = fmt.Sprintf("Course %d", raw.CourseID)
	}
	if raw.DueAt != nil && *raw.DueAt != "" {
		if t, err := time.Parse(time.RFC3339, *raw.DueAt); err == nil {
			a.DueAt = &t
		}
	}
	return a
}

// inferCategory guesses the kind of work from the assignment title.
func inferCategory(title string) types.AssignmentCategory {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "exam") || strings.Contains(t, "test") ||
		strings.Contains(t, "quiz") || strings.Contains(t, "midterm"):
		return types.CategoryExam
	case strings.Contains(t, "paper") || strings.Contains(t, "essay") ||
		strings.Contains(t, "report"):
		return types.CategoryPaper
	case strings.Contains(t, "project") || strings.Contains(t, "presentation"):
		return types.CategoryProject
	case strings.Contains(t, "homework") || strings.Contains(t, "problem") ||
		strings.Contains(t, "pset") || strings.Contains(t, "worksheet"):
		return types.CategoryProblemSet
	default:
		return types.CategoryAssignment
	}
}

// stripHTML flattens Canvas's HTML descriptions into plain text; they only
// feed prompts and summaries.
func stripHTML(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	text := strings.ReplaceAll(doc.Text(), " ", " ")
	return strings.TrimSpace(text)
}
