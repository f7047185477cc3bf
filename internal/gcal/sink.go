// Package gcal writes study plans into the user's Google Calendar and
// reads back availability. OAuth state is held in memory; the sink is
// usable only after a completed authorization flow.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"studyplanner/internal/config"
	"studyplanner/internal/types"
)

// ErrNotAuthorized is returned for calendar operations attempted before
// the OAuth flow has completed.
var ErrNotAuthorized = errors.New("gcal: calendar not authorized")

const eventPrefix = "\U0001F4DA Study: "

// priorityColors maps task priority to Google Calendar color IDs
// (11 red, 5 yellow, 10 green).
var priorityColors = map[types.Priority]string{
	types.PriorityHigh:   "11",
	types.PriorityMedium: "5",
	types.PriorityLow:    "10",
}

// Sink creates, updates, and deletes study events on the user's primary
// calendar.
type Sink struct {
	oauth  *oauth2.Config
	logger *zap.Logger
	loc    *time.Location

	mu  sync.Mutex
	srv *calendar.Service
}

func NewSink(cfg config.Google, logger *zap.Logger, loc *time.Location) *Sink {
	if loc == nil {
		loc = time.UTC
	}
	return &Sink{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		},
		logger: logger,
		loc:    loc,
	}
}

// AuthURL returns the consent URL to start the OAuth flow.
func (s *Sink) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges the authorization code and builds the calendar
// service with a self-refreshing token source.
func (s *Sink) HandleCallback(ctx context.Context, code string) error {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("gcal: exchange authorization code: %w", err)
	}

	srv, err := calendar.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
	if err != nil {
		return fmt.Errorf("gcal: build calendar service: %w", err)
	}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info("google calendar authorized")
	return nil
}

// AuthorizeToken authorizes the sink directly from an existing OAuth token,
// bypassing the web flow. Refreshing still goes through the configured
// client when a refresh token is present.
func (s *Sink) AuthorizeToken(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("gcal: access token is required")
	}

	srv, err := calendar.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
	if err != nil {
		return fmt.Errorf("gcal: build calendar service: %w", err)
	}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info("google calendar authorized from provided token")
	return nil
}

// Authorized reports whether the OAuth flow has completed.
func (s *Sink) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

func (s *Sink) service() (*calendar.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil, ErrNotAuthorized
	}
	return s.srv, nil
}

// CreateStudyEvents writes one calendar event per task. Individual event
// failures are logged and skipped; the confirmations for the events that
// were created are returned.
func (s *Sink) CreateStudyEvents(ctx context.Context, tasks []types.StudyTask) ([]types.CalendarEvent, error) {
	srv, err := s.service()
	if err != nil {
		return nil, err
	}

	events := make([]types.CalendarEvent, 0, len(tasks))
	for _, task := range tasks {
		ev, err := s.createEvent(ctx, srv, task)
		if err != nil {
			s.logger.Warn("calendar event creation failed",
				zap.String("task", task.TaskName),
				zap.Error(err))
			continue
		}
		events = append(events, *ev)
	}
	s.logger.Info("calendar events created",
		zap.Int("requested", len(tasks)),
		zap.Int("created", len(events)))
	return events, nil
}

func (s *Sink) createEvent(ctx context.Context, srv *calendar.Service, task types.StudyTask) (*types.CalendarEvent, error) {
	start, err := s.taskStart(task)
	if err != nil {
		return nil, err
	}
	end := start.Add(time.Duration(task.DurationMinutes) * time.Minute)

	description := task.Description
	if task.AssignmentTitle != "" {
		description = fmt.Sprintf("Assignment: %s\nCourse: %s\n\n%s",
			task.AssignmentTitle, task.CourseName, task.Description)
	}

	event := &calendar.Event{
		Summary:     eventPrefix + task.TaskName,
		Description: description,
		ColorId:     priorityColors[task.Priority],
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: 30},
				{Method: "popup", Minutes: 10},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := srv.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &types.CalendarEvent{
		EventID:     created.Id,
		Summary:     created.Summary,
		StartTime:   start,
		EndTime:     end,
		Description: description,
		HTMLLink:    created.HtmlLink,
		Status:      created.Status,
	}, nil
}

func (s *Sink) taskStart(task types.StudyTask) (time.Time, error) {
	if task.Date == "" {
		return time.Time{}, errors.New("task has no suggested date")
	}
	startTime := task.StartTime
	if startTime == "" {
		startTime = "09:00"
	}
	return time.ParseInLocation("2006-01-02 15:04", task.Date+" "+startTime, s.loc)
}

// UpdateEvent reschedules an existing study event.
func (s *Sink) UpdateEvent(ctx context.Context, eventID string, start time.Time, durationMinutes int) (*types.CalendarEvent, error) {
	srv, err := s.service()
	if err != nil {
		return nil, err
	}

	event, err := srv.Events.Get("primary", eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: fetch event %s: %w", eventID, err)
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: s.loc.String()}
	event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: s.loc.String()}

	updated, err := srv.Events.Update("primary", eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: update event %s: %w", eventID, err)
	}
	return &types.CalendarEvent{
		EventID:     updated.Id,
		Summary:     updated.Summary,
		StartTime:   start,
		EndTime:     end,
		Description: updated.Description,
		HTMLLink:    updated.HtmlLink,
		Status:      updated.Status,
	}, nil
}

// DeleteEvent removes a study event from the primary calendar.
func (s *Sink) DeleteEvent(ctx context.Context, eventID string) error {
	srv, err := s.service()
	if err != nil {
		return err
	}
	if err := srv.Events.Delete("primary", eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: delete event %s: %w", eventID, err)
	}
	return nil
}

// FreeSlots queries free/busy for the window and returns the open slots of
// at least minMinutes, clipped to daytime hours.
func (s *Sink) FreeSlots(ctx context.Context, from, to time.Time, minMinutes int) ([]types.FreeSlot, error) {
	srv, err := s.service()
	if err != nil {
		return nil, err
	}

	fb, err := srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: freebusy query: %w", err)
	}

	var busy []interval
	if cal, ok := fb.Calendars["primary"]; ok {
		for _, b := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, b.Start)
			end, err2 := time.Parse(time.RFC3339, b.End)
			if err1 != nil || err2 != nil {
				continue
			}
			busy = append(busy, interval{start.In(s.loc), end.In(s.loc)})
		}
	}
	return computeFreeSlots(from.In(s.loc), to.In(s.loc), busy, minMinutes), nil
}

type interval struct {
	start, end time.Time
}

// computeFreeSlots walks the window day by day, clips each day to 08:00
// through 22:00, subtracts the busy intervals, and keeps gaps of at least
// minMinutes.
func computeFreeSlots(from, to time.Time, busy []interval, minMinutes int) []types.FreeSlot {
	if minMinutes <= 0 {
		minMinutes = 30
	}
	min := time.Duration(minMinutes) * time.Minute

	var slots []types.FreeSlot
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 8, 0, 0, 0, day.Location())
		dayEnd := time.Date(day.Year(), day.Month(), day.Day(), 22, 0, 0, 0, day.Location())
		if dayStart.Before(from) {
			dayStart = from
		}
		if dayEnd.After(to) {
			dayEnd = to
		}
		if !dayStart.Before(dayEnd) {
			continue
		}

		cursor := dayStart
		for _, b := range sortedByStart(busy) {
			if !b.end.After(dayStart) || !b.start.Before(dayEnd) {
				continue
			}
			if b.start.After(cursor) {
				appendSlot(&slots, cursor, minTime(b.start, dayEnd), min)
			}
			if b.end.After(cursor) {
				cursor = b.end
			}
		}
		if cursor.Before(dayEnd) {
			appendSlot(&slots, cursor, dayEnd, min)
		}
	}
	return slots
}

func appendSlot(slots *[]types.FreeSlot, start, end time.Time, min time.Duration) {
	if d := end.Sub(start); d >= min {
		*slots = append(*slots, types.FreeSlot{
			Start:           start.Format(time.RFC3339),
			End:             end.Format(time.RFC3339),
			DurationMinutes: int(d.Minutes()),
		})
	}
}

func sortedByStart(busy []interval) []interval {
	out := make([]interval, len(busy))
	copy(out, busy)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].start.Before(out[j-1].start); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
