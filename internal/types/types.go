// Package types holds the shared domain model: assignments coming from the
// upstream source, user scheduling preferences, and the study plan the core
// produces. Values here are plain data; construction-time invariants
// (recomputed totals, normalized priorities) live with the code that builds
// them.
package types

import "time"

// AssignmentCategory classifies an assignment by the kind of work it needs.
type AssignmentCategory string

const (
	CategoryAssignment AssignmentCategory = "assignment"
	CategoryExam       AssignmentCategory = "exam"
	CategoryPaper      AssignmentCategory = "paper"
	CategoryProblemSet AssignmentCategory = "problem_set"
	CategoryProject    AssignmentCategory = "project"
)

// Assignment is an upstream work item to be scheduled. It is produced by the
// assignment source and read-only to the planning core.
type Assignment struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	CourseID        int64              `json:"course_id"`
	CourseName      string             `json:"course_name"`
	Category        AssignmentCategory `json:"assignment_type"`
	DueAt           *time.Time         `json:"due_date,omitempty"`
	Points          *float64           `json:"points,omitempty"`
	Description     string             `json:"description,omitempty"`
	SubmissionTypes []string           `json:"submission_types,omitempty"`
	HTMLURL         string             `json:"html_url,omitempty"`
}

// Preferences captures how the user wants study time distributed.
// Zero values are filled in by DefaultPreferences; the value is immutable
// once handed to the core.
type Preferences struct {
	SessionMinutes   int      `json:"study_session_length"`
	BreakMinutes     int      `json:"break_frequency"`
	DailyCapHours    float64  `json:"daily_study_hours"`
	PreferredWindows []string `json:"preferred_study_times"`
	BufferDays       int      `json:"buffer_days"`
	AllowWeekends    bool     `json:"weekend_study"`
}

// DefaultPreferences returns the preferences applied when a request omits them.
func DefaultPreferences() Preferences {
	return Preferences{
		SessionMinutes:   60,
		BreakMinutes:     15,
		DailyCapHours:    4,
		PreferredWindows: []string{"09:00-12:00", "14:00-17:00"},
		BufferDays:       1,
		AllowWeekends:    true,
	}
}

// Priority is the urgency level of a scheduled task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NormalizePriority maps free-form priority text to one of the three levels.
// Unknown or missing values become medium.
func NormalizePriority(s string) Priority {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// StudyTask is a single scheduled block of work. CourseID and AssignmentID
// are resolved by title match against the source assignments and are nil when
// no match was found. Immutable after construction.
type StudyTask struct {
	TaskName        string   `json:"task_name"`
	AssignmentTitle string   `json:"assignment_title"`
	CourseName      string   `json:"course_name"`
	DurationMinutes int      `json:"duration_minutes"`
	Date            string   `json:"suggested_date"`
	StartTime       string   `json:"suggested_start_time"`
	Priority        Priority `json:"priority"`
	Description     string   `json:"description"`
	CourseID        *int64   `json:"course_id"`
	AssignmentID    *int64   `json:"assignment_id"`
}

// StudyPlan is the sole output of the planning core. TotalMinutes is always
// recomputed from the task durations, never set independently.
type StudyPlan struct {
	Tasks        []StudyTask `json:"tasks"`
	TotalMinutes int         `json:"total_study_time"`
	Summary      string      `json:"plan_summary"`
}

// FreeSlot is an open window in the user's calendar, in ISO datetimes.
type FreeSlot struct {
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}

// CalendarEvent is the sink's confirmation for one created or updated event.
type CalendarEvent struct {
	EventID     string    `json:"event_id"`
	Summary     string    `json:"summary"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Description string    `json:"description"`
	HTMLLink    string    `json:"html_link"`
	Status      string    `json:"status"`
}

// Classification is an effort estimate for one assignment.
type Classification struct {
	AssignmentID     int64  `json:"assignment_id"`
	Category         string `json:"category"`
	EstimatedMinutes int    `json:"estimated_time_minutes"`
	Reasoning        string `json:"reasoning"`
}
