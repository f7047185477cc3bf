package planner

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"studyplanner/internal/types"
)

// synthesizePlan turns a recovered structure into a validated StudyPlan.
// Malformed task entries are skipped rather than failing the whole plan,
// every field falls back to a usable default, and the plan total is
// recomputed from the tasks that survived.
func synthesizePlan(structure RecoveredStructure, assignments []types.Assignment, logger *zap.Logger) *types.StudyPlan {
	// First match wins on duplicate titles.
	byTitle := make(map[string]types.Assignment, len(assignments))
	for _, a := range assignments {
		if _, ok := byTitle[a.Title]; !ok {
			byTitle[a.Title] = a
		}
	}

	tasks := make([]types.StudyTask, 0, len(structure.Tasks))
	total := 0
	for i, entry := range structure.Tasks {
		fields, ok := entry.(map[string]any)
		if !ok {
			logger.Warn("skipping malformed task entry",
				zap.Int("index", i),
				zap.String("type", fmt.Sprintf("%T", entry)))
			continue
		}

		task := types.StudyTask{
			TaskName:        stringField(fields, "task_name", "Study session"),
			AssignmentTitle: stringField(fields, "assignment_title", ""),
			CourseName:      stringField(fields, "course_name", ""),
			DurationMinutes: intField(fields, "duration_minutes", 60),
			Date:            stringField(fields, "suggested_date", ""),
			StartTime:       stringField(fields, "suggested_start_time", "09:00"),
			Priority:        types.NormalizePriority(stringField(fields, "priority", "")),
			Description:     stringField(fields, "description", ""),
		}
		if task.DurationMinutes <= 0 {
			task.DurationMinutes = 60
		}

		if match, ok := byTitle[task.AssignmentTitle]; ok {
			courseID, assignmentID := match.CourseID, match.ID
			task.CourseID = &courseID
			task.AssignmentID = &assignmentID
			if task.CourseName == "" {
				task.CourseName = match.CourseName
			}
		}

		total += task.DurationMinutes
		tasks = append(tasks, task)
	}

	summary := strings.TrimSpace(structure.Summary)
	if summary == "" {
		summary = fmt.Sprintf("Study plan with %d tasks", len(tasks))
	}

	return &types.StudyPlan{
		Tasks:        tasks,
		TotalMinutes: total,
		Summary:      summary,
	}
}

// stringField reads a string-valued field, tolerating absent or non-string
// values.
func stringField(fields map[string]any, key, fallback string) string {
	if v, ok := fields[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// intField reads an integer-valued field. Decoded JSON numbers arrive as
// float64, so both forms are accepted.
func intField(fields map[string]any, key string, fallback int) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
