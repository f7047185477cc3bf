package planner

import (
	"fmt"
	"time"

	"studyplanner/internal/types"
)

// fallbackPlan builds a deterministic plan with no backend involvement.
// Each assignment due more than three days out gets a fixed three-task
// arc: an early review, a main work block, and a final review the day
// before the deadline.
func fallbackPlan(assignments []types.Assignment, now time.Time) *types.StudyPlan {
	var tasks []types.StudyTask

	for _, a := range assignments {
		if a.DueAt == nil {
			continue
		}
		daysUntil := int(a.DueAt.Sub(now).Hours() / 24)
		if daysUntil <= 3 {
			continue
		}

		courseID, assignmentID := a.CourseID, a.ID
		workOffset := daysUntil - 2
		if workOffset < 2 {
			workOffset = 2
		}
		workPriority := types.PriorityMedium
		if daysUntil <= 5 {
			workPriority = types.PriorityHigh
		}

		tasks = append(tasks,
			types.StudyTask{
				TaskName:        fmt.Sprintf("Review requirements for %s", a.Title),
				AssignmentTitle: a.Title,
				CourseName:      a.CourseName,
				DurationMinutes: 90,
				Date:            now.AddDate(0, 0, 1).Format("2006-01-02"),
				StartTime:       "14:00",
				Priority:        types.PriorityMedium,
				Description:     fmt.Sprintf("Read through the requirements and gather materials for %s", a.Title),
				CourseID:        &courseID,
				AssignmentID:    &assignmentID,
			},
			types.StudyTask{
				TaskName:        fmt.Sprintf("Work on %s", a.Title),
				AssignmentTitle: a.Title,
				CourseName:      a.CourseName,
				DurationMinutes: 120,
				Date:            now.AddDate(0, 0, workOffset).Format("2006-01-02"),
				StartTime:       "10:00",
				Priority:        workPriority,
				Description:     fmt.Sprintf("Main work session for %s", a.Title),
				CourseID:        &courseID,
				AssignmentID:    &assignmentID,
			},
			types.StudyTask{
				TaskName:        fmt.Sprintf("Final review of %s", a.Title),
				AssignmentTitle: a.Title,
				CourseName:      a.CourseName,
				DurationMinutes: 60,
				Date:            a.DueAt.AddDate(0, 0, -1).Format("2006-01-02"),
				StartTime:       "15:00",
				Priority:        types.PriorityHigh,
				Description:     fmt.Sprintf("Final check and polish before submitting %s", a.Title),
				CourseID:        &courseID,
				AssignmentID:    &assignmentID,
			},
		)
	}

	total := 0
	for _, t := range tasks {
		total += t.DurationMinutes
	}

	return &types.StudyPlan{
		Tasks:        tasks,
		TotalMinutes: total,
		Summary:      fmt.Sprintf("Basic study plan with %d tasks for %d assignments", len(tasks), len(assignments)),
	}
}
