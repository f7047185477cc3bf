package planner

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studyplanner/internal/types"
)

func testAssignments(t *testing.T) []types.Assignment {
	t.Helper()
	due := time.Date(2026, 9, 15, 23, 59, 0, 0, time.UTC)
	points := 100.0
	return []types.Assignment{
		{
			ID:         101,
			Title:      "Essay on Thermodynamics",
			CourseID:   7,
			CourseName: "Physics 201",
			Category:   types.CategoryPaper,
			DueAt:      &due,
			Points:     &points,
		},
		{
			ID:         102,
			Title:      "Problem Set 4",
			CourseID:   8,
			CourseName: "Math 301",
			Category:   types.CategoryProblemSet,
			DueAt:      &due,
		},
	}
}

func TestSynthesizePlan(t *testing.T) {
	assignments := testAssignments(t)
	structure := RecoveredStructure{
		Tasks: []any{
			map[string]any{
				"task_name":            "Outline the essay",
				"assignment_title":     "Essay on Thermodynamics",
				"course_name":          "Physics 201",
				"duration_minutes":     float64(45),
				"suggested_date":       "2026-09-10",
				"suggested_start_time": "14:00",
				"priority":             "high",
				"description":          "Draft the outline",
			},
			"not a task at all",
			map[string]any{
				"task_name": "Skim the problem set",
				// everything else missing
			},
		},
		Summary: "Two usable tasks",
	}

	plan := synthesizePlan(structure, assignments, zap.NewNop())

	require.Len(t, plan.Tasks, 2, "malformed entry should be skipped, not fail the plan")
	require.Equal(t, "Two usable tasks", plan.Summary)
	require.Equal(t, 45+60, plan.TotalMinutes, "total is recomputed from surviving tasks")

	first := plan.Tasks[0]
	require.NotNil(t, first.AssignmentID)
	require.EqualValues(t, 101, *first.AssignmentID)
	require.NotNil(t, first.CourseID)
	require.EqualValues(t, 7, *first.CourseID)
	require.Equal(t, types.PriorityHigh, first.Priority)

	second := plan.Tasks[1]
	require.Nil(t, second.AssignmentID, "unmatched title leaves IDs nil")
	require.Equal(t, 60, second.DurationMinutes)
	require.Equal(t, "09:00", second.StartTime)
	require.Equal(t, types.PriorityMedium, second.Priority, "missing priority defaults to medium")
}

func TestSynthesizePlan_DuplicateTitles(t *testing.T) {
	due := time.Date(2026, 9, 20, 12, 0, 0, 0, time.UTC)
	assignments := []types.Assignment{
		{ID: 1, Title: "Homework", CourseID: 10, CourseName: "First Course", DueAt: &due},
		{ID: 2, Title: "Homework", CourseID: 20, CourseName: "Second Course", DueAt: &due},
	}
	structure := RecoveredStructure{
		Tasks: []any{
			map[string]any{"task_name": "Do it", "assignment_title": "Homework"},
		},
	}

	plan := synthesizePlan(structure, assignments, zap.NewNop())

	require.Len(t, plan.Tasks, 1)
	require.NotNil(t, plan.Tasks[0].AssignmentID)
	require.EqualValues(t, 1, *plan.Tasks[0].AssignmentID, "first matching assignment wins")
}

func TestSynthesizePlan_EmptyStructure(t *testing.T) {
	plan := synthesizePlan(RecoveredStructure{}, testAssignments(t), zap.NewNop())

	want := &types.StudyPlan{
		Tasks:        []types.StudyTask{},
		TotalMinutes: 0,
		Summary:      "Study plan with 0 tasks",
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("synthesizePlan() mismatch (-want +got):\n%s", diff)
	}
}
