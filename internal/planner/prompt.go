package planner

import (
	"fmt"
	"strings"
	"time"

	"studyplanner/internal/types"
)

// buildPrompt renders the study-plan generation prompt: assignments, user
// preferences, optional calendar availability, and the exact output schema
// the repairer expects back.
func buildPrompt(assignments []types.Assignment, prefs types.Preferences, freeSlots []types.FreeSlot, now time.Time) string {
	var b strings.Builder

	b.WriteString("You are an expert study planner. Create a detailed, realistic study plan for the following assignments.\n\n")
	fmt.Fprintf(&b, "Current Date: %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Current Time: %s\n\n", now.Format("15:04"))

	b.WriteString("ASSIGNMENTS:\n")
	for i, a := range assignments {
		dueStr := "No due date"
		if a.DueAt != nil {
			dueStr = a.DueAt.In(now.Location()).Format("2006-01-02 15:04 MST")
		}
		points := "N/A"
		if a.Points != nil {
			points = fmt.Sprintf("%g", *a.Points)
		}
		description := "No description"
		if a.Description != "" {
			description = snippet(a.Description, 200)
		}
		fmt.Fprintf(&b, "\nAssignment %d:\n", i+1)
		fmt.Fprintf(&b, "- Title: %s\n", a.Title)
		fmt.Fprintf(&b, "- Course: %s\n", a.CourseName)
		fmt.Fprintf(&b, "- Type: %s\n", a.Category)
		fmt.Fprintf(&b, "- Due Date: %s\n", dueStr)
		fmt.Fprintf(&b, "- Points: %s\n", points)
		fmt.Fprintf(&b, "- Description: %s\n", description)
	}

	weekends := "No"
	if prefs.AllowWeekends {
		weekends = "Yes"
	}
	b.WriteString("\nUSER PREFERENCES:\n")
	fmt.Fprintf(&b, "- Study session length: %d minutes\n", prefs.SessionMinutes)
	fmt.Fprintf(&b, "- Break frequency: %d minutes (Pomodoro technique)\n", prefs.BreakMinutes)
	fmt.Fprintf(&b, "- Maximum daily study hours: %g hours\n", prefs.DailyCapHours)
	fmt.Fprintf(&b, "- Preferred study times: %s\n", strings.Join(prefs.PreferredWindows, ", "))
	fmt.Fprintf(&b, "- Buffer days before deadline: %d days\n", prefs.BufferDays)
	fmt.Fprintf(&b, "- Study on weekends: %s\n", weekends)

	b.WriteString("\nCALENDAR AVAILABILITY:\n")
	if len(freeSlots) > 0 {
		b.WriteString("The user has the following free time slots available in their calendar (ISO datetimes):\n")
		for _, slot := range freeSlots {
			fmt.Fprintf(&b, "- Free slot: %s to %s (%d minutes)\n", slot.Start, slot.End, slot.DurationMinutes)
		}
		b.WriteString("Only schedule study tasks inside these free slots. Do not schedule during busy events.\n")
	} else {
		b.WriteString("No calendar availability was provided; schedule tasks according to preferred study times.\n")
	}

	fmt.Fprintf(&b, `
INSTRUCTIONS:
1. Break down EACH assignment into specific, actionable study tasks
2. Estimate realistic time needed for each task (in minutes)
3. Schedule tasks strategically:
   - Start earlier for harder/longer assignments
   - Finish at least %d day(s) before due date
   - Distribute work evenly across available days
   - Consider assignment type (exams need more review, papers need drafting/editing, etc.)
4. Prioritize based on:
   - Due date proximity
   - Point value/weight
   - Assignment difficulty
5. Schedule tasks during preferred study times when possible
6. Keep sessions at or under %d minutes

OUTPUT FORMAT:
Return ONLY a valid JSON object with this exact structure:
{
    "tasks": [
        {
            "task_name": "Specific task description",
            "assignment_title": "Assignment name",
            "course_name": "Course name",
            "duration_minutes": 60,
            "suggested_date": "2025-11-10",
            "suggested_start_time": "14:00",
            "priority": "high|medium|low",
            "description": "Detailed description of what to do"
        }
    ],
    "plan_summary": "Brief overview of the study plan"
}

IMPORTANT:
- Use 24-hour time format (HH:MM)
- Use ISO date format (YYYY-MM-DD)
- Ensure dates are realistic and in the future
- Return ONLY the JSON object, no additional text or markdown formatting
- Make sure all tasks have realistic time estimates
`, prefs.BufferDays, prefs.SessionMinutes)

	return b.String()
}

// buildClassificationPrompt renders the effort-classification prompt.
func buildClassificationPrompt(assignments []types.Assignment) string {
	var b strings.Builder

	b.WriteString("Analyze the following assignments and classify each one into a category based on estimated time to complete. Consider the title, description, type, points, and due date.\n\n")
	b.WriteString("ASSIGNMENTS:\n")
	for i, a := range assignments {
		dueStr := "No due date"
		if a.DueAt != nil {
			dueStr = a.DueAt.Format("2006-01-02 15:04")
		}
		points := "N/A"
		if a.Points != nil {
			points = fmt.Sprintf("%g", *a.Points)
		}
		description := "No description"
		if a.Description != "" {
			description = snippet(a.Description, 500)
		}
		fmt.Fprintf(&b, "\nAssignment %d (ID: %d):\n", i+1, a.ID)
		fmt.Fprintf(&b, "- Title: %s\n", a.Title)
		fmt.Fprintf(&b, "- Course: %s\n", a.CourseName)
		fmt.Fprintf(&b, "- Type: %s\n", a.Category)
		fmt.Fprintf(&b, "- Due Date: %s\n", dueStr)
		fmt.Fprintf(&b, "- Points: %s\n", points)
		fmt.Fprintf(&b, "- Description: %s\n", description)
	}

	b.WriteString(`
CATEGORIES (based on estimated time):
- "quick_task": 15-60 minutes (simple quizzes, short responses, quick readings)
- "medium_effort": 1-3 hours (homework problems, short essays, medium projects)
- "long_project": 3-8 hours (research papers, large projects, comprehensive exams)
- "major_project": 8+ hours (thesis work, major research, complex multi-part projects)

INSTRUCTIONS:
1. Analyze each assignment's description, title, type, and point value
2. Estimate realistic time to complete (in minutes)
3. Classify into the appropriate category
4. Consider: complexity, length, research needed, writing required, problem-solving difficulty

OUTPUT FORMAT:
Return ONLY a valid JSON array with this exact structure:
[
  {
    "assignment_id": 12345,
    "category": "medium_effort",
    "estimated_time_minutes": 120,
    "reasoning": "Brief explanation of classification"
  }
]

IMPORTANT:
- Return ONLY the JSON array, no additional text or markdown
- Include ALL assignments in the response
- Use realistic time estimates based on typical student work
- Categories should reflect actual time needed, not just assignment type
`)

	return b.String()
}
