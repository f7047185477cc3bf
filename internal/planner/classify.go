package planner

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"studyplanner/internal/types"
)

const (
	classifyMaxTokens       = 2048
	defaultClassifyCategory = "medium_effort"
	defaultClassifyMinutes  = 120
)

// Classify estimates effort for each assignment. Like Generate it never
// fails: a broken or unusable backend reply yields heuristic estimates.
func (s *Service) Classify(ctx context.Context, assignments []types.Assignment) []types.Classification {
	if len(assignments) == 0 {
		return nil
	}

	req := chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: buildClassificationPrompt(assignments)}},
		Temperature: 0,
		MaxTokens:   classifyMaxTokens,
	}
	reply, err := s.client.send(ctx, req)
	if err != nil {
		s.logger.Warn("classification backend unavailable, using heuristics",
			zap.String("kind", errorKind(err)),
			zap.Error(err))
		return fallbackClassifications(assignments)
	}

	value, err := safeParseJSON(reply.Text)
	if err != nil {
		s.logger.Warn("classification reply unparseable, using heuristics", zap.Error(err))
		return fallbackClassifications(assignments)
	}

	entries, ok := value.([]any)
	if !ok {
		// Some models wrap the array in an object.
		if obj, isObj := value.(map[string]any); isObj {
			for _, v := range obj {
				if arr, isArr := v.([]any); isArr {
					entries = arr
					break
				}
			}
		}
	}
	if entries == nil {
		s.logger.Warn("classification reply has no array, using heuristics")
		return fallbackClassifications(assignments)
	}

	known := make(map[int64]bool, len(assignments))
	for _, a := range assignments {
		known[a.ID] = true
	}

	out := make([]types.Classification, 0, len(assignments))
	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		id := int64(intField(fields, "assignment_id", 0))
		if !known[id] {
			continue
		}
		c := types.Classification{
			AssignmentID:     id,
			Category:         stringField(fields, "category", defaultClassifyCategory),
			EstimatedMinutes: intField(fields, "estimated_time_minutes", defaultClassifyMinutes),
			Reasoning:        stringField(fields, "reasoning", ""),
		}
		if c.EstimatedMinutes <= 0 {
			c.EstimatedMinutes = defaultClassifyMinutes
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return fallbackClassifications(assignments)
	}
	return out
}

// fallbackClassifications estimates effort from title keywords and point
// values when the backend cannot.
func fallbackClassifications(assignments []types.Assignment) []types.Classification {
	out := make([]types.Classification, 0, len(assignments))
	for _, a := range assignments {
		category, minutes := heuristicEffort(a)
		out = append(out, types.Classification{
			AssignmentID:     a.ID,
			Category:         category,
			EstimatedMinutes: minutes,
			Reasoning:        "Estimated from assignment title and point value",
		})
	}
	return out
}

func heuristicEffort(a types.Assignment) (string, int) {
	title := strings.ToLower(a.Title)
	points := 0.0
	if a.Points != nil {
		points = *a.Points
	}

	switch {
	case strings.Contains(title, "thesis") || strings.Contains(title, "final project") || points >= 200:
		return "major_project", 600
	case strings.Contains(title, "paper") || strings.Contains(title, "essay") ||
		strings.Contains(title, "research") || strings.Contains(title, "project") ||
		a.Category == types.CategoryPaper || a.Category == types.CategoryProject || points >= 100:
		return "long_project", 300
	case strings.Contains(title, "quiz") || (points > 0 && points <= 10):
		return "quick_task", 45
	case strings.Contains(title, "exam") || strings.Contains(title, "test") ||
		strings.Contains(title, "midterm") || a.Category == types.CategoryExam:
		return "long_project", 240
	case strings.Contains(title, "homework") || strings.Contains(title, "problem") ||
		a.Category == types.CategoryProblemSet:
		return "medium_effort", 120
	default:
		return defaultClassifyCategory, defaultClassifyMinutes
	}
}
