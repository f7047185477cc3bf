package planner

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const defaultContinuationAttempts = 3

const continuationSystemPrompt = "You are a helpful assistant that must reply with valid JSON only."

func buildContinuationPrompt(partial string) string {
	return "The previous response appears to have been cut off. Continue and return ONLY the complete JSON object, " +
		"with no explanation, commentary, or markdown. Do not wrap in code fences. If the partial JSON is repeated, " +
		"only include the missing remainder so that concatenating the partial and this continuation yields a valid JSON.\n\n" +
		"Partial output:\n" + partial
}

// completeJSON asks the backend to finish a truncated reply. Each round
// concatenates the continuation onto the running text and reparses; the
// loop ends on the first parseable result. Continuation requests run at
// temperature zero so the remainder stays deterministic.
func (s *Service) completeJSON(ctx context.Context, partial string, attempts int) (any, error) {
	if attempts <= 0 {
		attempts = defaultContinuationAttempts
	}
	normalized := stripCodeFences(partial)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		s.logger.Info("requesting continuation",
			zap.Int("attempt", attempt),
			zap.Int("partial_len", len(normalized)))

		req := chatRequest{
			Messages: []chatMessage{
				{Role: "system", Content: continuationSystemPrompt},
				{Role: "user", Content: buildContinuationPrompt(normalized)},
			},
			Temperature: 0,
			MaxTokens:   1024,
		}
		reply, err := s.client.send(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		combined := normalized + reply.Text
		combined = strings.ReplaceAll(combined, "```json", "")
		combined = strings.ReplaceAll(combined, "```", "")

		value, err := safeParseJSON(combined)
		if err == nil {
			return value, nil
		}
		lastErr = err
		normalized = combined
	}

	return nil, &RecoveryExhaustedError{Attempts: attempts, Err: lastErr}
}
