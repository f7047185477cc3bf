// Package planner turns unreliable backend output into validated study plans.
// The pipeline is: prompt, send, detect truncation, repair or negotiate a
// continuation, synthesize, and when everything fails, fall back to a
// deterministic plan. Generate never surfaces a backend failure to callers.
package planner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studyplanner/internal/types"
)

const (
	planTemperature = 0.7
	planMaxTokens   = 2048
)

// Service is the planning core. It owns the backend client and the clock;
// both are injectable for tests.
type Service struct {
	client *Client
	logger *zap.Logger
	now    func() time.Time
	loc    *time.Location
}

func NewService(client *Client, logger *zap.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		client: client,
		logger: logger,
		now:    time.Now,
		loc:    loc,
	}
}

// Generate produces a study plan for the given assignments. Backend
// failures of any kind degrade to the deterministic fallback plan; the
// only error returned is context cancellation.
func (s *Service) Generate(ctx context.Context, assignments []types.Assignment, prefs types.Preferences, freeSlots []types.FreeSlot) (*types.StudyPlan, error) {
	now := s.now().In(s.loc)
	prompt := buildPrompt(assignments, prefs, freeSlots, now)

	req := chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: planTemperature,
		MaxTokens:   planMaxTokens,
	}
	reply, err := s.client.send(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return s.degrade(assignments, now, err), nil
	}

	text := reply.Text
	if reply.Truncated() {
		s.logger.Warn("backend reply truncated, negotiating continuation",
			zap.String("finish_reason", reply.FinishReason),
			zap.Int("partial_len", len(text)))
		value, err := s.completeJSON(ctx, text, defaultContinuationAttempts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return s.degrade(assignments, now, err), nil
		}
		structure, err := structureFrom(value, text)
		if err != nil {
			return s.degrade(assignments, now, err), nil
		}
		return synthesizePlan(*structure, assignments, s.logger), nil
	}

	structure, err := parsePlan(text)
	if err == nil {
		return synthesizePlan(*structure, assignments, s.logger), nil
	}

	// The reply finished normally but did not parse; the text may still be
	// an effectively truncated fragment, so try one continuation round.
	s.logger.Warn("backend reply unparseable, attempting completion",
		zap.String("kind", errorKind(err)),
		zap.Error(err))
	value, cerr := s.completeJSON(ctx, text, defaultContinuationAttempts)
	if cerr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return s.degrade(assignments, now, cerr), nil
	}
	structure, serr := structureFrom(value, text)
	if serr != nil {
		return s.degrade(assignments, now, serr), nil
	}
	return synthesizePlan(*structure, assignments, s.logger), nil
}

// degrade logs the classified failure and returns the deterministic plan.
func (s *Service) degrade(assignments []types.Assignment, now time.Time, cause error) *types.StudyPlan {
	s.logger.Warn("falling back to deterministic plan",
		zap.String("kind", errorKind(cause)),
		zap.Error(cause))
	return fallbackPlan(assignments, now)
}
