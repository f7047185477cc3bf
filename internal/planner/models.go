package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// modelPreferences is the hard-coded preference order used when no model is
// configured. Gemini variants first, then non-Google fallbacks.
var modelPreferences = []string{
	"google/gemini-2.5-pro",
	"google/gemini-2.5-pro-preview",
	"google/gemini-2.5-flash",
	"google/gemini-2.5-flash-preview-09-2025",
	"google/gemini-2.5-flash-lite",
	"google/gemini-2.0-flash-001",
	"google/gemini-1.0-pro",
	"anthropic/claude-opus-4.1",
	"anthropic/claude-3-opus",
	"openai/gpt-4-turbo",
}

// Safe defaults when configuration and the availability probe both come up
// empty.
const (
	defaultPrimaryModel  = "google/gemini-1.0-pro"
	defaultFallbackModel = "anthropic/claude-2.1"
)

// SelectModels fixes the primary and fallback identifiers for the process
// lifetime. Configured identifiers win; otherwise a best-effort probe of the
// backend's advertised models picks the first preference that exists, with a
// distinct fallback (another gemini when possible). Probe failures degrade
// to safe defaults rather than erroring: a wrong guess is corrected at
// request time by the identifier-rejection retry.
func (c *Client) SelectModels(ctx context.Context) {
	if c.primary == "" {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		available, err := c.ListModels(ctx)
		if err != nil {
			c.logger.Warn("model availability probe failed", zap.Error(err))
		} else {
			c.chooseFromAvailable(available)
		}
	}

	if c.primary == "" {
		c.primary = defaultPrimaryModel
	}
	if c.fallback == "" {
		c.fallback = defaultFallbackModel
	}
	c.logger.Info("backend models selected",
		zap.String("primary", c.primary),
		zap.String("fallback", c.fallback))
}

func (c *Client) chooseFromAvailable(available []string) {
	present := make(map[string]bool, len(available))
	for _, id := range available {
		present[id] = true
	}

	for _, id := range modelPreferences {
		if present[id] {
			c.primary = id
			break
		}
	}
	if c.primary == "" {
		return
	}

	if c.fallback == "" {
		for _, id := range available {
			if id != c.primary && strings.Contains(id, "gemini") {
				c.fallback = id
				return
			}
		}
		for _, id := range available {
			if id != c.primary {
				c.fallback = id
				return
			}
		}
	}
}

// ListModels fetches the identifiers the backend currently advertises,
// sorted family-first (gemini, then claude, then gpt-4) for stable
// preference scans.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read model list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: status %d: %s", resp.StatusCode, snippet(string(raw), 200))
	}

	var list modelList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return modelFamilyRank(ids[i]) < modelFamilyRank(ids[j])
	})
	return ids, nil
}

func modelFamilyRank(id string) int {
	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "gemini"):
		return 0
	case strings.Contains(lower, "claude"):
		return 1
	case strings.Contains(lower, "gpt-4"):
		return 2
	default:
		return 10
	}
}
