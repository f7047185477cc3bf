package planner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studyplanner/internal/config"
)

func TestChooseFromAvailable(t *testing.T) {
	tests := []struct {
		name         string
		available    []string
		wantPrimary  string
		wantFallback string
	}{
		{
			name:         "first preference wins",
			available:    []string{"google/gemini-2.5-pro", "google/gemini-2.5-flash", "openai/gpt-4-turbo"},
			wantPrimary:  "google/gemini-2.5-pro",
			wantFallback: "google/gemini-2.5-flash",
		},
		{
			name:         "fallback prefers another gemini",
			available:    []string{"anthropic/claude-3-opus", "google/gemini-2.5-flash", "google/gemini-2.0-flash-001"},
			wantPrimary:  "google/gemini-2.5-flash",
			wantFallback: "google/gemini-2.0-flash-001",
		},
		{
			name:         "non-gemini fallback when none left",
			available:    []string{"google/gemini-1.0-pro", "openai/gpt-4-turbo"},
			wantPrimary:  "google/gemini-1.0-pro",
			wantFallback: "openai/gpt-4-turbo",
		},
		{
			name:        "nothing preferred leaves primary empty",
			available:   []string{"mistralai/mistral-7b"},
			wantPrimary: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{logger: zap.NewNop()}
			c.chooseFromAvailable(tt.available)
			primary, fallback := c.Models()
			require.Equal(t, tt.wantPrimary, primary)
			require.Equal(t, tt.wantFallback, fallback)
		})
	}
}

func TestSelectModels_ConfiguredModelWins(t *testing.T) {
	c := NewClient(config.OpenRouter{
		BaseURL:       "http://127.0.0.1:0",
		Model:         "google/gemini-2.5-pro",
		FallbackModel: "anthropic/claude-3-opus",
	}, zap.NewNop())

	c.SelectModels(context.Background())

	primary, fallback := c.Models()
	require.Equal(t, "google/gemini-2.5-pro", primary)
	require.Equal(t, "anthropic/claude-3-opus", fallback)
}

func TestSelectModels_ProbeFailureUsesDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(config.OpenRouter{BaseURL: srv.URL, TimeoutSeconds: 2}, zap.NewNop())
	c.SelectModels(context.Background())

	primary, fallback := c.Models()
	require.Equal(t, defaultPrimaryModel, primary)
	require.Equal(t, defaultFallbackModel, fallback)
}

func TestListModels_SortsGeminiFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		fmt.Fprint(w, `{"data": [
			{"id": "openai/gpt-4-turbo"},
			{"id": "mistralai/mistral-7b"},
			{"id": "anthropic/claude-3-opus"},
			{"id": "google/gemini-2.5-flash"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(config.OpenRouter{BaseURL: srv.URL, TimeoutSeconds: 2}, zap.NewNop())
	ids, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"google/gemini-2.5-flash",
		"anthropic/claude-3-opus",
		"openai/gpt-4-turbo",
		"mistralai/mistral-7b",
	}, ids)
}
