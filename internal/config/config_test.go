package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8000", cfg.Addr())
	require.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
	require.Equal(t, 30*time.Second, cfg.OpenRouter.Timeout())
	require.Equal(t, "America/New_York", cfg.Timezone)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9100
debug: true
canvas:
  url: https://school.instructure.com
openrouter:
  model: google/gemini-2.5-pro
  timeout_seconds: 45
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Port)
	require.True(t, cfg.Debug)
	require.Equal(t, "https://school.instructure.com", cfg.Canvas.URL)
	require.Equal(t, "google/gemini-2.5-pro", cfg.OpenRouter.Model)
	require.Equal(t, 45*time.Second, cfg.OpenRouter.Timeout())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9100\n"), 0o644))

	t.Setenv("APP_PORT", "9200")
	t.Setenv("CANVAS_URL", "https://school.instructure.com")
	t.Setenv("CANVAS_ACCESS_TOKEN", "canvas-token")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("OPENROUTER_FALLBACK_MODEL", "anthropic/claude-3-opus")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://app.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9200, cfg.Port)
	require.Equal(t, "https://school.instructure.com", cfg.Canvas.URL)
	require.Equal(t, "canvas-token", cfg.Canvas.AccessToken)
	require.Equal(t, "sk-test", cfg.OpenRouter.APIKey)
	require.Equal(t, "anthropic/claude-3-opus", cfg.OpenRouter.FallbackModel)
	require.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.CORSOrigins)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
}

func TestLocation_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "Mars/Olympus_Mons"
	require.Equal(t, time.UTC, cfg.Location())
}
