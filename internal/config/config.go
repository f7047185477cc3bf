// Package config holds the explicitly constructed application configuration.
// It is loaded once at startup (optional YAML file, then environment
// overrides) and passed by value; nothing mutates it afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Canvas configures the upstream assignment source.
type Canvas struct {
	URL         string `yaml:"url"`
	AccessToken string `yaml:"access_token"`
}

// OpenRouter configures the text-generation backend.
type OpenRouter struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	FallbackModel  string `yaml:"fallback_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	SiteURL        string `yaml:"site_url"`
	SiteName       string `yaml:"site_name"`
}

// Google configures the calendar sink's OAuth client.
type Google struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Config is the root application configuration.
type Config struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Debug       bool     `yaml:"debug"`
	Timezone    string   `yaml:"timezone"`
	CORSOrigins []string `yaml:"cors_origins"`

	Canvas     Canvas     `yaml:"canvas"`
	OpenRouter OpenRouter `yaml:"openrouter"`
	Google     Google     `yaml:"google"`
}

// Default returns the baseline configuration before file and env overrides.
func Default() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        8000,
		Timezone:    "America/New_York",
		CORSOrigins: []string{"*"},
		OpenRouter: OpenRouter{
			BaseURL:        "https://openrouter.ai/api/v1",
			TimeoutSeconds: 30,
			SiteURL:        "http://localhost:8000",
			SiteName:       "Study Planner",
		},
		Google: Google{
			RedirectURL: "http://localhost:8000/google/auth/callback",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if it
// exists), then environment variables. A .env file in the working directory
// is folded into the environment first, best effort.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Host, "APP_HOST")
	setInt(&cfg.Port, "APP_PORT")
	setBool(&cfg.Debug, "DEBUG")
	setString(&cfg.Timezone, "TIMEZONE")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitAndTrim(v)
	}

	setString(&cfg.Canvas.URL, "CANVAS_URL")
	setString(&cfg.Canvas.AccessToken, "CANVAS_ACCESS_TOKEN")

	setString(&cfg.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	setString(&cfg.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	setString(&cfg.OpenRouter.Model, "OPENROUTER_MODEL")
	setString(&cfg.OpenRouter.FallbackModel, "OPENROUTER_FALLBACK_MODEL")
	setInt(&cfg.OpenRouter.TimeoutSeconds, "OPENROUTER_TIMEOUT_SECONDS")

	setString(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Google.RedirectURL, "GOOGLE_REDIRECT_URI")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Addr is the listen address for the HTTP layer.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves the configured timezone, falling back to UTC if the name
// is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Timeout is the per-call backend timeout.
func (o OpenRouter) Timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}
