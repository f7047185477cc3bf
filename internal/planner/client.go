package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"studyplanner/internal/config"
)

const maxResponseBytes = 10 * 1024 * 1024

// Client talks to the OpenRouter chat-completions API. The primary and
// fallback model identifiers are chosen once at startup (SelectModels) and
// read-only afterwards, so one client instance is safe for concurrent
// requests.
type Client struct {
	apiKey     string
	baseURL    string
	siteURL    string
	siteName   string
	httpClient *http.Client
	logger     *zap.Logger

	primary  string
	fallback string
}

// NewClient builds a backend client from configuration. Model identifiers
// from the config are honored as-is; empty ones are filled in by
// SelectModels.
func NewClient(cfg config.OpenRouter, logger *zap.Logger) *Client {
	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		siteURL:  cfg.SiteURL,
		siteName: cfg.SiteName,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		logger:   logger,
		primary:  cfg.Model,
		fallback: cfg.FallbackModel,
	}
}

// Models returns the chosen primary and fallback identifiers.
func (c *Client) Models() (primary, fallback string) {
	return c.primary, c.fallback
}

// send posts a chat request, injecting the primary model identifier. When
// the backend rejects the identifier itself (invalid model / no endpoints)
// it retries once with the fallback identifier. Every other error class
// propagates immediately; exhausting both identifiers is a
// BackendUnavailableError.
func (c *Client) send(ctx context.Context, req chatRequest) (*RawBackendReply, error) {
	candidates := make([]string, 0, 2)
	if c.primary != "" {
		candidates = append(candidates, c.primary)
	}
	if c.fallback != "" && c.fallback != c.primary {
		candidates = append(candidates, c.fallback)
	}
	if len(candidates) == 0 {
		return nil, &BackendUnavailableError{Err: errors.New("no model identifier configured")}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	var lastRejection error
	for _, model := range candidates {
		req.Model = model
		reply, err := c.post(ctx, req)
		if err != nil {
			var rejected *modelRejectedError
			if errors.As(err, &rejected) {
				c.logger.Warn("backend rejected model identifier",
					zap.String("model", model),
					zap.String("detail", rejected.Message))
				lastRejection = err
				continue
			}
			return nil, err
		}
		if model == c.fallback && model != c.primary {
			c.logger.Info("used fallback model after primary was rejected",
				zap.String("primary", c.primary),
				zap.String("fallback", c.fallback))
		}
		return reply, nil
	}

	return nil, &BackendUnavailableError{
		Err: fmt.Errorf("all model identifiers rejected: %w", lastRejection),
	}
}

// modelRejectedError is the internal marker for the identifier-rejection
// error class, the only class send retries on.
type modelRejectedError struct {
	Model      string
	StatusCode int
	Message    string
}

func (e *modelRejectedError) Error() string {
	return fmt.Sprintf("model %q rejected (status %d): %s", e.Model, e.StatusCode, e.Message)
}

func (c *Client) post(ctx context.Context, req chatRequest) (*RawBackendReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &BackendUnavailableError{Err: fmt.Errorf("request failed: %w", err)}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	if err != nil {
		return nil, &BackendUnavailableError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		if msg, ok := classifyModelRejection(resp.StatusCode, raw); ok {
			return nil, &modelRejectedError{Model: req.Model, StatusCode: resp.StatusCode, Message: msg}
		}
		return nil, &BackendUnavailableError{
			Err: fmt.Errorf("backend returned status %d: %s", resp.StatusCode, snippet(string(raw), 300)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &BackendUnavailableError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return nil, &BackendUnavailableError{Err: fmt.Errorf("backend error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &BackendUnavailableError{Err: errors.New("no completion returned")}
	}

	choice := parsed.Choices[0]
	return &RawBackendReply{
		Text:               string(choice.Message.Content),
		FinishReason:       choice.FinishReason,
		NativeFinishReason: choice.NativeFinishReason,
		Raw:                json.RawMessage(raw),
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// classifyModelRejection distinguishes the "unknown/invalid model" error
// class from every other failure. OpenRouter signals it as a 400 with an
// "invalid model" message or a 404 with "no endpoints" for the model.
func classifyModelRejection(statusCode int, body []byte) (string, bool) {
	msg := rejectionMessage(body)
	lower := strings.ToLower(msg)
	switch statusCode {
	case http.StatusBadRequest:
		if strings.Contains(lower, "not a valid model") || strings.Contains(lower, "invalid model") {
			return msg, true
		}
	case http.StatusNotFound:
		if strings.Contains(lower, "no endpoints") {
			return msg, true
		}
	}
	return msg, false
}

func rejectionMessage(body []byte) string {
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// probeTimeout bounds the one-time startup model-availability probe; it is
// deliberately shorter than the per-call generation timeout.
const probeTimeout = 10 * time.Second
