package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studyplanner/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc, primary, fallback string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.OpenRouter{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		Model:          primary,
		FallbackModel:  fallback,
		TimeoutSeconds: 5,
	}, zap.NewNop())
}

func completionBody(content, finishReason string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestClientSend_FallsBackOnModelRejection(t *testing.T) {
	var models []string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req.Model)

		if req.Model == "provider/model-a" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": {"message": "provider/model-a is not a valid model ID"}}`)
			return
		}
		fmt.Fprint(w, completionBody(`{"tasks": []}`, "stop"))
	}, "provider/model-a", "provider/model-b")

	reply, err := client.send(context.Background(), chatRequest{
		Messages: []chatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, `{"tasks": []}`, reply.Text)
	require.Equal(t, []string{"provider/model-a", "provider/model-b"}, models)
}

func TestClientSend_NoEndpointsIsAlsoRejection(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Model == "provider/gone" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error": {"message": "No endpoints found for provider/gone"}}`)
			return
		}
		fmt.Fprint(w, completionBody("ok", "stop"))
	}, "provider/gone", "provider/alive")

	reply, err := client.send(context.Background(), chatRequest{})
	require.NoError(t, err)
	require.Equal(t, "ok", reply.Text)
}

func TestClientSend_ServerErrorDoesNotRetry(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "upstream exploded"}}`)
	}, "provider/model-a", "provider/model-b")

	_, err := client.send(context.Background(), chatRequest{})
	require.Error(t, err)

	var unavailable *BackendUnavailableError
	require.True(t, errors.As(err, &unavailable))
	require.Equal(t, 1, calls, "non-rejection errors must not burn the fallback model")
}

func TestClientSend_BothModelsRejected(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "invalid model"}}`)
	}, "provider/model-a", "provider/model-b")

	_, err := client.send(context.Background(), chatRequest{})
	var unavailable *BackendUnavailableError
	require.True(t, errors.As(err, &unavailable))
}

func TestClientSend_ContentParts(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant", "content": [
			{"type": "text", "text": "{\"tasks\":"},
			{"type": "text", "text": " []}"}
		]}, "finish_reason": "stop"}]}`)
	}, "provider/model-a", "")

	reply, err := client.send(context.Background(), chatRequest{})
	require.NoError(t, err)
	require.Equal(t, `{"tasks": []}`, reply.Text)
}

func TestClientSend_TruncationSignal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "finish reason length",
			body: completionBody(`{"tasks": [`, "length"),
			want: true,
		},
		{
			name: "native max tokens",
			body: `{"choices": [{"message": {"role": "assistant", "content": "{}"}, "finish_reason": "stop", "native_finish_reason": "MAX_TOKENS"}]}`,
			want: true,
		},
		{
			name: "natural stop",
			body: completionBody(`{"tasks": []}`, "stop"),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}, "provider/model-a", "")

			reply, err := client.send(context.Background(), chatRequest{})
			require.NoError(t, err)
			require.Equal(t, tt.want, reply.Truncated())
		})
	}
}

func TestClientSend_EmptyChoices(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	}, "provider/model-a", "")

	_, err := client.send(context.Background(), chatRequest{})
	var unavailable *BackendUnavailableError
	require.True(t, errors.As(err, &unavailable))
}

func TestClientSend_NoModelConfigured(t *testing.T) {
	client := NewClient(config.OpenRouter{BaseURL: "http://127.0.0.1:0"}, zap.NewNop())
	_, err := client.send(context.Background(), chatRequest{})
	var unavailable *BackendUnavailableError
	require.True(t, errors.As(err, &unavailable))
}

func TestClassifyModelRejection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"invalid model 400", http.StatusBadRequest, `{"error": {"message": "foo is not a valid model ID"}}`, true},
		{"invalid model phrasing", http.StatusBadRequest, `{"error": {"message": "Invalid model specified"}}`, true},
		{"no endpoints 404", http.StatusNotFound, `{"error": {"message": "No endpoints found"}}`, true},
		{"other 400", http.StatusBadRequest, `{"error": {"message": "context length exceeded"}}`, false},
		{"plain 404", http.StatusNotFound, `{"error": {"message": "not found"}}`, false},
		{"rate limited", http.StatusTooManyRequests, `{"error": {"message": "slow down"}}`, false},
		{"unparseable body", http.StatusBadRequest, `gateway timeout`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := classifyModelRejection(tt.status, []byte(tt.body))
			if got != tt.want {
				t.Errorf("classifyModelRejection(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
