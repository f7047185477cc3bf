package planner

import (
	"encoding/json"
	"strings"
)

// OpenAI-compatible chat-completions wire format, as served by OpenRouter.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// messageContent tolerates both content representations the backend emits: a
// plain string, or a list of typed parts whose text fragments are
// concatenated in order.
type messageContent string

func (m *messageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = messageContent(s)
		return nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	*m = messageContent(b.String())
	return nil
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string         `json:"role"`
		Content messageContent `json:"content"`
	} `json:"message"`
	FinishReason       string `json:"finish_reason"`
	NativeFinishReason string `json:"native_finish_reason"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type modelInfo struct {
	ID string `json:"id"`
}

type modelList struct {
	Data []modelInfo `json:"data"`
}

// RawBackendReply is one generation attempt's result: the concatenated reply
// text, the backend's stop signals, and the undecoded body for diagnostics.
// It lives only for the duration of the attempt.
type RawBackendReply struct {
	Text               string
	FinishReason       string
	NativeFinishReason string
	Raw                json.RawMessage
}

// Truncated reports whether the backend's own stop signal indicates a
// length-limited stop rather than a natural end of turn. This is checked
// even when the text parses cleanly: a cut can land on a structural boundary
// and still yield balanced but incomplete output.
func (r *RawBackendReply) Truncated() bool {
	finish := strings.ToLower(r.FinishReason)
	native := strings.ToLower(r.NativeFinishReason)
	return finish == "length" ||
		strings.Contains(finish, "max_tokens") ||
		strings.Contains(native, "max_tokens")
}
