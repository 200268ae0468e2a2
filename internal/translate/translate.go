// Package translate converts between the relay's canonical chat-completion
// shape and the provider's session (web) wire format.
package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/llmrelay/llmrelay/internal/models"
)

const (
	defaultModel     = "claude-3-sonnet"
	defaultMaxTokens = 1024
)

// SessionRequest is the body the session endpoint accepts: the whole
// conversation flattened into one turn-prefixed prompt.
type SessionRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Stream    bool   `json:"stream"`
}

// sessionResponse is the loose payload the session endpoint returns.
type sessionResponse struct {
	Completion string `json:"completion"`
	Message    string `json:"message"`
}

// ToSessionRequest maps a canonical request into the session wire format.
func ToSessionRequest(req models.ChatRequest) SessionRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return SessionRequest{
		Prompt:    FlattenMessages(req.Messages),
		Model:     model,
		MaxTokens: maxTokens,
		Stream:    req.Stream,
	}
}

// FlattenMessages renders the role-tagged message list as a single prompt,
// ending with an open assistant turn.
func FlattenMessages(messages []models.Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		role := "Assistant"
		if msg.Role == "user" {
			role = "Human"
		}
		fmt.Fprintf(&b, "%s: %s", role, msg.Content)
	}
	b.WriteString("\n\nAssistant:")
	return b.String()
}

// FromSessionResponse wraps a session completion into the canonical response
// envelope, synthesizing a message ID. When the body is not valid JSON it is
// treated as the raw completion text.
func FromSessionResponse(body []byte, original models.ChatRequest) models.ChatResponse {
	text := string(body)
	var parsed sessionResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Completion != "":
			text = parsed.Completion
		case parsed.Message != "":
			text = parsed.Message
		}
	}

	model := original.Model
	if model == "" {
		model = defaultModel
	}

	return models.ChatResponse{
		ID:         "msg_" + uuid.New().String(),
		Type:       "message",
		Role:       "assistant",
		Content:    []models.ContentBlock{{Type: "text", Text: text}},
		Model:      model,
		StopReason: "end_turn",
		Usage: models.Usage{
			InputTokens:  len(original.Messages),
			OutputTokens: EstimateTokens(text),
		},
	}
}

// EstimateTokens approximates a token count from character length. The
// estimate is advisory only and never billing-grade.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
