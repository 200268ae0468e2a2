package translate

import (
	"strings"
	"testing"

	"github.com/llmrelay/llmrelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenMessages(t *testing.T) {
	messages := []models.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
		{Role: "user", Content: "how are you?"},
	}

	prompt := FlattenMessages(messages)
	expected := "Human: hello\n\nAssistant: hi there\n\nHuman: how are you?\n\nAssistant:"
	assert.Equal(t, expected, prompt)
}

func TestFlattenMessagesSystemRoleTreatedAsAssistant(t *testing.T) {
	prompt := FlattenMessages([]models.Message{{Role: "system", Content: "be nice"}})
	assert.True(t, strings.HasPrefix(prompt, "Assistant: be nice"))
}

func TestToSessionRequestDefaults(t *testing.T) {
	req := ToSessionRequest(models.ChatRequest{
		Messages: []models.Message{{Role: "user", Content: "ping"}},
	})

	assert.Equal(t, "claude-3-sonnet", req.Model)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.False(t, req.Stream)
}

func TestToSessionRequestPreservesExplicitValues(t *testing.T) {
	req := ToSessionRequest(models.ChatRequest{
		Model:     "claude-3-opus",
		MaxTokens: 42,
		Stream:    true,
		Messages:  []models.Message{{Role: "user", Content: "ping"}},
	})

	assert.Equal(t, "claude-3-opus", req.Model)
	assert.Equal(t, 42, req.MaxTokens)
	assert.True(t, req.Stream)
}

func TestFromSessionResponseCompletionField(t *testing.T) {
	original := models.ChatRequest{
		Model:    "claude-3-opus",
		Messages: []models.Message{{Role: "user", Content: "hi"}},
	}

	resp := FromSessionResponse([]byte(`{"completion":"result text"}`), original)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "result text", resp.Content[0].Text)
	assert.Equal(t, "claude-3-opus", resp.Model)
	assert.Equal(t, "assistant", resp.Role)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.True(t, strings.HasPrefix(resp.ID, "msg_"))
}

func TestFromSessionResponseMessageField(t *testing.T) {
	resp := FromSessionResponse([]byte(`{"message":"from message"}`), models.ChatRequest{})
	assert.Equal(t, "from message", resp.Content[0].Text)
}

func TestFromSessionResponseRawText(t *testing.T) {
	resp := FromSessionResponse([]byte("plain text answer"), models.ChatRequest{})
	assert.Equal(t, "plain text answer", resp.Content[0].Text)
}

func TestFromSessionResponseUsage(t *testing.T) {
	original := models.ChatRequest{
		Messages: []models.Message{
			{Role: "user", Content: "a"},
			{Role: "assistant", Content: "b"},
		},
	}

	resp := FromSessionResponse([]byte(`{"completion":"12345678"}`), original)
	assert.Equal(t, 2, resp.Usage.InputTokens)
	assert.Equal(t, 2, resp.Usage.OutputTokens)
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.text), "text %q", tt.text)
	}
}
