package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentpanel/llm"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		msg       string
		wantCode  llm.ErrorCode
		wantRetry bool
	}{
		{"unauthorized", http.StatusUnauthorized, "Invalid API key", llm.ErrUnauthorized, false},
		{"forbidden", http.StatusForbidden, "content policy", llm.ErrForbidden, false},
		{"rate limited", http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{"quota in 400", http.StatusBadRequest, "Insufficient credit balance", llm.ErrQuotaExceeded, false},
		{"plain 400", http.StatusBadRequest, "messages must not be empty", llm.ErrInvalidRequest, false},
		{"gateway timeout", http.StatusGatewayTimeout, "", llm.ErrUpstreamTimeout, true},
		{"bad gateway", http.StatusBadGateway, "", llm.ErrUpstreamError, true},
		{"overloaded", 529, "overloaded", llm.ErrModelOverloaded, true},
		{"internal", http.StatusInternalServerError, "", llm.ErrUpstreamError, true},
		{"not found", http.StatusNotFound, "no such model", llm.ErrUpstreamError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := MapHTTPError(tt.status, tt.msg, "openai")
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantRetry, e.Retryable)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, "openai", e.Provider)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

// 5xx 一律可重试；除 408/429 外的 4xx 一律不可重试
func TestMapHTTPError_RetryableProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := rapid.IntRange(400, 599).Draw(t, "status")
		msg := rapid.String().Draw(t, "msg")

		e := MapHTTPError(status, msg, "p")
		switch {
		case status >= 500:
			assert.True(t, e.Retryable, "status %d", status)
		case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
			assert.True(t, e.Retryable, "status %d", status)
		default:
			assert.False(t, e.Retryable, "status %d", status)
		}
		assert.NotEmpty(t, e.Code)
	})
}

func TestReadErrorMessage(t *testing.T) {
	assert.Equal(t, "model not found (type: invalid_request_error)",
		ReadErrorMessage(strings.NewReader(`{"error":{"message":"model not found","type":"invalid_request_error"}}`)))
	assert.Equal(t, "bad key",
		ReadErrorMessage(strings.NewReader(`{"error":{"message":"bad key"}}`)))
	assert.Equal(t, "upstream exploded",
		ReadErrorMessage(strings.NewReader("  upstream exploded\n")))
}

func TestToLLMChatResponse(t *testing.T) {
	resp := ToLLMChatResponse(OpenAICompatResponse{
		ID:    "c1",
		Model: "gpt-4o-mini",
		Choices: []OpenAICompatChoice{{
			FinishReason: "stop",
			Message:      OpenAICompatMessage{Role: "assistant", Content: "Critic"},
		}},
		Usage: &OpenAICompatUsage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
	}, "openai")

	content, err := llm.FirstContent(resp)
	assert.NoError(t, err)
	assert.Equal(t, "Critic", content)
	assert.Equal(t, 4, resp.Usage.TotalTokens)
	assert.Equal(t, "openai", resp.Provider)
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "def", "fb"))
	assert.Equal(t, "def", ChooseModel(&llm.ChatRequest{}, "def", "fb"))
	assert.Equal(t, "fb", ChooseModel(nil, "", "fb"))
}
