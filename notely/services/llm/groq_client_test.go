package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notely/notely/utils/logging"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeGroq(t *testing.T, reply func(w http.ResponseWriter, req openai.ChatCompletionRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		reply(w, req)
	}))
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   DefaultGroqModel,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}

func TestGroqClient_Summarize(t *testing.T) {
	logging.InitNopLogger()
	srv := fakeGroq(t, func(w http.ResponseWriter, req openai.ChatCompletionRequest) {
		assert.Equal(t, DefaultGroqModel, req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[0].Role)
		assert.True(t, strings.HasPrefix(req.Messages[0].Content, "Please provide a concise summary (2-3 sentences) of the following text:\n\n"))
		assert.True(t, strings.HasSuffix(req.Messages[0].Content, "the note body"))
		w.Write([]byte(completion("  A concise summary.  ")))
	})
	defer srv.Close()

	c := NewGroqClient("gsk_test", srv.URL, "", srv.Client())
	summary, err := c.Summarize(context.Background(), "the note body")
	require.NoError(t, err)
	assert.Equal(t, "A concise summary.", summary)
}

func TestGroqClient_EmptyAnswer(t *testing.T) {
	logging.InitNopLogger()
	srv := fakeGroq(t, func(w http.ResponseWriter, req openai.ChatCompletionRequest) {
		w.Write([]byte(completion("   ")))
	})
	defer srv.Close()

	_, err := NewGroqClient("gsk_test", srv.URL, "", nil).Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptySummary)
}

func TestGroqClient_UpstreamError(t *testing.T) {
	logging.InitNopLogger()
	srv := fakeGroq(t, func(w http.ResponseWriter, req openai.ChatCompletionRequest) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"over capacity","type":"server_error"}}`))
	})
	defer srv.Close()

	_, err := NewGroqClient("gsk_test", srv.URL, "", nil).Summarize(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptySummary)
	assert.Contains(t, err.Error(), "over capacity")
}
