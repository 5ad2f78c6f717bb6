// notely/services/llm/groq_client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"notely/notely/utils/logging"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama3-8b-8192"

	summaryPrompt = "Please provide a concise summary (2-3 sentences) of the following text:\n\n"
)

// ErrEmptySummary is returned when the model answered without any text.
var ErrEmptySummary = errors.New("model returned no summary")

// Summarizer turns note content into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// GroqClient talks to Groq's OpenAI-compatible chat completions API.
type GroqClient struct {
	client *openai.Client
	model  string
}

// NewGroqClient returns a client for baseURL (Groq when empty). httpClient may be nil.
func NewGroqClient(apiKey, baseURL, model string, httpClient *http.Client) *GroqClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = DefaultGroqBaseURL
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = DefaultGroqModel
	}
	return &GroqClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *GroqClient) Summarize(ctx context.Context, content string) (string, error) {
	defer logging.LogDuration(ctx, "groq_service_summarize")()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: summaryPrompt + content},
		},
	})
	if err != nil {
		logging.ErrorLogger.Error("groq chat completion failed", zap.String("model", c.model), zap.Error(err))
		return "", fmt.Errorf("groq chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptySummary
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}
