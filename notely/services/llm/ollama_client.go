// notely/services/llm/ollama_client.go
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	httputils "notely/notely/utils/http"
	"notely/notely/utils/logging"

	"go.uber.org/zap"
)

const (
	DefaultOllamaURL   = "http://localhost:11434/api"
	DefaultOllamaModel = "llama3"
)

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

// OllamaClient summarizes with a local Ollama server instead of Groq.
type OllamaClient struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewOllamaClient(baseURL, model string, httpClient *http.Client) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaClient{baseURL: strings.TrimRight(baseURL, "/"), model: model, http: httpClient}
}

func (c *OllamaClient) Summarize(ctx context.Context, content string) (string, error) {
	defer logging.LogDuration(ctx, "ollama_service_summarize")()

	req := chatRequest{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: summaryPrompt + content}},
	}
	var resp chatResponse
	if err := httputils.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/chat", "", req, &resp); err != nil {
		logging.ErrorLogger.Error("ollama chat failed", zap.String("model", c.model), zap.Error(err))
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	summary := strings.TrimSpace(resp.Message.Content)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}
