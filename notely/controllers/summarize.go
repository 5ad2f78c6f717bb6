package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"notely/notely/services/llm"
	"notely/notely/types"
	"notely/notely/utils/logging"

	"go.uber.org/zap"
)

type SummarizeController struct {
	summarizer llm.Summarizer
	configured bool
	timeout    time.Duration
}

// NewSummarizeController serves POST /api/summarize. configured reports whether the model
// credential is present; without it every request fails before the body is read.
func NewSummarizeController(summarizer llm.Summarizer, configured bool, timeout time.Duration) *SummarizeController {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SummarizeController{summarizer: summarizer, configured: configured && summarizer != nil, timeout: timeout}
}

func (c *SummarizeController) Summarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer logging.LogDuration(ctx, "summarize_request")()

	if !c.configured {
		logging.ErrorLogger.Error("summarize called without GROQ_API_KEY")
		c.fail(w, http.StatusInternalServerError, types.ErrorResponse{Error: types.MsgAPIKeyNotConfigured})
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.fail(w, http.StatusInternalServerError, types.ErrorResponse{Error: types.MsgSummarizeFailed, Details: err.Error()})
		return
	}
	content, ok := body["content"].(string)
	if !ok || strings.TrimSpace(content) == "" {
		c.fail(w, http.StatusBadRequest, types.ErrorResponse{Error: types.MsgInvalidContent})
		return
	}

	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	summary, err := c.summarizer.Summarize(sctx, content)
	switch {
	case errors.Is(err, llm.ErrEmptySummary):
		c.fail(w, http.StatusInternalServerError, types.ErrorResponse{Error: types.MsgEmptySummary})
		return
	case err != nil:
		logging.ErrorLogger.Error("summarization failed", zap.String("trace_id", logging.TraceID(ctx)), zap.Error(err))
		c.fail(w, http.StatusInternalServerError, types.ErrorResponse{Error: types.MsgSummarizeFailed, Details: err.Error()})
		return
	}

	summarizeRequests.WithLabelValues("ok").Inc()
	logging.AppLogger.Info("summary generated", zap.Int("content_chars", len([]rune(content))))
	writeJSON(w, http.StatusOK, types.SummarizeResponse{Summary: summary})
}

func (c *SummarizeController) fail(w http.ResponseWriter, status int, body types.ErrorResponse) {
	summarizeRequests.WithLabelValues("error").Inc()
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
