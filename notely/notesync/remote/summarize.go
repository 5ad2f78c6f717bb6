package remote

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"notely/notely/notesync"
	"notely/notely/types"
	httputils "notely/notely/utils/http"
	"notely/notely/utils/logging"
)

// SummarizeClient is a notesync.Summarizer over POST /api/summarize.
type SummarizeClient struct {
	url  string
	http *http.Client
}

func NewSummarizeClient(baseURL string, client *http.Client) *SummarizeClient {
	return &SummarizeClient{url: strings.TrimRight(baseURL, "/") + "/api/summarize", http: client}
}

func (c *SummarizeClient) Summarize(ctx context.Context, content string) (string, error) {
	defer logging.LogDuration(ctx, "remote_summarize")()
	var resp types.SummarizeResponse
	err := httputils.DoJSON(ctx, c.http, http.MethodPost, c.url, "", types.SummarizeRequest{Content: content}, &resp)
	var se *httputils.StatusError
	if errors.As(err, &se) && se.Message == types.MsgEmptySummary {
		return "", notesync.ErrSummaryGenerationFailed
	}
	if err != nil {
		return "", err
	}
	return resp.Summary, nil
}
