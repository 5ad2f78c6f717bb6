// notely/utils/http/httputils.go
package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StatusError is a non-2xx response. Message is the "error" field of a JSON error body
// when the server sent one.
type StatusError struct {
	Code    int
	Message string
	Details string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bad status: %d", e.Code)
	}
	if e.Details != "" {
		return fmt.Sprintf("bad status: %d: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("bad status: %d: %s", e.Code, e.Message)
}

// DoJSON sends body (if non-nil) as JSON and decodes a 2xx response into resp (if
// non-nil). An empty bearer sends no Authorization header.
func DoJSON(ctx context.Context, client *http.Client, method, url, bearer string, body, resp any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if client == nil {
		client = http.DefaultClient
	}
	r, err := client.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return readStatusError(r)
	}
	if resp == nil || r.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(resp)
}

func readStatusError(r *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	se := &StatusError{Code: r.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		se.Message = payload.Error
		se.Details = payload.Details
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}
