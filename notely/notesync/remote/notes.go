package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"notely/notely/notesync"
	"notely/notely/types"
	httputils "notely/notely/utils/http"
	"notely/notely/utils/logging"
)

// NotesClient is a notesync.RemoteStore over the /notes routes. The server scopes every
// call to the bearer token's subject.
type NotesClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

func NewNotesClient(baseURL string, tokens TokenSource, client *http.Client) *NotesClient {
	return &NotesClient{baseURL: strings.TrimRight(baseURL, "/"), tokens: tokens, http: client}
}

func (c *NotesClient) ListByOwner(ctx context.Context, ownerID string) ([]notesync.Note, error) {
	defer logging.LogDuration(ctx, "remote_list_notes")()
	var notes []notesync.Note
	if err := c.do(ctx, http.MethodGet, "/notes", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *NotesClient) Insert(ctx context.Context, in notesync.NewNote) (*notesync.Note, error) {
	defer logging.LogDuration(ctx, "remote_insert_note")()
	var note *notesync.Note
	body := types.CreateNoteRequest{Title: in.Title, Content: in.Content}
	if err := c.do(ctx, http.MethodPost, "/notes", body, &note); err != nil {
		return nil, err
	}
	return note, nil
}

func (c *NotesClient) UpdateByID(ctx context.Context, id int64, patch notesync.NotePatch) (*notesync.Note, error) {
	defer logging.LogDuration(ctx, "remote_update_note")()
	var note *notesync.Note
	if err := c.do(ctx, http.MethodPatch, "/notes/"+strconv.FormatInt(id, 10), patch, &note); err != nil {
		return nil, err
	}
	return note, nil
}

func (c *NotesClient) DeleteByID(ctx context.Context, id int64) error {
	defer logging.LogDuration(ctx, "remote_delete_note")()
	return c.do(ctx, http.MethodDelete, "/notes/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *NotesClient) do(ctx context.Context, method, path string, body, resp any) error {
	token := c.tokens.Token()
	if token == "" {
		return notesync.ErrUnauthenticated
	}
	return classify(httputils.DoJSON(ctx, c.http, method, c.baseURL+path, token, body, resp))
}

// classify maps a rejected token onto ErrUnauthenticated; everything else stays as is
// and becomes a RemoteError in notesync.
func classify(err error) error {
	var se *httputils.StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", notesync.ErrUnauthenticated, se)
	}
	return err
}
