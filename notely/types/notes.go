// notely/types/notes.go
package types

// CreateNoteRequest is the body of POST /notes.
type CreateNoteRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content string  `json:"content" validate:"required,notblank,max=20000"`
}

type SummarizeRequest struct {
	Content string `json:"content"`
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
}

// ErrorResponse is the JSON error body shared by every route.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const (
	NoteCreated = "created"
	NoteUpdated = "updated"
	NoteDeleted = "deleted"
)

// NoteEvent is pushed over /notes/events to every connection of the note's owner.
type NoteEvent struct {
	Type   string `json:"type"`
	NoteID int64  `json:"note_id"`
	UserID string `json:"user_id"`
}

// Bodies of the /api/summarize error responses.
const (
	MsgAPIKeyNotConfigured = "API key not configured correctly."
	MsgInvalidContent      = "Invalid input: 'content' field is missing or not a string."
	MsgEmptySummary        = "Failed to generate summary from AI."
	MsgSummarizeFailed     = "An error occurred during summarization."
)
