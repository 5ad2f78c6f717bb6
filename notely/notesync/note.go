// Package notesync keeps a local, per-principal cache of notes consistent with the
// remote note store. Mutations go through Client, which validates locally, applies
// optimistic changes to the QueryCache, calls the store and reconciles the result.
package notesync

import (
	"context"
	"sort"
	"strings"
	"time"

	"notely/notely/types"
)

type Note struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
	Title     *string   `json:"title"`
	Content   string    `json:"content"`
	Summary   *string   `json:"summary"`
}

// DisplayTitle is the title to show for n; notes without one render as "Untitled".
func (n Note) DisplayTitle() string {
	if n.Title == nil || strings.TrimSpace(*n.Title) == "" {
		return "Untitled"
	}
	return *n.Title
}

type NewNote struct {
	Title   *string `json:"title"`
	Content string  `json:"content"`
}

type NotePatch = types.NotePatch

type Principal struct {
	ID    string
	Email string
}

type Session struct {
	Principal   Principal
	AccessToken string
	ExpiresAt   time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// RemoteStore is the authoritative note store. Every call is scoped to the caller's
// session by the store itself. A nil note with a nil error means the store confirmed
// the write but returned no row.
type RemoteStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]Note, error)
	Insert(ctx context.Context, note NewNote) (*Note, error)
	UpdateByID(ctx context.Context, id int64, patch NotePatch) (*Note, error)
	DeleteByID(ctx context.Context, id int64) error
}

type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

type SessionSource interface {
	CurrentSession(ctx context.Context) (*Session, error)
}

// sortNotes orders newest first; ids break createdAt ties so the order is total.
func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
}

func cloneNotes(notes []Note) []Note {
	if notes == nil {
		return nil
	}
	out := make([]Note, len(notes))
	copy(out, notes)
	return out
}

func sameNote(a, b Note) bool {
	return a.ID == b.ID &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UserID == b.UserID &&
		a.Content == b.Content &&
		sameString(a.Title, b.Title) &&
		sameString(a.Summary, b.Summary)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// normalizeTitle trims a title and turns a blank one into nil.
func normalizeTitle(title *string) *string {
	if title == nil {
		return nil
	}
	t := strings.TrimSpace(*title)
	if t == "" {
		return nil
	}
	return &t
}
