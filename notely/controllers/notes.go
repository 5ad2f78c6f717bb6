// notely/controllers/notes.go
package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notely/notely/sources/psql/dao"
	"notely/notely/sources/psql/models"
	"notely/notely/types"
	"notely/notely/utils/logging"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"go.uber.org/zap"
)

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrInvalidNote  = errors.New("invalid note")
)

type NotesController struct {
	dao      *dao.NoteDAO
	hub      *EventHub
	validate *validator.Validate
}

func NewNotesController(dao *dao.NoteDAO, hub *EventHub) *NotesController {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &NotesController{dao: dao, hub: hub, validate: v}
}

func (c *NotesController) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	return c.dao.ListByOwner(ctx, userID)
}

func (c *NotesController) CreateNote(ctx context.Context, userID string, req types.CreateNoteRequest) (*models.Note, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidNote, describe(err))
	}
	note := &models.Note{
		UserID:  userID,
		Title:   trimTitle(req.Title),
		Content: strings.TrimSpace(req.Content),
	}
	if err := c.dao.Create(ctx, note); err != nil {
		return nil, err
	}
	c.publish(types.NoteCreated, note)
	return note, nil
}

func (c *NotesController) UpdateNote(ctx context.Context, userID string, id int64, patch types.NotePatch) (*models.Note, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidNote)
	}
	if patch.Content != nil {
		if err := c.validate.Var(*patch.Content, "notblank,max=20000"); err != nil {
			return nil, fmt.Errorf("%w: content cannot be empty", ErrInvalidNote)
		}
		content := strings.TrimSpace(*patch.Content)
		patch.Content = &content
	}
	if patch.Title != nil {
		if err := c.validate.Var(*patch.Title, "max=255"); err != nil {
			return nil, fmt.Errorf("%w: title: max", ErrInvalidNote)
		}
		patch.Title = trimTitle(patch.Title)
		patch.ClearTitle = patch.Title == nil
	}
	note, err := c.dao.UpdateByID(ctx, userID, id, patch)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	c.publish(types.NoteUpdated, note)
	return note, nil
}

func (c *NotesController) DeleteNote(ctx context.Context, userID string, id int64) error {
	deleted, err := c.dao.DeleteByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNoteNotFound
	}
	c.publish(types.NoteDeleted, &models.Note{ID: id, UserID: userID})
	return nil
}

func (c *NotesController) publish(kind string, note *models.Note) {
	logging.AppLogger.Info("note "+kind, zap.Int64("note_id", note.ID), zap.String("user_id", note.UserID))
	if c.hub != nil {
		c.hub.Publish(types.NoteEvent{Type: kind, NoteID: note.ID, UserID: note.UserID})
	}
}

func trimTitle(title *string) *string {
	if title == nil {
		return nil
	}
	t := strings.TrimSpace(*title)
	if t == "" {
		return nil
	}
	return &t
}

// describe renders validator errors as "content: notblank, title: max".
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+": "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
