// notely/sources/psql/dao/dao.note.go
package dao

import (
	"context"
	"errors"

	"notely/notely/sources/psql/models"
	"notely/notely/types"

	"gorm.io/gorm"
)

// NoteDAO reads and writes notes. Every call is scoped to one owner; another owner's
// note behaves exactly like a missing one.
type NoteDAO struct {
	DB *gorm.DB
}

func NewNoteDAO(db *gorm.DB) *NoteDAO {
	return &NoteDAO{DB: db}
}

// ListByOwner returns the owner's notes, newest first.
func (dao *NoteDAO) ListByOwner(ctx context.Context, ownerID string) ([]models.Note, error) {
	notes := []models.Note{}
	err := dao.DB.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at desc").Order("id desc").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (dao *NoteDAO) Create(ctx context.Context, note *models.Note) error {
	return dao.DB.WithContext(ctx).Create(note).Error
}

// GetByID returns nil, nil when the note does not exist or belongs to someone else.
func (dao *NoteDAO) GetByID(ctx context.Context, ownerID string, id int64) (*models.Note, error) {
	var note models.Note
	err := dao.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateByID applies patch and returns the updated row, or nil, nil when the owner has
// no such note.
func (dao *NoteDAO) UpdateByID(ctx context.Context, ownerID string, id int64, patch types.NotePatch) (*models.Note, error) {
	updates := map[string]interface{}{}
	switch {
	case patch.ClearTitle:
		updates["title"] = nil
	case patch.Title != nil:
		updates["title"] = *patch.Title
	}
	if patch.Content != nil {
		updates["content"] = *patch.Content
	}
	if patch.Summary != nil {
		updates["summary"] = *patch.Summary
	}
	if len(updates) == 0 {
		return dao.GetByID(ctx, ownerID, id)
	}

	res := dao.DB.WithContext(ctx).Model(&models.Note{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return dao.GetByID(ctx, ownerID, id)
}

// DeleteByID reports whether a row was deleted.
func (dao *NoteDAO) DeleteByID(ctx context.Context, ownerID string, id int64) (bool, error) {
	res := dao.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Note{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
