// notely/sources/psql/models/note.go
package models

import (
	"time"
)

// Note is one row of the notes table. user_id holds the identity provider's subject.
type Note struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Title     *string   `json:"title" gorm:"type:varchar(255)"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Summary   *string   `json:"summary" gorm:"type:text"`
}

func (Note) TableName() string {
	return "notes"
}
