package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskNote is a work-in-progress note attached to a task. A task holding the
// "work in progress" status always carries at least one note.
type TaskNote struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	TaskID      uuid.UUID      `json:"taskId" gorm:"type:uuid;index;not null"`
	Text        string         `json:"text" gorm:"type:text;not null"`
	AddedBy     string         `json:"addedBy" gorm:"not null"`
	AddedAt     time.Time      `json:"addedAt"`
	Completed   bool           `json:"completed" gorm:"default:false"`
	CompletedBy *string        `json:"completedBy"`
	CompletedAt *time.Time     `json:"completedAt"`
	EditedBy    *string        `json:"editedBy"`
	LastEdited  *time.Time     `json:"lastEdited"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (n *TaskNote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.AddedAt.IsZero() {
		n.AddedAt = time.Now()
	}
	return nil
}

// Note DTOs
type CreateNoteRequest struct {
	Text string `json:"text" validate:"required"`
}

type UpdateNoteRequest struct {
	Text string `json:"text" validate:"required"`
}
