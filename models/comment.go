package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a reply on a check-in. Comments are never edited.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CheckInID string    `gorm:"size:36;index;not null" json:"check_in_id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
