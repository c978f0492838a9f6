package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reaction is a single emoji left by a member on a check-in.
type Reaction struct {
	ID        string    `gorm:"primaryKey;size:36" json:"-"`
	CheckInID string    `gorm:"size:36;not null;uniqueIndex:idx_reaction_checkin_user" json:"-"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_reaction_checkin_user" json:"user_id"`
	Emoji     string    `gorm:"size:32;not null" json:"emoji"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
