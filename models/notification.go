package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType identifies what produced a notification.
type NotificationType string

const (
	NotificationComment  NotificationType = "comment"
	NotificationReaction NotificationType = "reaction"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationComment, NotificationReaction:
		return true
	}
	return false
}

// Notification tells a check-in owner that a podmate interacted with it.
type Notification struct {
	ID           string           `gorm:"primaryKey;size:36" json:"id"`
	Type         NotificationType `gorm:"size:16;not null" json:"type"`
	FromUserID   string           `gorm:"size:36;not null" json:"from_user_id"`
	TargetUserID string           `gorm:"size:36;index;not null" json:"-"`
	CheckInID    string           `gorm:"size:36;index;not null" json:"check_in_id"`
	Read         bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt    time.Time        `json:"timestamp"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
