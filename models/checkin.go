package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stage is the lifecycle stage of a check-in.
type Stage string

const (
	StageMorning Stage = "morning"
	StageEvening Stage = "evening"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageMorning, StageEvening:
		return true
	}
	return false
}

// CheckIn is a member's daily post: a morning intention that may later be
// closed with an evening reflection.
type CheckIn struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	PodID        string     `gorm:"size:36;index;not null" json:"pod_id"`
	UserID       string     `gorm:"size:36;index;not null" json:"user_id"`
	Timestamp    time.Time  `gorm:"index;not null" json:"timestamp"`
	Stage        Stage      `gorm:"size:16;not null;default:'morning'" json:"type"`
	Focus        string     `gorm:"type:text;not null" json:"focus"`
	EveningRecap string     `gorm:"type:text" json:"evening_recap,omitempty"`
	Goals        []Goal     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"goals"`
	Comments     []Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments"`
	Reactions    []Reaction `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"reactions"`
}

func (c *CheckIn) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	if c.Stage == "" {
		c.Stage = StageMorning
	}
	return nil
}

// ReactionBy returns the reaction left by userID, if any.
func (c *CheckIn) ReactionBy(userID string) (Reaction, bool) {
	for _, r := range c.Reactions {
		if r.UserID == userID {
			return r, true
		}
	}
	return Reaction{}, false
}
