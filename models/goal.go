package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GoalStatus is the outcome recorded for a goal in the evening reflection.
type GoalStatus string

const (
	GoalDone    GoalStatus = "Done"
	GoalPartial GoalStatus = "Partial"
	GoalSkipped GoalStatus = "Skipped"
)

// Valid reports whether s is a known status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalDone, GoalPartial, GoalSkipped:
		return true
	}
	return false
}

// Attachment is a file attached to a goal. URL is a retrievable reference,
// either a data URL or a content-addressed static path.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Goal belongs to exactly one check-in. Only Status changes after creation.
type Goal struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	CheckInID      string      `gorm:"size:36;index;not null" json:"-"`
	Position       int         `gorm:"not null;default:0" json:"-"`
	Text           string      `gorm:"type:text;not null" json:"text"`
	Status         GoalStatus  `gorm:"size:16;not null;default:'Partial'" json:"status"`
	AttachmentName string      `gorm:"size:255" json:"-"`
	AttachmentType string      `gorm:"size:128" json:"-"`
	AttachmentURL  string      `gorm:"type:longtext" json:"-"`
	Attachment     *Attachment `gorm:"-" json:"attachment,omitempty"`
}

// BeforeCreate assigns an id and copies the attachment into its columns.
func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = GoalPartial
	}
	if g.Attachment != nil {
		g.AttachmentName = g.Attachment.Name
		g.AttachmentType = g.Attachment.Type
		g.AttachmentURL = g.Attachment.URL
	}
	return nil
}

// AfterFind rebuilds the attachment from its columns.
func (g *Goal) AfterFind(tx *gorm.DB) error {
	if g.AttachmentName != "" {
		g.Attachment = &Attachment{Name: g.AttachmentName, Type: g.AttachmentType, URL: g.AttachmentURL}
	}
	return nil
}
