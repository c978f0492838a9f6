package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Member roles stored in the pod_members junction table.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Pod is a small group sharing a feed of check-ins. Members, CheckIns and
// Notifications are not columns; the loader fills them when it assembles
// the aggregate.
type Pod struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Name          string         `gorm:"size:128;not null" json:"name"`
	OwnerID       string         `gorm:"size:36;index" json:"owner_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Members       []User         `gorm:"-" json:"members"`
	CheckIns      []CheckIn      `gorm:"-" json:"check_ins"`
	Notifications []Notification `gorm:"-" json:"notifications"`
}

func (p *Pod) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Member returns the member with the given id.
func (p *Pod) Member(userID string) (User, bool) {
	for _, m := range p.Members {
		if m.ID == userID {
			return m, true
		}
	}
	return User{}, false
}

// CheckIn returns the check-in with the given id.
func (p *Pod) CheckIn(id string) (CheckIn, bool) {
	for _, c := range p.CheckIns {
		if c.ID == id {
			return c, true
		}
	}
	return CheckIn{}, false
}

// UnreadCount counts unread notifications in the aggregate.
func (p *Pod) UnreadCount() int {
	n := 0
	for _, nt := range p.Notifications {
		if !nt.Read {
			n++
		}
	}
	return n
}

// PodMember links users to pods.
type PodMember struct {
	PodID     string    `gorm:"primaryKey;size:36" json:"pod_id"`
	UserID    string    `gorm:"primaryKey;size:36;index" json:"user_id"`
	Role      string    `gorm:"size:16;not null;default:'member'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
