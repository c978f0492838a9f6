package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/branch/models"
)

// GormStore implements Store over a SQL database through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store on an opened connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *GormStore) GetPod(ctx context.Context, id string) (*models.Pod, error) {
	var p models.Pod
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) ListUserPods(ctx context.Context, userID string) ([]models.Pod, error) {
	var pods []models.Pod
	err := s.db.WithContext(ctx).
		Joins("JOIN pod_members ON pod_members.pod_id = pods.id").
		Where("pod_members.user_id = ?", userID).
		Order("pod_members.created_at ASC").
		Find(&pods).Error
	return pods, err
}

func (s *GormStore) CreatePod(ctx context.Context, p *models.Pod, ownerID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p.OwnerID = ownerID
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return tx.Create(&models.PodMember{PodID: p.ID, UserID: ownerID, Role: models.RoleOwner}).Error
	})
}

func (s *GormStore) AddMember(ctx context.Context, podID, userID, role string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PodMember{PodID: podID, UserID: userID, Role: role}).Error
}

func (s *GormStore) ListMembers(ctx context.Context, podID string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN pod_members ON pod_members.user_id = users.id").
		Where("pod_members.pod_id = ?", podID).
		Order("pod_members.created_at ASC").
		Find(&users).Error
	return users, err
}

func (s *GormStore) IsMember(ctx context.Context, podID, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PodMember{}).
		Where("pod_id = ? AND user_id = ?", podID, userID).
		Count(&n).Error
	return n > 0, err
}

func (s *GormStore) GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error) {
	var c models.CheckIn
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) ListCheckIns(ctx context.Context, podID string) ([]models.CheckIn, error) {
	var out []models.CheckIn
	err := s.db.WithContext(ctx).Where("pod_id = ?", podID).Order("timestamp DESC").Find(&out).Error
	return out, err
}

func (s *GormStore) CreateCheckIn(ctx context.Context, c *models.CheckIn) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return err
		}
		if len(c.Goals) == 0 {
			return nil
		}
		for i := range c.Goals {
			c.Goals[i].CheckInID = c.ID
			c.Goals[i].Position = i
		}
		return tx.Create(&c.Goals).Error
	})
}

func (s *GormStore) CompleteCheckIn(ctx context.Context, id, recap string, at time.Time, goals []models.Goal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CheckIn{}).
			Where("id = ? AND stage = ?", id, models.StageMorning).
			Updates(map[string]interface{}{
				"stage":         models.StageEvening,
				"evening_recap": recap,
				"timestamp":     at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.CheckIn{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrConflict
		}
		for _, g := range goals {
			if err := tx.Model(&models.Goal{}).
				Where("id = ? AND check_in_id = ?", g.ID, id).
				UpdateColumn("status", g.Status).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) ListGoals(ctx context.Context, checkInIDs []string) ([]models.Goal, error) {
	if len(checkInIDs) == 0 {
		return nil, nil
	}
	var out []models.Goal
	err := s.db.WithContext(ctx).Where("check_in_id IN ?", checkInIDs).Order("position ASC").Find(&out).Error
	return out, err
}

func (s *GormStore) ListComments(ctx context.Context, checkInIDs []string) ([]models.Comment, error) {
	if len(checkInIDs) == 0 {
		return nil, nil
	}
	var out []models.Comment
	err := s.db.WithContext(ctx).Where("check_in_id IN ?", checkInIDs).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (s *GormStore) ListReactions(ctx context.Context, checkInIDs []string) ([]models.Reaction, error) {
	if len(checkInIDs) == 0 {
		return nil, nil
	}
	var out []models.Reaction
	err := s.db.WithContext(ctx).Where("check_in_id IN ?", checkInIDs).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (s *GormStore) CreateComment(ctx context.Context, c *models.Comment, n *models.Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if n == nil {
			return nil
		}
		return tx.Create(n).Error
	})
}

func (s *GormStore) GetReaction(ctx context.Context, checkInID, userID string) (*models.Reaction, error) {
	var r models.Reaction
	err := s.db.WithContext(ctx).Where("check_in_id = ? AND user_id = ?", checkInID, userID).First(&r).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) CreateReaction(ctx context.Context, r *models.Reaction, n *models.Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		if n == nil {
			return nil
		}
		return tx.Create(n).Error
	})
}

func (s *GormStore) UpdateReaction(ctx context.Context, r *models.Reaction, n *models.Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Reaction{}).Where("id = ?", r.ID).
			Updates(map[string]interface{}{"emoji": r.Emoji, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		if n == nil {
			return nil
		}
		return tx.Create(n).Error
	})
}

func (s *GormStore) DeleteReaction(ctx context.Context, r *models.Reaction) error {
	return s.db.WithContext(ctx).Where("id = ?", r.ID).Delete(&models.Reaction{}).Error
}

func (s *GormStore) ListNotifications(ctx context.Context, userID string, checkInIDs []string) ([]models.Notification, error) {
	if len(checkInIDs) == 0 {
		return nil, nil
	}
	var out []models.Notification
	err := s.db.WithContext(ctx).
		Where("target_user_id = ? AND check_in_id IN ?", userID, checkInIDs).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND target_user_id = ?", id, userID).
		UpdateColumn("read", true).Error
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("target_user_id = ? AND `read` = ?", userID, false).
		UpdateColumn("read", true).Error
}
