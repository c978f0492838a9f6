package store

import (
	"context"
	"errors"
	"time"

	"github.com/cppla/branch/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional update matched no row
	// because the row is no longer in the expected state.
	ErrConflict = errors.New("record state conflict")
)

// Store is the remote data store behind the pod engine. Implementations
// must be safe for concurrent use.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error

	GetPod(ctx context.Context, id string) (*models.Pod, error)
	ListUserPods(ctx context.Context, userID string) ([]models.Pod, error)
	// CreatePod inserts the pod and its owner membership together.
	CreatePod(ctx context.Context, p *models.Pod, ownerID string) error
	AddMember(ctx context.Context, podID, userID, role string) error
	ListMembers(ctx context.Context, podID string) ([]models.User, error)
	IsMember(ctx context.Context, podID, userID string) (bool, error)

	GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error)
	// ListCheckIns returns the pod's check-ins newest first, without relations.
	ListCheckIns(ctx context.Context, podID string) ([]models.CheckIn, error)
	// CreateCheckIn inserts the check-in and its goals together.
	CreateCheckIn(ctx context.Context, c *models.CheckIn) error
	// CompleteCheckIn moves a morning check-in to evening, stamping recap and
	// time, and stores the goal statuses. Returns ErrConflict when the
	// check-in is not in the morning stage.
	CompleteCheckIn(ctx context.Context, id, recap string, at time.Time, goals []models.Goal) error

	ListGoals(ctx context.Context, checkInIDs []string) ([]models.Goal, error)
	ListComments(ctx context.Context, checkInIDs []string) ([]models.Comment, error)
	ListReactions(ctx context.Context, checkInIDs []string) ([]models.Reaction, error)

	// CreateComment inserts c and, when n is not nil, the notification.
	CreateComment(ctx context.Context, c *models.Comment, n *models.Notification) error

	GetReaction(ctx context.Context, checkInID, userID string) (*models.Reaction, error)
	CreateReaction(ctx context.Context, r *models.Reaction, n *models.Notification) error
	UpdateReaction(ctx context.Context, r *models.Reaction, n *models.Notification) error
	DeleteReaction(ctx context.Context, r *models.Reaction) error

	// ListNotifications returns userID's notifications on the given
	// check-ins, newest first.
	ListNotifications(ctx context.Context, userID string, checkInIDs []string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// Models lists every persisted model, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Pod{},
		&models.PodMember{},
		&models.CheckIn{},
		&models.Goal{},
		&models.Comment{},
		&models.Reaction{},
		&models.Notification{},
	}
}
