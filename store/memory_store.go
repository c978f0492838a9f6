package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/branch/models"
)

// MemoryStore keeps everything in process memory. It backs demo mode
// (store driver "memory") and mirrors GormStore semantics, including
// insertion order for relations.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[string]models.User
	pods          map[string]models.Pod
	members       []models.PodMember
	checkIns      []models.CheckIn
	goals         []models.Goal
	comments      []models.Comment
	reactions     []models.Reaction
	notifications []models.Notification
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:   time.Now,
		users: map[string]models.User{},
		pods:  map[string]models.Pod{},
	}
}

// WithClock replaces the time source used for generated timestamps.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = newID(u.ID)
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetPod(ctx context.Context, id string) (*models.Pod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pods[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListUserPods(ctx context.Context, userID string) ([]models.Pod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Pod
	for _, m := range s.members {
		if m.UserID == userID {
			if p, ok := s.pods[m.PodID]; ok {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) CreatePod(ctx context.Context, p *models.Pod, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = newID(p.ID)
	p.OwnerID = ownerID
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.pods[p.ID] = *p
	s.members = append(s.members, models.PodMember{PodID: p.ID, UserID: ownerID, Role: models.RoleOwner, CreatedAt: now})
	return nil
}

func (s *MemoryStore) AddMember(ctx context.Context, podID, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.PodID == podID && m.UserID == userID {
			return nil
		}
	}
	s.members = append(s.members, models.PodMember{PodID: podID, UserID: userID, Role: role, CreatedAt: s.now()})
	return nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, podID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, m := range s.members {
		if m.PodID != podID {
			continue
		}
		if u, ok := s.users[m.UserID]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *MemoryStore) IsMember(ctx context.Context, podID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.PodID == podID && m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.checkIns {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListCheckIns(ctx context.Context, podID string) ([]models.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CheckIn
	// Walk backwards so equal timestamps keep newest-inserted first.
	for i := len(s.checkIns) - 1; i >= 0; i-- {
		if s.checkIns[i].PodID == podID {
			out = append(out, s.checkIns[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) CreateCheckIn(ctx context.Context, c *models.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = newID(c.ID)
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now()
	}
	if c.Stage == "" {
		c.Stage = models.StageMorning
	}
	for i := range c.Goals {
		g := &c.Goals[i]
		g.ID = newID(g.ID)
		g.CheckInID = c.ID
		g.Position = i
		if g.Status == "" {
			g.Status = models.GoalPartial
		}
		s.goals = append(s.goals, *g)
	}
	row := *c
	row.Goals, row.Comments, row.Reactions = nil, nil, nil
	s.checkIns = append(s.checkIns, row)
	return nil
}

func (s *MemoryStore) CompleteCheckIn(ctx context.Context, id, recap string, at time.Time, goals []models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.checkIns {
		if s.checkIns[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	if s.checkIns[idx].Stage != models.StageMorning {
		return ErrConflict
	}
	s.checkIns[idx].Stage = models.StageEvening
	s.checkIns[idx].EveningRecap = recap
	s.checkIns[idx].Timestamp = at
	for _, g := range goals {
		for i := range s.goals {
			if s.goals[i].ID == g.ID && s.goals[i].CheckInID == id {
				s.goals[i].Status = g.Status
			}
		}
	}
	return nil
}

func (s *MemoryStore) ListGoals(ctx context.Context, checkInIDs []string) ([]models.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := idSet(checkInIDs)
	var out []models.Goal
	for _, g := range s.goals {
		if want[g.CheckInID] {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) ListComments(ctx context.Context, checkInIDs []string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := idSet(checkInIDs)
	var out []models.Comment
	for _, c := range s.comments {
		if want[c.CheckInID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListReactions(ctx context.Context, checkInIDs []string) ([]models.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := idSet(checkInIDs)
	var out []models.Reaction
	for _, r := range s.reactions {
		if want[r.CheckInID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// insertNotificationLocked expects s.mu to be held for writing.
func (s *MemoryStore) insertNotificationLocked(n *models.Notification) {
	if n == nil {
		return
	}
	n.ID = newID(n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications = append(s.notifications, *n)
}

func (s *MemoryStore) CreateComment(ctx context.Context, c *models.Comment, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = newID(c.ID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.comments = append(s.comments, *c)
	s.insertNotificationLocked(n)
	return nil
}

func (s *MemoryStore) GetReaction(ctx context.Context, checkInID, userID string) (*models.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reactions {
		if r.CheckInID == checkInID && r.UserID == userID {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateReaction(ctx context.Context, r *models.Reaction, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = newID(r.ID)
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	s.reactions = append(s.reactions, *r)
	s.insertNotificationLocked(n)
	return nil
}

func (s *MemoryStore) UpdateReaction(ctx context.Context, r *models.Reaction, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reactions {
		if s.reactions[i].ID == r.ID {
			s.reactions[i].Emoji = r.Emoji
			s.reactions[i].UpdatedAt = s.now()
			s.insertNotificationLocked(n)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteReaction(ctx context.Context, r *models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.reactions[:0]
	for _, existing := range s.reactions {
		if existing.ID != r.ID {
			kept = append(kept, existing)
		}
	}
	s.reactions = kept
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID string, checkInIDs []string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := idSet(checkInIDs)
	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.TargetUserID == userID && want[n.CheckInID] {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].TargetUserID == userID {
			s.notifications[i].Read = true
		}
	}
	return nil
}

func (s *MemoryStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].TargetUserID == userID {
			s.notifications[i].Read = true
		}
	}
	return nil
}
