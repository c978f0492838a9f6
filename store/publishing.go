package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/branch/models"
)

type publishingStore struct {
	Store
	broker Broker
	log    *zap.SugaredLogger
}

// WithEvents wraps inner so that every successful write publishes a change
// event on broker. Reads pass through. A failed publish is logged and does
// not fail the write; subscribers reconcile periodically.
func WithEvents(inner Store, broker Broker, logger *zap.Logger) Store {
	return &publishingStore{Store: inner, broker: broker, log: logger.Sugar()}
}

func (s *publishingStore) publish(ctx context.Context, ev Event) {
	ev.At = time.Now()
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.log.Warnw("change event not published", "collection", ev.Collection, "op", ev.Op, "error", err)
	}
}

// podOf resolves the pod a check-in belongs to, for routing events.
func (s *publishingStore) podOf(ctx context.Context, checkInID string) string {
	c, err := s.Store.GetCheckIn(ctx, checkInID)
	if err != nil {
		s.log.Warnw("cannot resolve pod for event", "check_in_id", checkInID, "error", err)
		return ""
	}
	return c.PodID
}

func (s *publishingStore) notify(ctx context.Context, podID string, n *models.Notification) {
	if n == nil {
		return
	}
	s.publish(ctx, Event{Collection: CollectionNotifications, Op: OpInsert, PodID: podID, CheckInID: n.CheckInID, UserID: n.TargetUserID})
}

func (s *publishingStore) CreatePod(ctx context.Context, p *models.Pod, ownerID string) error {
	if err := s.Store.CreatePod(ctx, p, ownerID); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionPods, Op: OpInsert, PodID: p.ID, UserID: ownerID})
	return nil
}

func (s *publishingStore) AddMember(ctx context.Context, podID, userID, role string) error {
	if err := s.Store.AddMember(ctx, podID, userID, role); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionMembers, Op: OpInsert, PodID: podID, UserID: userID})
	return nil
}

func (s *publishingStore) CreateCheckIn(ctx context.Context, c *models.CheckIn) error {
	if err := s.Store.CreateCheckIn(ctx, c); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionCheckIns, Op: OpInsert, PodID: c.PodID, CheckInID: c.ID, UserID: c.UserID})
	if len(c.Goals) > 0 {
		s.publish(ctx, Event{Collection: CollectionGoals, Op: OpInsert, PodID: c.PodID, CheckInID: c.ID})
	}
	return nil
}

func (s *publishingStore) CompleteCheckIn(ctx context.Context, id, recap string, at time.Time, goals []models.Goal) error {
	if err := s.Store.CompleteCheckIn(ctx, id, recap, at, goals); err != nil {
		return err
	}
	podID := s.podOf(ctx, id)
	s.publish(ctx, Event{Collection: CollectionCheckIns, Op: OpUpdate, PodID: podID, CheckInID: id})
	if len(goals) > 0 {
		s.publish(ctx, Event{Collection: CollectionGoals, Op: OpUpdate, PodID: podID, CheckInID: id})
	}
	return nil
}

func (s *publishingStore) CreateComment(ctx context.Context, c *models.Comment, n *models.Notification) error {
	if err := s.Store.CreateComment(ctx, c, n); err != nil {
		return err
	}
	podID := s.podOf(ctx, c.CheckInID)
	s.publish(ctx, Event{Collection: CollectionComments, Op: OpInsert, PodID: podID, CheckInID: c.CheckInID, UserID: c.UserID})
	s.notify(ctx, podID, n)
	return nil
}

func (s *publishingStore) CreateReaction(ctx context.Context, r *models.Reaction, n *models.Notification) error {
	if err := s.Store.CreateReaction(ctx, r, n); err != nil {
		return err
	}
	podID := s.podOf(ctx, r.CheckInID)
	s.publish(ctx, Event{Collection: CollectionReactions, Op: OpInsert, PodID: podID, CheckInID: r.CheckInID, UserID: r.UserID})
	s.notify(ctx, podID, n)
	return nil
}

func (s *publishingStore) UpdateReaction(ctx context.Context, r *models.Reaction, n *models.Notification) error {
	if err := s.Store.UpdateReaction(ctx, r, n); err != nil {
		return err
	}
	podID := s.podOf(ctx, r.CheckInID)
	s.publish(ctx, Event{Collection: CollectionReactions, Op: OpUpdate, PodID: podID, CheckInID: r.CheckInID, UserID: r.UserID})
	s.notify(ctx, podID, n)
	return nil
}

func (s *publishingStore) DeleteReaction(ctx context.Context, r *models.Reaction) error {
	if err := s.Store.DeleteReaction(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionReactions, Op: OpDelete, PodID: s.podOf(ctx, r.CheckInID), CheckInID: r.CheckInID, UserID: r.UserID})
	return nil
}

func (s *publishingStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if err := s.Store.MarkNotificationRead(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionNotifications, Op: OpUpdate, UserID: userID})
	return nil
}

func (s *publishingStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if err := s.Store.MarkAllNotificationsRead(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionNotifications, Op: OpUpdate, UserID: userID})
	return nil
}
