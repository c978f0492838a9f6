package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/branch/models"
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func seedPod(t *testing.T, s Store) (models.User, models.User, models.Pod) {
	t.Helper()
	ctx := context.Background()
	alice := models.User{Name: "Alice", Email: "alice@example.com"}
	bob := models.User{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, s.CreateUser(ctx, &alice))
	require.NoError(t, s.CreateUser(ctx, &bob))
	p := models.Pod{Name: "Alice's Pod"}
	require.NoError(t, s.CreatePod(ctx, &p, alice.ID))
	require.NoError(t, s.AddMember(ctx, p.ID, bob.ID, models.RoleMember))
	return alice, bob, p
}

func TestMemoryStore_PodMembership(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	alice, bob, p := seedPod(t, s)

	// adding twice is a no-op
	require.NoError(t, s.AddMember(ctx, p.ID, bob.ID, models.RoleMember))
	members, err := s.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, alice.ID, members[0].ID)

	ok, err := s.IsMember(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.IsMember(ctx, p.ID, "stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	pods, err := s.ListUserPods(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pods, 1)
	assert.Equal(t, alice.ID, pods[0].OwnerID)

	u, err := s.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, u.ID)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CheckInLifecycle(t *testing.T) {
	clock := &fixedClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	s := NewMemoryStore().WithClock(clock.now)
	ctx := context.Background()
	alice, _, p := seedPod(t, s)

	first := models.CheckIn{PodID: p.ID, UserID: alice.ID, Focus: "first"}
	require.NoError(t, s.CreateCheckIn(ctx, &first))
	second := models.CheckIn{PodID: p.ID, UserID: alice.ID, Focus: "second", Goals: []models.Goal{{Text: "a"}, {Text: "b"}}}
	require.NoError(t, s.CreateCheckIn(ctx, &second))
	assert.Equal(t, models.StageMorning, second.Stage)

	list, err := s.ListCheckIns(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Focus)

	goals, err := s.ListGoals(ctx, []string{second.ID})
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "a", goals[0].Text)
	assert.Equal(t, models.GoalPartial, goals[1].Status)

	done := []models.Goal{{ID: goals[0].ID, Status: models.GoalDone}}
	at := clock.now()
	require.NoError(t, s.CompleteCheckIn(ctx, second.ID, "good day", at, done))
	got, err := s.GetCheckIn(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageEvening, got.Stage)
	assert.Equal(t, "good day", got.EveningRecap)
	assert.True(t, got.Timestamp.Equal(at))

	goals, err = s.ListGoals(ctx, []string{second.ID})
	require.NoError(t, err)
	assert.Equal(t, models.GoalDone, goals[0].Status)
	assert.Equal(t, models.GoalPartial, goals[1].Status)

	assert.ErrorIs(t, s.CompleteCheckIn(ctx, second.ID, "again", at, nil), ErrConflict)
	assert.ErrorIs(t, s.CompleteCheckIn(ctx, "missing", "x", at, nil), ErrNotFound)
}

func TestMemoryStore_ReactionsAndNotifications(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	alice, bob, p := seedPod(t, s)
	c := models.CheckIn{PodID: p.ID, UserID: alice.ID, Focus: "focus"}
	require.NoError(t, s.CreateCheckIn(ctx, &c))

	r := models.Reaction{CheckInID: c.ID, UserID: bob.ID, Emoji: "🔥"}
	n := models.Notification{Type: models.NotificationReaction, FromUserID: bob.ID, TargetUserID: alice.ID, CheckInID: c.ID}
	require.NoError(t, s.CreateReaction(ctx, &r, &n))

	got, err := s.GetReaction(ctx, c.ID, bob.ID)
	require.NoError(t, err)
	got.Emoji = "👏"
	require.NoError(t, s.UpdateReaction(ctx, got, nil))
	list, err := s.ListReactions(ctx, []string{c.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "👏", list[0].Emoji)

	require.NoError(t, s.DeleteReaction(ctx, got))
	_, err = s.GetReaction(ctx, c.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	notes, err := s.ListNotifications(ctx, alice.ID, []string{c.ID})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.False(t, notes[0].Read)

	// another user cannot mark alice's notification
	require.NoError(t, s.MarkNotificationRead(ctx, bob.ID, notes[0].ID))
	notes, _ = s.ListNotifications(ctx, alice.ID, []string{c.ID})
	assert.False(t, notes[0].Read)

	require.NoError(t, s.MarkAllNotificationsRead(ctx, alice.ID))
	notes, _ = s.ListNotifications(ctx, alice.ID, []string{c.ID})
	assert.True(t, notes[0].Read)

	other, err := s.ListNotifications(ctx, alice.ID, []string{"elsewhere"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryBroker_Filters(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	var got []Event
	sub, err := b.Subscribe(ctx, []Filter{
		{Collection: CollectionComments, PodID: "p1"},
		{Collection: CollectionNotifications, UserID: "u1"},
	}, func(ev Event) { got = append(got, ev) })
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers())

	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionComments, PodID: "p1"}))
	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionComments, PodID: "p2"}))
	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionReactions, PodID: "p1"}))
	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionNotifications, UserID: "u1"}))
	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionNotifications, UserID: "u2"}))
	require.Len(t, got, 2)

	require.NoError(t, sub.Close())
	assert.Equal(t, 0, b.Subscribers())
	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionComments, PodID: "p1"}))
	assert.Len(t, got, 2)
}

func TestChannelRouting(t *testing.T) {
	assert.Equal(t, "branch:user:u1", channelForEvent(Event{Collection: CollectionNotifications, PodID: "p1", UserID: "u1"}))
	assert.Equal(t, "branch:pod:p1", channelForEvent(Event{Collection: CollectionComments, PodID: "p1", UserID: "u1"}))
	assert.Equal(t, "branch:user:u1", channelForFilter(Filter{Collection: CollectionNotifications, UserID: "u1"}))
	assert.Equal(t, "branch:pod:p1", channelForFilter(Filter{Collection: CollectionGoals, PodID: "p1"}))
}

func TestWithEvents_PublishesAfterWrites(t *testing.T) {
	b := NewMemoryBroker()
	s := WithEvents(NewMemoryStore(), b, zap.NewNop())
	ctx := context.Background()
	alice, bob, p := seedPod(t, s)

	var events []Event
	_, err := b.Subscribe(ctx, []Filter{
		{Collection: CollectionCheckIns, PodID: p.ID},
		{Collection: CollectionComments, PodID: p.ID},
		{Collection: CollectionNotifications, UserID: alice.ID},
	}, func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	c := models.CheckIn{PodID: p.ID, UserID: alice.ID, Focus: "focus"}
	require.NoError(t, s.CreateCheckIn(ctx, &c))
	cm := models.Comment{CheckInID: c.ID, UserID: bob.ID, Text: "go!"}
	n := models.Notification{Type: models.NotificationComment, FromUserID: bob.ID, TargetUserID: alice.ID, CheckInID: c.ID}
	require.NoError(t, s.CreateComment(ctx, &cm, &n))

	require.Len(t, events, 3)
	assert.Equal(t, CollectionCheckIns, events[0].Collection)
	assert.Equal(t, CollectionComments, events[1].Collection)
	assert.Equal(t, p.ID, events[1].PodID)
	assert.Equal(t, CollectionNotifications, events[2].Collection)
	assert.Equal(t, alice.ID, events[2].UserID)

	// failed writes publish nothing
	err = s.CompleteCheckIn(ctx, "missing", "", time.Now(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, events, 3)
}
