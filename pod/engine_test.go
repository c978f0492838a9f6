package pod

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/branch/attachment"
	"github.com/cppla/branch/models"
	"github.com/cppla/branch/quota"
	"github.com/cppla/branch/store"
)

type manualScheduler struct {
	mu     sync.Mutex
	jobs   []Job
	delays []time.Duration
}

func (s *manualScheduler) Schedule(delay time.Duration, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	s.delays = append(s.delays, delay)
}

func (s *manualScheduler) RunAll(ctx context.Context) {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()
	for _, j := range jobs {
		j(ctx)
	}
}

type stubSuggest struct {
	encouragement string
	list          []string
	err           error
}

func (s stubSuggest) Focus(ctx context.Context, history []models.CheckIn) ([]string, error) {
	return s.list, s.err
}
func (s stubSuggest) Goals(ctx context.Context, focus string) ([]string, error) { return s.list, s.err }
func (s stubSuggest) Replies(ctx context.Context, c models.CheckIn, author, from models.User) ([]string, error) {
	return s.list, s.err
}
func (s stubSuggest) Encouragement(ctx context.Context, author models.User, c models.CheckIn) (string, error) {
	return s.encouragement, s.err
}
func (s stubSuggest) Recap(ctx context.Context, c models.CheckIn) (string, error) {
	return "Solid day.", s.err
}

// countingStore records how many calls reach the store.
type countingStore struct {
	store.Store
	mu    sync.Mutex
	calls int
}

func (s *countingStore) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *countingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingStore) IsMember(ctx context.Context, podID, userID string) (bool, error) {
	s.hit()
	return s.Store.IsMember(ctx, podID, userID)
}

func (s *countingStore) GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error) {
	s.hit()
	return s.Store.GetCheckIn(ctx, id)
}

func (s *countingStore) CreateCheckIn(ctx context.Context, c *models.CheckIn) error {
	s.hit()
	return s.Store.CreateCheckIn(ctx, c)
}

func (s *countingStore) CreateComment(ctx context.Context, c *models.Comment, n *models.Notification) error {
	s.hit()
	return s.Store.CreateComment(ctx, c, n)
}

func (s *countingStore) GetReaction(ctx context.Context, checkInID, userID string) (*models.Reaction, error) {
	s.hit()
	return s.Store.GetReaction(ctx, checkInID, userID)
}

type fixture struct {
	store     *countingStore
	engine    *Engine
	loader    *Loader
	scheduler *manualScheduler
	alice     *models.User
	bob       *models.User
	pod       *models.Pod
}

func unlimited() Quota {
	return quota.NewGate("test", 1000, time.Hour, quota.NewMemoryCounter(), nil, zap.NewNop())
}

func newFixture(t *testing.T, sg stubSuggest) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemoryStore()
	cs := &countingStore{Store: mem}
	sched := &manualScheduler{}
	clock := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	e := NewEngine(Options{
		Store:     cs,
		Suggest:   sg,
		Scheduler: sched,
		Logger:    zap.NewNop(),
		Now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Minute)
			return clock
		},
	})

	alice, err := e.EnsureUser(ctx, "Alice@Example.com", "Alice", "")
	require.NoError(t, err)
	p, err := e.EnsurePod(ctx, alice)
	require.NoError(t, err)
	bob, err := e.EnsureUser(ctx, "bob@example.com", "", "🐻")
	require.NoError(t, err)
	outcome, err := e.InviteMember(ctx, p.ID, alice.ID, "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, InviteAdded, outcome)

	return &fixture{store: cs, engine: e, loader: NewLoader(cs, zap.NewNop()), scheduler: sched, alice: alice, bob: bob, pod: p}
}

func TestEnsureUserAndPod(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()

	assert.Equal(t, "alice@example.com", f.alice.Email)
	assert.Equal(t, models.DefaultAvatar, f.alice.Avatar)
	assert.Equal(t, "bob", f.bob.Name)
	assert.Equal(t, "🐻", f.bob.Avatar)
	assert.Equal(t, "Alice's Pod", f.pod.Name)

	again, err := f.engine.EnsureUser(ctx, "alice@example.com", "Other", "")
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, again.ID)

	p, err := f.engine.EnsurePod(ctx, f.bob)
	require.NoError(t, err)
	assert.Equal(t, f.pod.ID, p.ID)

	outcome, err := f.engine.InviteMember(ctx, f.pod.ID, f.alice.ID, "ghost@example.com")
	require.NoError(t, err)
	assert.Equal(t, InviteIgnored, outcome)
}

type recordingMailer struct {
	to, subject string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.to, m.subject = to, subject
	return nil
}

func TestInviteMember_EmailsUnknownAddress(t *testing.T) {
	ctx := context.Background()
	mailer := &recordingMailer{}
	e := NewEngine(Options{Store: store.NewMemoryStore(), Mailer: mailer, Scheduler: &manualScheduler{}, Logger: zap.NewNop()})
	u, err := e.EnsureUser(ctx, "ann@example.com", "Ann", "")
	require.NoError(t, err)
	p, err := e.EnsurePod(ctx, u)
	require.NoError(t, err)

	outcome, err := e.InviteMember(ctx, p.ID, u.ID, " New@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, InviteEmailed, outcome)
	assert.Equal(t, "new@example.com", mailer.to)
	assert.Equal(t, "Ann invited you to Ann's Pod", mailer.subject)

	_, err = e.InviteMember(ctx, p.ID, "stranger", "x@example.com")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ann", DisplayName(" Ann ", "a@x.io"))
	assert.Equal(t, "sam", DisplayName("", "sam@x.io"))
	assert.Equal(t, "User", DisplayName("", ""))
}

func TestCreateCheckIn_SchedulesEncouragement(t *testing.T) {
	f := newFixture(t, stubSuggest{encouragement: "You've got this, Alice!"})
	ctx := context.Background()

	c, err := f.engine.CreateCheckIn(ctx, unlimited(), f.alice.ID, f.pod.ID, "  Ship the release  ", []GoalDraft{
		{Text: "Write changelog"},
		{Text: "   "},
		{Text: "Tag <b>v1</b>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ship the release", c.Focus)
	assert.Equal(t, models.StageMorning, c.Stage)
	require.Len(t, c.Goals, 2)
	assert.Equal(t, "Tag v1", c.Goals[1].Text)
	assert.Equal(t, models.GoalPartial, c.Goals[0].Status)

	require.Len(t, f.scheduler.delays, 1)
	assert.Equal(t, DefaultEncouragementDelay, f.scheduler.delays[0])

	p, err := f.loader.LoadPod(ctx, f.pod.ID, f.alice.ID)
	require.NoError(t, err)
	got, ok := p.CheckIn(c.ID)
	require.True(t, ok)
	assert.Empty(t, got.Comments)

	f.scheduler.RunAll(ctx)

	p, err = f.loader.LoadPod(ctx, f.pod.ID, f.alice.ID)
	require.NoError(t, err)
	got, _ = p.CheckIn(c.ID)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, f.bob.ID, got.Comments[0].UserID)
	assert.Equal(t, "You've got this, Alice!", got.Comments[0].Text)

	require.Len(t, p.Notifications, 1)
	n := p.Notifications[0]
	assert.Equal(t, models.NotificationComment, n.Type)
	assert.Equal(t, f.bob.ID, n.FromUserID)
	assert.Equal(t, c.ID, n.CheckInID)
	assert.False(t, n.Read)
}

func TestEncouragement_SkippedWithoutPodmate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sched := &manualScheduler{}
	e := NewEngine(Options{Store: mem, Suggest: stubSuggest{encouragement: "hi"}, Scheduler: sched, Logger: zap.NewNop()})
	solo, err := e.EnsureUser(ctx, "solo@example.com", "Solo", "")
	require.NoError(t, err)
	p, err := e.EnsurePod(ctx, solo)
	require.NoError(t, err)

	c, err := e.CreateCheckIn(ctx, unlimited(), solo.ID, p.ID, "focus", nil)
	require.NoError(t, err)
	sched.RunAll(ctx)

	comments, err := mem.ListComments(ctx, []string{c.ID})
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestQuota_LastUnitThenNoOp(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	c, err := f.engine.CreateCheckIn(ctx, unlimited(), f.alice.ID, f.pod.ID, "focus", nil)
	require.NoError(t, err)

	counter := quota.NewMemoryCounter()
	counter.Set("quota:session:bob", 9, time.Hour)
	gate := quota.NewGate("bob", 10, time.Hour, counter, nil, zap.NewNop())

	_, err = f.engine.AddComment(ctx, gate, c.ID, f.bob.ID, "Nice")
	require.NoError(t, err)
	assert.True(t, gate.LimitReached(ctx))

	before := f.store.Calls()
	_, err = f.engine.AddComment(ctx, gate, c.ID, f.bob.ID, "Again")
	assert.ErrorIs(t, err, ErrLimitReached)
	_, err = f.engine.AddReaction(ctx, gate, c.ID, f.bob.ID, "🔥")
	assert.ErrorIs(t, err, ErrLimitReached)
	_, err = f.engine.CreateCheckIn(ctx, gate, f.bob.ID, f.pod.ID, "mine", nil)
	assert.ErrorIs(t, err, ErrLimitReached)
	_, err = f.engine.SuggestGoals(ctx, gate, "mine")
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, before, f.store.Calls())
	assert.Equal(t, 10, gate.Count(ctx))

	comments, err := f.store.ListComments(ctx, []string{c.ID})
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestAddReaction_Toggle(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	q := unlimited()
	c, err := f.engine.CreateCheckIn(ctx, q, f.alice.ID, f.pod.ID, "focus", nil)
	require.NoError(t, err)

	res, err := f.engine.AddReaction(ctx, q, c.ID, f.bob.ID, "🔥")
	require.NoError(t, err)
	assert.Equal(t, ReactionAdded, res.Action)

	res, err = f.engine.AddReaction(ctx, q, c.ID, f.bob.ID, "🔥")
	require.NoError(t, err)
	assert.Equal(t, ReactionRemoved, res.Action)
	reactions, _ := f.store.ListReactions(ctx, []string{c.ID})
	assert.Empty(t, reactions)

	_, err = f.engine.AddReaction(ctx, q, c.ID, f.bob.ID, "🔥")
	require.NoError(t, err)
	res, err = f.engine.AddReaction(ctx, q, c.ID, f.bob.ID, "👏")
	require.NoError(t, err)
	assert.Equal(t, ReactionChanged, res.Action)

	reactions, _ = f.store.ListReactions(ctx, []string{c.ID})
	require.Len(t, reactions, 1)
	assert.Equal(t, "👏", reactions[0].Emoji)

	// add, add, change notify; remove does not
	notes, err := f.store.ListNotifications(ctx, f.alice.ID, []string{c.ID})
	require.NoError(t, err)
	assert.Len(t, notes, 3)
	for _, n := range notes {
		assert.Equal(t, models.NotificationReaction, n.Type)
	}
}

func TestNoSelfNotification(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	q := unlimited()
	c, err := f.engine.CreateCheckIn(ctx, q, f.alice.ID, f.pod.ID, "focus", nil)
	require.NoError(t, err)

	_, err = f.engine.AddComment(ctx, q, c.ID, f.alice.ID, "note to self")
	require.NoError(t, err)
	_, err = f.engine.AddReaction(ctx, q, c.ID, f.alice.ID, "💪")
	require.NoError(t, err)

	notes, err := f.store.ListNotifications(ctx, f.alice.ID, []string{c.ID})
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestMembershipEnforced(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	q := unlimited()
	c, err := f.engine.CreateCheckIn(ctx, q, f.alice.ID, f.pod.ID, "focus", nil)
	require.NoError(t, err)
	mallory, err := f.engine.EnsureUser(ctx, "mallory@example.com", "Mallory", "")
	require.NoError(t, err)

	_, err = f.engine.AddComment(ctx, q, c.ID, mallory.ID, "hi")
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = f.engine.AddReaction(ctx, q, c.ID, mallory.ID, "🔥")
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = f.engine.CreateCheckIn(ctx, q, mallory.ID, f.pod.ID, "focus", nil)
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = f.engine.AddComment(ctx, q, "missing", f.bob.ID, "hi")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEmptyTextRejected(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	q := quota.NewGate("empty", 10, time.Hour, quota.NewMemoryCounter(), nil, zap.NewNop())

	_, err := f.engine.CreateCheckIn(ctx, q, f.alice.ID, f.pod.ID, "  <p></p> ", nil)
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = f.engine.AddComment(ctx, q, "any", f.alice.ID, "")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, 0, q.Count(ctx))
}

func TestEveningReflection_StageMovesOnce(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	c, err := f.engine.CreateCheckIn(ctx, unlimited(), f.alice.ID, f.pod.ID, "focus", []GoalDraft{{Text: "a"}, {Text: "b"}})
	require.NoError(t, err)

	updated := []models.Goal{
		{ID: c.Goals[0].ID, Text: "a", Status: models.GoalDone},
		{ID: c.Goals[1].ID, Text: "b", Status: models.GoalSkipped},
		{Text: "added later", Status: models.GoalDone},
	}
	require.True(t, CanSubmitReflection(updated))

	pushed, err := f.engine.CompleteEveningReflection(ctx, c, updated, "Good progress", []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, pushed)

	p, err := f.loader.LoadPod(ctx, f.pod.ID, f.alice.ID)
	require.NoError(t, err)
	got, _ := p.CheckIn(c.ID)
	assert.Equal(t, models.StageEvening, got.Stage)
	assert.Equal(t, "Good progress", got.EveningRecap)
	require.Len(t, got.Goals, 2)
	assert.Equal(t, models.GoalDone, got.Goals[0].Status)
	assert.Equal(t, models.GoalSkipped, got.Goals[1].Status)

	// c still carries the stale morning stage; the store refuses.
	_, err = f.engine.CompleteEveningReflection(ctx, c, updated, "again", nil)
	assert.ErrorIs(t, err, ErrAlreadyReflected)
	_, err = f.engine.CompleteEveningReflection(ctx, &got, updated, "again", nil)
	assert.ErrorIs(t, err, ErrAlreadyReflected)

	stored, err := f.store.GetCheckIn(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Good progress", stored.EveningRecap)
}

func TestEveningReflection_InvalidStatus(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	c, err := f.engine.CreateCheckIn(ctx, unlimited(), f.alice.ID, f.pod.ID, "focus", []GoalDraft{{Text: "a"}})
	require.NoError(t, err)

	_, err = f.engine.CompleteEveningReflection(ctx, c, []models.Goal{{ID: c.Goals[0].ID, Status: "Maybe"}}, "", nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	stored, err := f.store.GetCheckIn(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageMorning, stored.Stage)
}

func TestCanSubmitReflection(t *testing.T) {
	assert.False(t, CanSubmitReflection(nil))
	assert.False(t, CanSubmitReflection([]models.Goal{{Status: models.GoalPartial}}))
	assert.True(t, CanSubmitReflection([]models.Goal{{Status: models.GoalPartial}, {Status: models.GoalSkipped}}))
}

type failingEncoder struct{}

func (failingEncoder) Encode(ctx context.Context, up attachment.Upload) (*models.Attachment, error) {
	return nil, errors.New("unreadable")
}

func TestCreateCheckIn_AttachmentFailureKeepsGoal(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	e := NewEngine(Options{Store: mem, Encoder: failingEncoder{}, Scheduler: &manualScheduler{}, Logger: zap.NewNop()})
	u, err := e.EnsureUser(ctx, "u@example.com", "U", "")
	require.NoError(t, err)
	p, err := e.EnsurePod(ctx, u)
	require.NoError(t, err)

	c, err := e.CreateCheckIn(ctx, unlimited(), u.ID, p.ID, "focus", []GoalDraft{
		{Text: "with file", Attachment: &attachment.Upload{Name: "x.bin", Data: []byte{1}}},
	})
	require.NoError(t, err)
	goals, err := mem.ListGoals(ctx, []string{c.ID})
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Nil(t, goals[0].Attachment)
}

func TestCreateCheckIn_AttachmentEncoded(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	c, err := f.engine.CreateCheckIn(ctx, unlimited(), f.alice.ID, f.pod.ID, "focus", []GoalDraft{
		{Text: "notes", Attachment: &attachment.Upload{Name: "notes.txt", Type: "text/plain", Data: []byte("hi")}},
	})
	require.NoError(t, err)
	require.NotNil(t, c.Goals[0].Attachment)
	assert.Equal(t, "notes.txt", c.Goals[0].Attachment.Name)
	assert.Contains(t, c.Goals[0].Attachment.URL, "data:text/plain")
}

func TestSuggestions_DegradeToEmpty(t *testing.T) {
	f := newFixture(t, stubSuggest{err: errors.New("provider down")})
	ctx := context.Background()
	q := quota.NewGate("s", 10, time.Hour, quota.NewMemoryCounter(), nil, zap.NewNop())

	list, err := f.engine.SuggestFocus(ctx, q, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
	text, err := f.engine.SuggestRecap(ctx, q, models.CheckIn{}, nil)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 2, q.Count(ctx))
}

func TestSuggestions_PassThrough(t *testing.T) {
	f := newFixture(t, stubSuggest{list: []string{"one", "two", "three"}})
	ctx := context.Background()
	q := unlimited()

	list, err := f.engine.SuggestReplies(ctx, q, models.CheckIn{Focus: "f"}, *f.alice, *f.bob)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	text, err := f.engine.SuggestRecap(ctx, q, models.CheckIn{Focus: "f"}, []models.Goal{{Text: "g", Status: models.GoalDone}})
	require.NoError(t, err)
	assert.Equal(t, "Solid day.", text)
}

func TestMarkNotifications(t *testing.T) {
	f := newFixture(t, stubSuggest{})
	ctx := context.Background()
	q := unlimited()
	c, err := f.engine.CreateCheckIn(ctx, q, f.alice.ID, f.pod.ID, "focus", nil)
	require.NoError(t, err)
	_, err = f.engine.AddComment(ctx, q, c.ID, f.bob.ID, "one")
	require.NoError(t, err)
	_, err = f.engine.AddComment(ctx, q, c.ID, f.bob.ID, "two")
	require.NoError(t, err)

	p, err := f.loader.LoadPod(ctx, f.pod.ID, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, p.UnreadCount())

	require.NoError(t, f.engine.MarkNotificationRead(ctx, f.alice.ID, p.Notifications[0].ID))
	require.NoError(t, f.engine.MarkNotificationRead(ctx, f.alice.ID, p.Notifications[0].ID))
	p, _ = f.loader.LoadPod(ctx, f.pod.ID, f.alice.ID)
	assert.Equal(t, 1, p.UnreadCount())

	require.NoError(t, f.engine.MarkAllRead(ctx, f.alice.ID))
	require.NoError(t, f.engine.MarkAllRead(ctx, f.alice.ID))
	p, _ = f.loader.LoadPod(ctx, f.pod.ID, f.alice.ID)
	assert.Equal(t, 0, p.UnreadCount())
}
