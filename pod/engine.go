// Package pod holds the rules for reading and changing a pod: loading the
// aggregate, check-in lifecycle, comments, reactions, notifications and
// suggestions.
package pod

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/branch/attachment"
	"github.com/cppla/branch/models"
	"github.com/cppla/branch/store"
	"github.com/cppla/branch/suggest"
	"github.com/cppla/branch/utils"
)

// DefaultEncouragementDelay is how long after a new check-in the podmate
// encouragement comment is posted.
const DefaultEncouragementDelay = 2500 * time.Millisecond

// Quota is the per-session action budget.
type Quota interface {
	TryConsume(ctx context.Context) bool
}

// GoalDraft is a goal as entered in the morning form.
type GoalDraft struct {
	Text       string
	Attachment *attachment.Upload
}

// ReactionAction tells which branch AddReaction took.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionChanged ReactionAction = "changed"
	ReactionRemoved ReactionAction = "removed"
)

// ReactionResult is the outcome of AddReaction. Reaction is nil when removed.
type ReactionResult struct {
	Action   ReactionAction   `json:"action"`
	Reaction *models.Reaction `json:"reaction,omitempty"`
}

// Mailer delivers plain text email.
type Mailer interface {
	Send(to, subject, body string) error
}

// Options configures an Engine. Store is required.
type Options struct {
	Store              store.Store
	Suggest            suggest.Client
	Encoder            attachment.Encoder
	Scheduler          Scheduler
	Mailer             Mailer
	EncouragementDelay time.Duration
	Logger             *zap.Logger
	Now                func() time.Time
}

// Engine applies user actions to the store. It never holds pod state; callers
// reload the aggregate after a successful write.
type Engine struct {
	store     store.Store
	suggest   suggest.Client
	encoder   attachment.Encoder
	scheduler Scheduler
	mailer    Mailer
	delay     time.Duration
	now       func() time.Time
	log       *zap.SugaredLogger
}

func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Suggest == nil {
		opts.Suggest = suggest.Noop{}
	}
	if opts.Encoder == nil {
		opts.Encoder = attachment.DataURLEncoder{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewTimerScheduler(0, opts.Logger)
	}
	if opts.EncouragementDelay <= 0 {
		opts.EncouragementDelay = DefaultEncouragementDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:     opts.Store,
		suggest:   opts.Suggest,
		encoder:   opts.Encoder,
		scheduler: opts.Scheduler,
		mailer:    opts.Mailer,
		delay:     opts.EncouragementDelay,
		now:       opts.Now,
		log:       opts.Logger.Sugar(),
	}
}

func (e *Engine) requireMember(ctx context.Context, podID, userID string) error {
	ok, err := e.store.IsMember(ctx, podID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// DisplayName picks the name shown for a new profile.
func DisplayName(name, email string) string {
	if n := utils.SanitizeText(name); n != "" {
		return n
	}
	if prefix, _, _ := strings.Cut(email, "@"); strings.TrimSpace(prefix) != "" {
		return strings.TrimSpace(prefix)
	}
	return "User"
}

// EnsureUser returns the profile for email, creating it on first sign-in.
func (e *Engine) EnsureUser(ctx context.Context, email, name, avatar string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmptyText
	}
	u, err := e.store.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if avatar = strings.TrimSpace(avatar); avatar == "" {
		avatar = models.DefaultAvatar
	}
	u = &models.User{Name: DisplayName(name, email), Email: email, Avatar: avatar}
	if err := e.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	e.log.Infow("user profile created", "user", u.ID)
	return u, nil
}

// EnsurePod returns the user's first pod, creating "<name>'s Pod" when the
// user has none.
func (e *Engine) EnsurePod(ctx context.Context, u *models.User) (*models.Pod, error) {
	pods, err := e.store.ListUserPods(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	if len(pods) > 0 {
		return &pods[0], nil
	}
	p := &models.Pod{Name: u.Name + "'s Pod"}
	if err := e.store.CreatePod(ctx, p, u.ID); err != nil {
		return nil, fmt.Errorf("create pod: %w", err)
	}
	e.log.Infow("pod created", "pod", p.ID, "owner", u.ID)
	return p, nil
}

// CreateCheckIn posts a morning check-in with its goals and schedules the
// podmate encouragement.
func (e *Engine) CreateCheckIn(ctx context.Context, q Quota, userID, podID, focus string, drafts []GoalDraft) (*models.CheckIn, error) {
	focus = utils.SanitizeText(focus)
	if focus == "" {
		return nil, ErrEmptyText
	}
	if !q.TryConsume(ctx) {
		return nil, ErrLimitReached
	}
	if err := e.requireMember(ctx, podID, userID); err != nil {
		return nil, err
	}

	goals := make([]models.Goal, 0, len(drafts))
	for _, d := range drafts {
		text := utils.SanitizeText(d.Text)
		if text == "" {
			continue
		}
		g := models.Goal{Text: text, Status: models.GoalPartial, Position: len(goals)}
		if d.Attachment != nil {
			a, err := e.encoder.Encode(ctx, *d.Attachment)
			if err != nil {
				e.log.Warnw("attachment dropped", "file", d.Attachment.Name, "error", err)
			} else {
				g.Attachment = a
			}
		}
		goals = append(goals, g)
	}

	c := &models.CheckIn{
		PodID:     podID,
		UserID:    userID,
		Timestamp: e.now(),
		Stage:     models.StageMorning,
		Focus:     focus,
		Goals:     goals,
	}
	if err := e.store.CreateCheckIn(ctx, c); err != nil {
		return nil, fmt.Errorf("create check-in: %w", err)
	}

	snapshot := *c
	snapshot.Goals = append([]models.Goal(nil), c.Goals...)
	e.scheduler.Schedule(e.delay, func(ctx context.Context) {
		e.postEncouragement(ctx, snapshot)
	})
	return c, nil
}

// CanSubmitReflection reports whether at least one goal was marked something
// other than Partial.
func CanSubmitReflection(goals []models.Goal) bool {
	for _, g := range goals {
		if g.Status != models.GoalPartial {
			return true
		}
	}
	return false
}

// CompleteEveningReflection closes a morning check-in: stage, recap, time and
// goal statuses are written together. pushToTomorrow is returned unchanged
// for the caller to carry into the next morning form.
func (e *Engine) CompleteEveningReflection(ctx context.Context, checkIn *models.CheckIn, updated []models.Goal, recap string, pushToTomorrow []string) ([]string, error) {
	if checkIn.Stage == models.StageEvening {
		return nil, ErrAlreadyReflected
	}
	goals := make([]models.Goal, 0, len(updated))
	for _, g := range updated {
		if !g.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, g.Status)
		}
		if g.ID == "" {
			e.log.Warnw("goal without id skipped in reflection", "check_in", checkIn.ID, "text", g.Text)
			continue
		}
		goals = append(goals, g)
	}

	err := e.store.CompleteCheckIn(ctx, checkIn.ID, utils.SanitizeText(recap), e.now(), goals)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyReflected
	}
	if err != nil {
		return nil, fmt.Errorf("complete check-in: %w", err)
	}
	return pushToTomorrow, nil
}

func (e *Engine) loadCheckIn(ctx context.Context, checkInID string) (*models.CheckIn, error) {
	c, err := e.store.GetCheckIn(ctx, checkInID)
	if err != nil {
		return nil, fmt.Errorf("load check-in %s: %w", checkInID, err)
	}
	return c, nil
}

// AddComment replies on a check-in and notifies its owner.
func (e *Engine) AddComment(ctx context.Context, q Quota, checkInID, authorID, text string) (*models.Comment, error) {
	text = utils.SanitizeText(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if !q.TryConsume(ctx) {
		return nil, ErrLimitReached
	}
	c, err := e.loadCheckIn(ctx, checkInID)
	if err != nil {
		return nil, err
	}
	if err := e.requireMember(ctx, c.PodID, authorID); err != nil {
		return nil, err
	}

	cm := &models.Comment{CheckInID: checkInID, UserID: authorID, Text: text, CreatedAt: e.now()}
	if err := e.store.CreateComment(ctx, cm, e.notification(models.NotificationComment, authorID, c)); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return cm, nil
}

// notification builds the owner notification, or nil for self-interaction.
func (e *Engine) notification(kind models.NotificationType, fromID string, c *models.CheckIn) *models.Notification {
	if fromID == c.UserID {
		return nil
	}
	return &models.Notification{
		Type:         kind,
		FromUserID:   fromID,
		TargetUserID: c.UserID,
		CheckInID:    c.ID,
		CreatedAt:    e.now(),
	}
}

// AddReaction toggles the author's reaction: a new emoji is added, the same
// emoji again removes it, a different one replaces it. Every call consumes
// quota, including removals.
func (e *Engine) AddReaction(ctx context.Context, q Quota, checkInID, authorID, emoji string) (*ReactionResult, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, ErrEmptyText
	}
	if !q.TryConsume(ctx) {
		return nil, ErrLimitReached
	}
	c, err := e.loadCheckIn(ctx, checkInID)
	if err != nil {
		return nil, err
	}
	if err := e.requireMember(ctx, c.PodID, authorID); err != nil {
		return nil, err
	}

	existing, err := e.store.GetReaction(ctx, checkInID, authorID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r := &models.Reaction{CheckInID: checkInID, UserID: authorID, Emoji: emoji}
		if err := e.store.CreateReaction(ctx, r, e.notification(models.NotificationReaction, authorID, c)); err != nil {
			return nil, fmt.Errorf("create reaction: %w", err)
		}
		return &ReactionResult{Action: ReactionAdded, Reaction: r}, nil
	case err != nil:
		return nil, fmt.Errorf("load reaction: %w", err)
	case existing.Emoji == emoji:
		if err := e.store.DeleteReaction(ctx, existing); err != nil {
			return nil, fmt.Errorf("delete reaction: %w", err)
		}
		return &ReactionResult{Action: ReactionRemoved}, nil
	default:
		existing.Emoji = emoji
		if err := e.store.UpdateReaction(ctx, existing, e.notification(models.NotificationReaction, authorID, c)); err != nil {
			return nil, fmt.Errorf("update reaction: %w", err)
		}
		return &ReactionResult{Action: ReactionChanged, Reaction: existing}, nil
	}
}

func (e *Engine) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	if err := e.store.MarkNotificationRead(ctx, userID, notificationID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (e *Engine) MarkAllRead(ctx context.Context, userID string) error {
	if err := e.store.MarkAllNotificationsRead(ctx, userID); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// InviteOutcome reports what InviteMember did.
type InviteOutcome string

const (
	InviteAdded   InviteOutcome = "added"
	InviteEmailed InviteOutcome = "emailed"
	InviteIgnored InviteOutcome = "ignored"
)

// InviteMember adds the user registered under email to the pod. Unknown
// addresses get an invitation email when a mailer is configured and are
// otherwise acknowledged without effect.
func (e *Engine) InviteMember(ctx context.Context, podID, inviterID, email string) (InviteOutcome, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmptyText
	}
	if err := e.requireMember(ctx, podID, inviterID); err != nil {
		return "", err
	}
	u, err := e.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return e.sendInvite(ctx, podID, inviterID, email), nil
	}
	if err != nil {
		return "", fmt.Errorf("find invitee: %w", err)
	}
	if err := e.store.AddMember(ctx, podID, u.ID, models.RoleMember); err != nil {
		return "", fmt.Errorf("add member: %w", err)
	}
	return InviteAdded, nil
}

func (e *Engine) sendInvite(ctx context.Context, podID, inviterID, email string) InviteOutcome {
	if e.mailer == nil {
		e.log.Infow("invite for unknown email acknowledged", "pod", podID)
		return InviteIgnored
	}
	inviter, err := e.store.GetUser(ctx, inviterID)
	if err != nil {
		e.log.Warnw("invite not sent: inviter unavailable", "pod", podID, "error", err)
		return InviteIgnored
	}
	p, err := e.store.GetPod(ctx, podID)
	if err != nil {
		e.log.Warnw("invite not sent: pod unavailable", "pod", podID, "error", err)
		return InviteIgnored
	}
	subject := fmt.Sprintf("%s invited you to %s", inviter.Name, p.Name)
	body := fmt.Sprintf("%s wants you in their accountability pod %q.\n\n"+
		"Sign in to Branch with this address to join, then share your focus for today.\n", inviter.Name, p.Name)
	if err := e.mailer.Send(email, subject, body); err != nil {
		e.log.Warnw("invite email failed", "pod", podID, "error", err)
		return InviteIgnored
	}
	return InviteEmailed
}
