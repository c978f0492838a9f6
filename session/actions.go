package session

import (
	"context"
	"time"

	"github.com/cppla/branch/models"
	"github.com/cppla/branch/pod"
	"github.com/cppla/branch/quota"
)

func (c *Controller) ids() (userID, podID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.ID, c.current.ID
}

// CreateCheckIn posts the morning check-in. Goals pushed from the previous
// reflection are consumed by it.
func (c *Controller) CreateCheckIn(ctx context.Context, focus string, goals []pod.GoalDraft) (*models.CheckIn, error) {
	userID, podID := c.ids()
	ci, err := c.engine.CreateCheckIn(ctx, c.gate, userID, podID, focus, goals)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pushed = nil
	c.mu.Unlock()
	c.RequestReload()
	return ci, nil
}

// CompleteEveningReflection closes the given check-in from the current
// snapshot and remembers the goals pushed to tomorrow.
func (c *Controller) CompleteEveningReflection(ctx context.Context, checkInID string, goals []models.Goal, recap string, pushToTomorrow []string) ([]string, error) {
	ci, err := c.checkIn(ctx, checkInID)
	if err != nil {
		return nil, err
	}
	pushed, err := c.engine.CompleteEveningReflection(ctx, ci, goals, recap, pushToTomorrow)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pushed = append([]string(nil), pushed...)
	c.mu.Unlock()
	c.RequestReload()
	return pushed, nil
}

// checkIn finds a check-in in the snapshot, refreshing once if it is not
// there yet.
func (c *Controller) checkIn(ctx context.Context, id string) (*models.CheckIn, error) {
	if ci, ok := c.Pod().CheckIn(id); ok {
		return &ci, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	if ci, ok := c.Pod().CheckIn(id); ok {
		return &ci, nil
	}
	return nil, ErrUnknownCheckIn
}

func (c *Controller) AddComment(ctx context.Context, checkInID, text string) (*models.Comment, error) {
	userID, _ := c.ids()
	cm, err := c.engine.AddComment(ctx, c.gate, checkInID, userID, text)
	if err != nil {
		return nil, err
	}
	c.RequestReload()
	return cm, nil
}

func (c *Controller) AddReaction(ctx context.Context, checkInID, emoji string) (*pod.ReactionResult, error) {
	userID, _ := c.ids()
	res, err := c.engine.AddReaction(ctx, c.gate, checkInID, userID, emoji)
	if err != nil {
		return nil, err
	}
	c.RequestReload()
	return res, nil
}

func (c *Controller) MarkAllRead(ctx context.Context) error {
	userID, _ := c.ids()
	if err := c.engine.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	c.RequestReload()
	return nil
}

// OpenNotification marks the notification read, reloads, and points the
// view at the check-in it refers to, highlighted for a few seconds. A
// check-in missing from the pod leaves the view alone.
func (c *Controller) OpenNotification(ctx context.Context, notificationID, checkInID string) error {
	userID, _ := c.ids()
	if err := c.engine.MarkNotificationRead(ctx, userID, notificationID); err != nil {
		return err
	}
	if err := c.Refresh(ctx); err != nil {
		c.log.Warnw("reload after opening notification failed", "error", err)
	}

	ci, ok := c.Pod().CheckIn(checkInID)
	if !ok {
		return nil
	}
	view := ViewMyDashboard
	if ci.UserID != userID {
		view = ci.UserID
	}

	c.mu.Lock()
	c.view = view
	c.selectedDate = ""
	c.highlighted = checkInID
	c.highlightGen++
	gen := c.highlightGen
	c.mu.Unlock()

	time.AfterFunc(c.highlight, func() {
		c.mu.Lock()
		if c.highlightGen == gen {
			c.highlighted = ""
		}
		c.mu.Unlock()
	})
	return nil
}

func (c *Controller) InviteMember(ctx context.Context, email string) (pod.InviteOutcome, error) {
	userID, podID := c.ids()
	outcome, err := c.engine.InviteMember(ctx, podID, userID, email)
	if err != nil {
		return "", err
	}
	if outcome == pod.InviteAdded {
		c.RequestReload()
	}
	return outcome, nil
}

// SuggestFocus draws on the user's own recent check-ins.
func (c *Controller) SuggestFocus(ctx context.Context) ([]string, error) {
	userID, _ := c.ids()
	var history []models.CheckIn
	for _, ci := range c.Pod().CheckIns {
		if ci.UserID == userID {
			history = append(history, ci)
		}
	}
	return c.engine.SuggestFocus(ctx, c.gate, history)
}

func (c *Controller) SuggestGoals(ctx context.Context, focus string) ([]string, error) {
	return c.engine.SuggestGoals(ctx, c.gate, focus)
}

func (c *Controller) SuggestReplies(ctx context.Context, checkInID string) ([]string, error) {
	ci, err := c.checkIn(ctx, checkInID)
	if err != nil {
		return nil, err
	}
	p := c.Pod()
	author, _ := p.Member(ci.UserID)
	me := c.User()
	return c.engine.SuggestReplies(ctx, c.gate, *ci, author, me)
}

func (c *Controller) SuggestRecap(ctx context.Context, checkInID string, goals []models.Goal) (string, error) {
	ci, err := c.checkIn(ctx, checkInID)
	if err != nil {
		return "", err
	}
	return c.engine.SuggestRecap(ctx, c.gate, *ci, goals)
}

// Pod returns the current snapshot. Callers must not modify it.
func (c *Controller) Pod() *models.Pod {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Controller) User() models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return models.User{}
	}
	return *c.user
}

func (c *Controller) Usage(ctx context.Context) quota.Usage {
	return c.gate.Usage(ctx)
}

func (c *Controller) View() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

func (c *Controller) SelectedDate() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedDate
}

func (c *Controller) Highlighted() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.highlighted
}

func (c *Controller) PushedGoals() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.pushed...)
}

// SetView switches dashboards and clears the day filter.
func (c *Controller) SetView(view string) {
	if view == "" {
		view = ViewMyDashboard
	}
	c.mu.Lock()
	c.view = view
	c.selectedDate = ""
	c.mu.Unlock()
}

// SelectDate filters the feed to one day (pod.DayLayout); empty clears it.
func (c *Controller) SelectDate(day string) error {
	if day != "" {
		if _, err := time.Parse(pod.DayLayout, day); err != nil {
			return ErrInvalidDate
		}
	}
	c.mu.Lock()
	c.selectedDate = day
	c.mu.Unlock()
	return nil
}

// State is the UI state served alongside the pod snapshot.
type State struct {
	User         models.User `json:"user"`
	Pod          *models.Pod `json:"pod"`
	Usage        quota.Usage `json:"usage"`
	View         string      `json:"view"`
	SelectedDate string      `json:"selected_date,omitempty"`
	Highlighted  string      `json:"highlighted_check_in_id,omitempty"`
	PushedGoals  []string    `json:"pushed_goals"`
	Unread       int         `json:"unread"`
}

func (c *Controller) State(ctx context.Context) State {
	p := c.Pod()
	return State{
		User:         c.User(),
		Pod:          p,
		Usage:        c.Usage(ctx),
		View:         c.View(),
		SelectedDate: c.SelectedDate(),
		Highlighted:  c.Highlighted(),
		PushedGoals:  c.PushedGoals(),
		Unread:       countUnread(pod.VisibleNotifications(p)),
	}
}

func countUnread(list []models.Notification) int {
	n := 0
	for _, nt := range list {
		if !nt.Read {
			n++
		}
	}
	return n
}
