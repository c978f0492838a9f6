package pod

import (
	"context"

	"github.com/cppla/branch/models"
)

// Suggestion calls consume one quota unit each. Provider failures degrade to
// empty results.

func (e *Engine) SuggestFocus(ctx context.Context, q Quota, history []models.CheckIn) ([]string, error) {
	if !q.TryConsume(ctx) {
		return nil, ErrLimitReached
	}
	list, err := e.suggest.Focus(ctx, history)
	if err != nil {
		e.log.Warnw("focus suggestions failed", "error", err)
		return []string{}, nil
	}
	return nonNil(list), nil
}

func (e *Engine) SuggestGoals(ctx context.Context, q Quota, focus string) ([]string, error) {
	if !q.TryConsume(ctx) {
		return nil, ErrLimitReached
	}
	list, err := e.suggest.Goals(ctx, focus)
	if err != nil {
		e.log.Warnw("goal suggestions failed", "error", err)
		return []string{}, nil
	}
	return nonNil(list), nil
}

func (e *Engine) SuggestReplies(ctx context.Context, q Quota, checkIn models.CheckIn, author, from models.User) ([]string, error) {
	if !q.TryConsume(ctx) {
		return nil, ErrLimitReached
	}
	list, err := e.suggest.Replies(ctx, checkIn, author, from)
	if err != nil {
		e.log.Warnw("reply suggestions failed", "check_in", checkIn.ID, "error", err)
		return []string{}, nil
	}
	return nonNil(list), nil
}

// SuggestRecap drafts a one-sentence evening summary using the statuses the
// user is about to submit.
func (e *Engine) SuggestRecap(ctx context.Context, q Quota, checkIn models.CheckIn, goals []models.Goal) (string, error) {
	if !q.TryConsume(ctx) {
		return "", ErrLimitReached
	}
	checkIn.Goals = withStoredText(checkIn.Goals, goals)
	text, err := e.suggest.Recap(ctx, checkIn)
	if err != nil {
		e.log.Warnw("recap suggestion failed", "check_in", checkIn.ID, "error", err)
		return "", nil
	}
	return text, nil
}

// withStoredText overlays the picked statuses on the stored goals, keeping
// the stored text where the caller sent only ids.
func withStoredText(stored, picked []models.Goal) []models.Goal {
	text := make(map[string]string, len(stored))
	for _, g := range stored {
		text[g.ID] = g.Text
	}
	out := make([]models.Goal, 0, len(picked))
	for _, g := range picked {
		if g.Text == "" {
			g.Text = text[g.ID]
		}
		out = append(out, g)
	}
	return out
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
