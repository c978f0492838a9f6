package pod

import (
	"context"
	"strings"

	"github.com/cppla/branch/models"
)

// postEncouragement comments on a fresh check-in on behalf of the first other
// pod member. It runs detached from any session and does not touch quota.
func (e *Engine) postEncouragement(ctx context.Context, c models.CheckIn) {
	author, err := e.store.GetUser(ctx, c.UserID)
	if err != nil {
		e.log.Warnw("encouragement skipped: author unavailable", "check_in", c.ID, "error", err)
		return
	}
	members, err := e.store.ListMembers(ctx, c.PodID)
	if err != nil {
		e.log.Warnw("encouragement skipped: members unavailable", "check_in", c.ID, "error", err)
		return
	}
	var podmate *models.User
	for i := range members {
		if members[i].ID != author.ID {
			podmate = &members[i]
			break
		}
	}
	if podmate == nil {
		e.log.Infow("encouragement skipped: no podmate", "check_in", c.ID)
		return
	}

	text, err := e.suggest.Encouragement(ctx, *author, c)
	if err != nil {
		e.log.Warnw("encouragement generation failed", "check_in", c.ID, "error", err)
		return
	}
	if text = strings.TrimSpace(text); text == "" {
		return
	}

	cm := &models.Comment{CheckInID: c.ID, UserID: podmate.ID, Text: text, CreatedAt: e.now()}
	if err := e.store.CreateComment(ctx, cm, e.notification(models.NotificationComment, podmate.ID, &c)); err != nil {
		e.log.Errorw("encouragement comment not saved", "check_in", c.ID, "error", err)
		return
	}
	e.log.Infow("encouragement posted", "check_in", c.ID, "from", podmate.ID)
}
