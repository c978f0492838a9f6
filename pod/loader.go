package pod

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cppla/branch/models"
	"github.com/cppla/branch/store"
)

// Loader assembles the pod aggregate from the store.
type Loader struct {
	store store.Store
	log   *zap.SugaredLogger
}

func NewLoader(s store.Store, logger *zap.Logger) *Loader {
	return &Loader{store: s, log: logger.Sugar()}
}

// LoadPod builds the full aggregate as seen by viewerID: members, check-ins
// newest first with their goals, comments and reactions, and the viewer's
// notifications on those check-ins. Notifications are best effort; any other
// failure fails the load.
func (l *Loader) LoadPod(ctx context.Context, podID, viewerID string) (*models.Pod, error) {
	p, err := l.store.GetPod(ctx, podID)
	if err != nil {
		return nil, fmt.Errorf("load pod %s: %w", podID, err)
	}
	if p.Members, err = l.store.ListMembers(ctx, podID); err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	checkIns, err := l.store.ListCheckIns(ctx, podID)
	if err != nil {
		return nil, fmt.Errorf("load check-ins: %w", err)
	}

	ids := make([]string, len(checkIns))
	index := make(map[string]int, len(checkIns))
	for i, c := range checkIns {
		ids[i] = c.ID
		index[c.ID] = i
		checkIns[i].Goals = []models.Goal{}
		checkIns[i].Comments = []models.Comment{}
		checkIns[i].Reactions = []models.Reaction{}
	}

	goals, err := l.store.ListGoals(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	for _, g := range goals {
		if i, ok := index[g.CheckInID]; ok {
			checkIns[i].Goals = append(checkIns[i].Goals, g)
		}
	}

	comments, err := l.store.ListComments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	for _, c := range comments {
		if i, ok := index[c.CheckInID]; ok {
			checkIns[i].Comments = append(checkIns[i].Comments, c)
		}
	}

	reactions, err := l.store.ListReactions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load reactions: %w", err)
	}
	for _, r := range reactions {
		if i, ok := index[r.CheckInID]; ok {
			checkIns[i].Reactions = append(checkIns[i].Reactions, r)
		}
	}
	p.CheckIns = checkIns

	notes, err := l.store.ListNotifications(ctx, viewerID, ids)
	if err != nil {
		l.log.Warnw("notifications unavailable, continuing without them", "pod", podID, "viewer", viewerID, "error", err)
		notes = nil
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	p.Notifications = notes
	return p, nil
}
