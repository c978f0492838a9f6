package pod

import (
	"sort"
	"time"

	"github.com/cppla/branch/models"
)

// FeedMode selects which check-ins a feed shows.
type FeedMode string

const (
	// FeedInbox shows the viewer's own posts and posts they interacted with.
	FeedInbox FeedMode = "inbox"
	FeedUser  FeedMode = "user"
	FeedAll   FeedMode = "all"
)

// DayLayout formats calendar days.
const DayLayout = "2006-01-02"

type FeedFilter struct {
	Mode     FeedMode
	ViewerID string
	// UserID is the member shown in FeedUser mode.
	UserID string
	// Date limits the feed to one calendar day (DayLayout) when set.
	Date     string
	Location *time.Location
}

func dayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayLayout)
}

func interacted(c models.CheckIn, userID string) bool {
	for _, cm := range c.Comments {
		if cm.UserID == userID {
			return true
		}
	}
	_, reacted := c.ReactionBy(userID)
	return reacted
}

// FilterFeed returns the check-ins of p matching f, newest first.
func FilterFeed(p *models.Pod, f FeedFilter) []models.CheckIn {
	out := []models.CheckIn{}
	if p == nil {
		return out
	}
	for _, c := range p.CheckIns {
		if f.Date != "" && dayOf(c.Timestamp, f.Location) != f.Date {
			continue
		}
		switch f.Mode {
		case FeedInbox:
			if c.UserID != f.ViewerID && !interacted(c, f.ViewerID) {
				continue
			}
		case FeedUser:
			if c.UserID != f.UserID {
				continue
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// CalendarDays maps each day with activity to the distinct members who
// checked in that day, in first-seen order.
func CalendarDays(p *models.Pod, loc *time.Location) map[string][]string {
	days := map[string][]string{}
	if p == nil {
		return days
	}
	seen := map[string]bool{}
	for _, c := range p.CheckIns {
		day := dayOf(c.Timestamp, loc)
		key := day + "|" + c.UserID
		if seen[key] {
			continue
		}
		seen[key] = true
		days[day] = append(days[day], c.UserID)
	}
	return days
}

// VisibleNotifications drops notifications from users who left the pod.
func VisibleNotifications(p *models.Pod) []models.Notification {
	out := []models.Notification{}
	if p == nil {
		return out
	}
	for _, n := range p.Notifications {
		if _, ok := p.Member(n.FromUserID); ok {
			out = append(out, n)
		}
	}
	return out
}
