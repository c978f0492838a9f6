package pod

import (
	"time"

	"github.com/cppla/branch/models"
)

// MemberStats summarises one member's activity in a pod.
type MemberStats struct {
	UserID       string `json:"user_id"`
	CheckIns     int    `json:"check_ins"`
	Reflections  int    `json:"reflections"`
	GoalsDone    int    `json:"goals_done"`
	GoalsPartial int    `json:"goals_partial"`
	GoalsSkipped int    `json:"goals_skipped"`
	// Streak counts consecutive check-in days ending today, or yesterday
	// when today has no check-in yet.
	Streak int `json:"streak"`
}

// Stats returns per-member activity, in member order.
func Stats(p *models.Pod, loc *time.Location, now time.Time) []MemberStats {
	out := []MemberStats{}
	if p == nil {
		return out
	}
	byUser := make(map[string]*MemberStats, len(p.Members))
	days := make(map[string]map[string]bool, len(p.Members))
	for _, m := range p.Members {
		out = append(out, MemberStats{UserID: m.ID})
		days[m.ID] = map[string]bool{}
	}
	for i := range out {
		byUser[out[i].UserID] = &out[i]
	}

	for _, c := range p.CheckIns {
		st, ok := byUser[c.UserID]
		if !ok {
			continue
		}
		st.CheckIns++
		days[c.UserID][dayOf(c.Timestamp, loc)] = true
		if c.Stage != models.StageEvening {
			continue
		}
		st.Reflections++
		for _, g := range c.Goals {
			switch g.Status {
			case models.GoalDone:
				st.GoalsDone++
			case models.GoalSkipped:
				st.GoalsSkipped++
			default:
				st.GoalsPartial++
			}
		}
	}

	for i := range out {
		out[i].Streak = streak(days[out[i].UserID], loc, now)
	}
	return out
}

func streak(days map[string]bool, loc *time.Location, now time.Time) int {
	if loc == nil {
		loc = time.Local
	}
	day := now.In(loc)
	if !days[day.Format(DayLayout)] {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for days[day.Format(DayLayout)] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}
