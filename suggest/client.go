// Package suggest produces short text suggestions for check-ins, replies and
// reflections from a chat completion model.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/cppla/branch/models"
)

// Client generates suggestion text. Implementations return errors for
// transport or parse failures; callers decide how to degrade.
type Client interface {
	Focus(ctx context.Context, history []models.CheckIn) ([]string, error)
	Goals(ctx context.Context, focus string) ([]string, error)
	Replies(ctx context.Context, checkIn models.CheckIn, author, from models.User) ([]string, error)
	Encouragement(ctx context.Context, author models.User, checkIn models.CheckIn) (string, error)
	Recap(ctx context.Context, checkIn models.CheckIn) (string, error)
}

// historyDepth is how many past check-ins feed the focus prompt.
const historyDepth = 3

func focusPrompt(history []models.CheckIn) string {
	if len(history) > historyDepth {
		history = history[:historyDepth]
	}
	lines := make([]string, 0, len(history))
	for _, c := range history {
		recap := c.EveningRecap
		if recap == "" {
			recap = "N/A"
		}
		lines = append(lines, fmt.Sprintf("- Focus: %q, Recap: %s", c.Focus, recap))
	}
	return fmt.Sprintf("Based on this user's recent history:\n%s\nSuggest 3 distinct, high-impact focus areas for today. "+
		"Prioritize themes from their recent evening recaps or goals marked Partial or Skipped.", strings.Join(lines, "\n"))
}

func goalsPrompt(focus string) string {
	return fmt.Sprintf("Given the user's main focus for today is %q, suggest 3 specific, measurable (SMART) sub-goals to help them achieve this focus.", focus)
}

func repliesPrompt(checkIn models.CheckIn, author, from models.User) string {
	recap := ""
	if checkIn.EveningRecap != "" {
		recap = fmt.Sprintf(" Their recap was: %q.", checkIn.EveningRecap)
	}
	return fmt.Sprintf("You are an accountability partner named %s. Your podmate, %s, just posted this update: Focus: %q.%s "+
		"Write 3 distinct, short, and supportive replies. One should offer empathy for their challenges, "+
		"one a simple constructive idea, and one should be a direct cheer-on.", from.Name, author.Name, checkIn.Focus, recap)
}

func encouragementPrompt(author models.User, checkIn models.CheckIn) string {
	goals := make([]string, 0, len(checkIn.Goals))
	for _, g := range checkIn.Goals {
		goals = append(goals, "- "+g.Text)
	}
	return fmt.Sprintf("My podmate %s just shared their morning intention. Their main focus is: %q. Their goals are:\n%s\n"+
		"Write a short, encouraging, and supportive comment for them (1-2 sentences). "+
		"Speak in a friendly, casual tone as if you are their accountability partner. Don't use hashtags.",
		author.Name, checkIn.Focus, strings.Join(goals, "\n"))
}

func recapPrompt(checkIn models.CheckIn) string {
	goals := make([]string, 0, len(checkIn.Goals))
	for _, g := range checkIn.Goals {
		goals = append(goals, fmt.Sprintf("- %s (%s)", g.Text, g.Status))
	}
	return fmt.Sprintf("My evening recap for today: Focus: %q\nGoals:\n%s\n"+
		"Write a very short (1 sentence) constructive and encouraging summary of my evening reflection.",
		checkIn.Focus, strings.Join(goals, "\n"))
}

// Noop returns empty suggestions. It is used when no model is configured.
type Noop struct{}

func (Noop) Focus(ctx context.Context, history []models.CheckIn) ([]string, error) { return nil, nil }
func (Noop) Goals(ctx context.Context, focus string) ([]string, error)             { return nil, nil }
func (Noop) Replies(ctx context.Context, checkIn models.CheckIn, author, from models.User) ([]string, error) {
	return nil, nil
}
func (Noop) Encouragement(ctx context.Context, author models.User, checkIn models.CheckIn) (string, error) {
	return "", nil
}
func (Noop) Recap(ctx context.Context, checkIn models.CheckIn) (string, error) { return "", nil }
