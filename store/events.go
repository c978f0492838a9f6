package store

import (
	"context"
	"time"
)

// Collection names the table a change event refers to.
type Collection string

const (
	CollectionPods          Collection = "pods"
	CollectionMembers       Collection = "pod_members"
	CollectionCheckIns      Collection = "check_ins"
	CollectionGoals         Collection = "goals"
	CollectionComments      Collection = "comments"
	CollectionReactions     Collection = "reactions"
	CollectionNotifications Collection = "notifications"
)

// Op is the kind of write that produced an event.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event signals that something changed. Consumers treat it as an
// invalidation signal; the payload is not a full row.
type Event struct {
	Collection Collection `json:"collection"`
	Op         Op         `json:"op"`
	PodID      string     `json:"pod_id,omitempty"`
	CheckInID  string     `json:"check_in_id,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	At         time.Time  `json:"at"`
}

// Filter selects events of one collection, optionally scoped to a pod or a
// target user.
type Filter struct {
	Collection Collection
	PodID      string
	UserID     string
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev Event) bool {
	if f.Collection != ev.Collection {
		return false
	}
	if f.PodID != "" && f.PodID != ev.PodID {
		return false
	}
	if f.UserID != "" && f.UserID != ev.UserID {
		return false
	}
	return true
}

func matchAny(filters []Filter, ev Event) bool {
	for _, f := range filters {
		if f.Match(ev) {
			return true
		}
	}
	return false
}

// Handler receives matching events. Handlers must not block.
type Handler func(Event)

// Subscription is released with Close.
type Subscription interface {
	Close() error
}

// Broker fans change events out to subscribers. Delivery may duplicate or
// reorder events.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, filters []Filter, h Handler) (Subscription, error)
}

func channelForEvent(ev Event) string {
	if ev.Collection == CollectionNotifications {
		return "branch:user:" + ev.UserID
	}
	return "branch:pod:" + ev.PodID
}

func channelForFilter(f Filter) string {
	if f.UserID != "" {
		return "branch:user:" + f.UserID
	}
	return "branch:pod:" + f.PodID
}
