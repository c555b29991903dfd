package domain

import "time"

// TimelineAction captures what happened in a timeline entry.
type TimelineAction string

const (
	ActionCreated         TimelineAction = "created"
	ActionUpdated         TimelineAction = "updated"
	ActionAssigned        TimelineAction = "assigned"
	ActionCommented       TimelineAction = "commented"
	ActionStatusChanged   TimelineAction = "status_changed"
	ActionPriorityChanged TimelineAction = "priority_changed"
)

// TimelineEntry is an immutable audit record. Entries are append-only and
// are never edited or removed.
type TimelineEntry struct {
	ID        string
	TicketID  string
	Action    TimelineAction
	ActorID   string
	Details   map[string]any
	Timestamp time.Time
}
