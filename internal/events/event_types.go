package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketUpdated   EventType = "ticket_updated"
	EventTicketAssigned  EventType = "ticket_assigned"
	EventTicketCommented EventType = "ticket_commented"
	EventSLABreachUpdate EventType = "sla-breach-update"
)

// Event represents a domain event emitted by services. TicketID is empty
// for aggregate events such as sla-breach-update.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
}

// FieldChange carries a before/after pair for one updated field.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// TicketUpdatedPayload payload; only really-changed fields are present.
type TicketUpdatedPayload struct {
	Status   *FieldChange `json:"status,omitempty"`
	Priority *FieldChange `json:"priority,omitempty"`
	Assignee *FieldChange `json:"assignee,omitempty"`
	Version  int          `json:"version"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	CommentID string `json:"comment_id"`
	IsReply   bool   `json:"is_reply"`
}

// SLABreachUpdatePayload is the aggregate sweep notification.
type SLABreachUpdatePayload struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}
