package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest payload; all fields optional.
type UpdateTicketRequest struct {
	Status     *domain.TicketStatus   `json:"status"`
	Priority   *domain.TicketPriority `json:"priority"`
	AssignedTo *string                `json:"assigned_to"`
	Version    *int                   `json:"version"`
}

// TicketResponse is the wire shape of a ticket. TimeRemaining is derived
// at read time and omitted for resolved/closed tickets.
type TicketResponse struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        domain.TicketStatus   `json:"status"`
	Priority      domain.TicketPriority `json:"priority"`
	CreatedBy     string                `json:"created_by"`
	AssignedTo    *string               `json:"assigned_to"`
	SLADeadline   time.Time             `json:"sla_deadline"`
	Breached      bool                  `json:"breached"`
	Version       int                   `json:"version"`
	TimeRemaining *string               `json:"time_remaining,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// TicketListResponse is one page of the stable-offset listing.
type TicketListResponse struct {
	Items      []TicketResponse `json:"items"`
	Total      int              `json:"total"`
	NextOffset *int             `json:"next_offset"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	Ticket   TicketResponse          `json:"ticket"`
	Comments []CommentThreadResponse `json:"comments"`
	Timeline []TimelineEntryResponse `json:"timeline"`
}

// TimelineEntryResponse is one audit entry.
type TimelineEntryResponse struct {
	ID        string                `json:"id"`
	Action    domain.TimelineAction `json:"action"`
	ActorID   string                `json:"actor_id"`
	Details   map[string]any        `json:"details"`
	Timestamp time.Time             `json:"timestamp"`
}

// TicketStatsResponse aggregates counts for the caller's scope.
type TicketStatsResponse struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
	Breached   int `json:"breached"`
	High       int `json:"high"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
}
