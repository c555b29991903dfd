// Package sla maps ticket priority to response deadlines and decides
// breach status. It is pure: no clocks, no storage, no side effects.
package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// Response windows per priority.
const (
	DurationLow    = 48 * time.Hour
	DurationMedium = 24 * time.Hour
	DurationHigh   = 6 * time.Hour
)

var durations = map[domain.TicketPriority]time.Duration{
	domain.TicketPriorityLow:    DurationLow,
	domain.TicketPriorityMedium: DurationMedium,
	domain.TicketPriorityHigh:   DurationHigh,
}

// DurationFor returns the SLA window for a priority.
func DurationFor(priority domain.TicketPriority) (time.Duration, error) {
	d, ok := durations[priority]
	if !ok {
		return 0, apperrors.NewInvalidPriority(string(priority))
	}
	return d, nil
}

// ComputeDeadline anchors the deadline at the ticket's creation time. The
// same anchor is used when a priority change forces a recompute, so the
// deadline never drifts relative to the original filing time.
func ComputeDeadline(createdAt time.Time, priority domain.TicketPriority) (time.Time, error) {
	d, err := DurationFor(priority)
	if err != nil {
		return time.Time{}, err
	}
	return createdAt.Add(d), nil
}

// IsBreached reports whether a ticket has missed its deadline. Resolved and
// closed tickets are never considered breached at evaluation time.
func IsBreached(now, deadline time.Time, status domain.TicketStatus) bool {
	if status.IsTerminal() {
		return false
	}
	return now.After(deadline)
}
