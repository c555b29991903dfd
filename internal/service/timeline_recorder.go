package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// TimelineRecorder appends immutable audit entries for tickets. Appends
// are best effort: a timeline fault is logged and swallowed so it can
// never abort the mutation it accompanies.
type TimelineRecorder struct {
	entries repository.TimelineRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewTimelineRecorder constructs the recorder.
func NewTimelineRecorder(entries repository.TimelineRepository, logger *zap.Logger) *TimelineRecorder {
	return &TimelineRecorder{
		entries: entries,
		logger:  logger,
		now:     time.Now,
	}
}

// Record appends one audit entry.
func (r *TimelineRecorder) Record(ctx context.Context, ticketID string, action domain.TimelineAction, actorID string, details map[string]any) {
	if r == nil || r.entries == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	entry := &domain.TimelineEntry{
		TicketID:  ticketID,
		Action:    action,
		ActorID:   actorID,
		Details:   details,
		Timestamp: r.now(),
	}
	if err := r.entries.Create(ctx, entry); err != nil {
		r.logger.Warn("timeline append failed",
			zap.String("ticket_id", ticketID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// ListByTicket returns the audit trail newest first.
func (r *TimelineRecorder) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	if r == nil || r.entries == nil {
		return []domain.TimelineEntry{}, nil
	}
	return r.entries.ListByTicket(ctx, ticketID)
}
