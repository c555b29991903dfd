package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Sweeper periodically marks overdue tickets breached. Each pass is one
// bulk conditional update, so re-running with nothing newly overdue is a
// no-op and concurrent request traffic is never clobbered.
type Sweeper struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	now        func() time.Time
}

// NewSweeper constructs the sweeper.
func NewSweeper(tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		tickets:    tickets,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		interval:   interval,
		now:        time.Now,
	}
}

// Start runs sweep passes on the configured interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("sla breach sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Sweep marks every overdue, still-open ticket breached and, when any were
// marked, emits one aggregate sla-breach-update event.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	marked, err := s.tickets.MarkOverdueBreached(ctx, now)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSweep(marked)
	if marked == 0 {
		return 0, nil
	}

	s.logger.Info("tickets marked breached", zap.Int("count", marked))
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventSLABreachUpdate,
			Timestamp: now,
			Payload: events.SLABreachUpdatePayload{
				Count:     marked,
				Timestamp: now,
			},
		})
	}
	return marked, nil
}
