// Package memory provides in-process implementations of the repository
// interfaces. They back the no-database development mode and the test
// suite, and mirror the Postgres repositories' conditional-write semantics
// exactly: a versioned update either matches the expected version or
// affects nothing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// TicketStore is a mutex-guarded ticket repository.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]domain.Ticket)}
}

func (s *TicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *TicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (s *TicketStore) UpdateVersioned(ctx context.Context, id string, expectedVersion int, changes repository.TicketChanges) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok || ticket.Version != expectedVersion {
		return nil, repository.ErrVersionMismatch
	}

	if changes.Status != nil {
		ticket.Status = *changes.Status
	}
	if changes.Priority != nil {
		ticket.Priority = *changes.Priority
	}
	if changes.AssignedTo != nil {
		assignee := *changes.AssignedTo
		ticket.AssignedTo = &assignee
	}
	if changes.SLADeadline != nil {
		ticket.SLADeadline = *changes.SLADeadline
	}
	if changes.Breached != nil {
		ticket.Breached = *changes.Breached
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now()

	s.tickets[id] = ticket
	return &ticket, nil
}

func (s *TicketStore) SetBreached(ctx context.Context, id string, breached bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok || ticket.Breached == breached || ticket.Status.IsTerminal() {
		return nil
	}
	ticket.Breached = breached
	s.tickets[id] = ticket
	return nil
}

func (s *TicketStore) MarkOverdueBreached(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for id, ticket := range s.tickets {
		if ticket.Status.IsTerminal() || ticket.Breached || !ticket.SLADeadline.Before(now) {
			continue
		}
		ticket.Breached = true
		s.tickets[id] = ticket
		marked++
	}
	return marked, nil
}

func (s *TicketStore) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	matched := s.match(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *TicketStore) CountWithFilter(ctx context.Context, filter repository.TicketFilter) (int, error) {
	return len(s.match(filter)), nil
}

func (s *TicketStore) Stats(ctx context.Context, filter repository.TicketFilter) (*domain.TicketStats, error) {
	var stats domain.TicketStats
	for _, ticket := range s.match(filter) {
		stats.Total++
		switch ticket.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusInProgress:
			stats.InProgress++
		case domain.TicketStatusResolved:
			stats.Resolved++
		case domain.TicketStatusClosed:
			stats.Closed++
		}
		if ticket.Breached {
			stats.Breached++
		}
		switch ticket.Priority {
		case domain.TicketPriorityHigh:
			stats.High++
		case domain.TicketPriorityMedium:
			stats.Medium++
		case domain.TicketPriorityLow:
			stats.Low++
		}
	}
	return &stats, nil
}

func (s *TicketStore) match(filter repository.TicketFilter) []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Ticket
	for _, ticket := range s.tickets {
		if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		if filter.BreachedOnly && !ticket.Breached {
			continue
		}
		if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
			needle := strings.ToLower(strings.TrimSpace(*filter.Search))
			if !strings.Contains(strings.ToLower(ticket.Title), needle) &&
				!strings.Contains(strings.ToLower(ticket.Description), needle) {
				continue
			}
		}
		matched = append(matched, ticket)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

var _ repository.TicketRepository = (*TicketStore)(nil)
