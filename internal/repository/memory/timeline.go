package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// TimelineStore is a mutex-guarded, append-only audit log.
type TimelineStore struct {
	mu      sync.RWMutex
	entries []domain.TimelineEntry
}

// NewTimelineStore creates an empty store.
func NewTimelineStore() *TimelineStore {
	return &TimelineStore{}
}

func (s *TimelineStore) Create(ctx context.Context, entry *domain.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *TimelineStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.TimelineEntry
	for _, entry := range s.entries {
		if entry.TicketID == ticketID {
			matched = append(matched, entry)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	return matched, nil
}

var _ repository.TimelineRepository = (*TimelineStore)(nil)
