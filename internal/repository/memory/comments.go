package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// CommentStore is a mutex-guarded comment repository.
type CommentStore struct {
	mu       sync.RWMutex
	comments map[string]domain.Comment
}

// NewCommentStore creates an empty store.
func NewCommentStore() *CommentStore {
	return &CommentStore{comments: make(map[string]domain.Comment)}
}

func (s *CommentStore) Create(ctx context.Context, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	comment.UpdatedAt = comment.CreatedAt
	s.comments[comment.ID] = *comment
	return nil
}

func (s *CommentStore) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &comment, nil
}

func (s *CommentStore) ListTopLevel(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	return s.list(func(c domain.Comment) bool {
		return c.TicketID == ticketID && c.ParentCommentID == nil
	}), nil
}

func (s *CommentStore) ListReplies(ctx context.Context, parentID string) ([]domain.Comment, error) {
	return s.list(func(c domain.Comment) bool {
		return c.ParentCommentID != nil && *c.ParentCommentID == parentID
	}), nil
}

func (s *CommentStore) list(keep func(domain.Comment) bool) []domain.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Comment
	for _, comment := range s.comments {
		if keep(comment) {
			matched = append(matched, comment)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched
}

func (s *CommentStore) Update(ctx context.Context, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.comments[comment.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Content = comment.Content
	stored.UpdatedAt = comment.UpdatedAt
	s.comments[comment.ID] = stored
	return nil
}

func (s *CommentStore) DeleteWithReplies(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for cid, comment := range s.comments {
		if comment.ParentCommentID != nil && *comment.ParentCommentID == id {
			delete(s.comments, cid)
			removed++
		}
	}
	if _, ok := s.comments[id]; ok {
		delete(s.comments, id)
		removed++
	}
	return removed, nil
}

var _ repository.CommentRepository = (*CommentStore)(nil)
