package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const (
	commentMaxLen = 1000
	// Non-admin edits are rejected once a comment is older than this.
	commentEditWindow = 24 * time.Hour
)

// CommentService manages the two-level comment thread on a ticket.
type CommentService struct {
	comments   repository.CommentRepository
	tickets    repository.TicketRepository
	timeline   *TimelineRecorder
	dispatcher events.Dispatcher
	now        func() time.Time
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
	CommentRepo repository.CommentRepository
	TicketRepo  repository.TicketRepository
	Timeline    *TimelineRecorder
	Dispatcher  events.Dispatcher
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	return &CommentService{
		comments:   deps.CommentRepo,
		tickets:    deps.TicketRepo,
		timeline:   deps.Timeline,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// Add appends a comment, or a reply when parentID is given. The parent
// must be a top-level comment on the same ticket.
func (s *CommentService) Add(ctx context.Context, actor *domain.User, ticketID, content string, parentID *string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if len(content) == 0 || len(content) > commentMaxLen {
		return nil, apperrors.NewValidationError("comment content must be between 1 and 1000 characters", map[string]any{"field": "content"})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policyFor(actor.Role).CanView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied to this ticket")
	}

	if parentID != nil {
		parent, err := s.comments.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewInvalidParent("parent comment not found")
			}
			return nil, apperrors.MapError(err)
		}
		if parent.TicketID != ticketID {
			return nil, apperrors.NewInvalidParent("parent comment belongs to another ticket")
		}
		if parent.ParentCommentID != nil {
			return nil, apperrors.NewInvalidParent("replies cannot be nested further")
		}
	}

	now := s.now()
	comment := &domain.Comment{
		TicketID:        ticketID,
		AuthorID:        actor.ID,
		ParentCommentID: parentID,
		Content:         content,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.timeline.Record(ctx, ticketID, domain.ActionCommented, actor.ID, map[string]any{
		"comment_id": comment.ID,
		"is_reply":   parentID != nil,
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload: events.TicketCommentedPayload{
			CommentID: comment.ID,
			IsReply:   parentID != nil,
		},
	})
	return comment, nil
}

// List returns the ticket's comment threads, strictly chronological on
// both levels.
func (s *CommentService) List(ctx context.Context, actor *domain.User, ticketID string) ([]domain.CommentThread, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policyFor(actor.Role).CanView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied to this ticket")
	}
	threads, err := assembleThreads(ctx, s.comments, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return threads, nil
}

// Update edits a comment's content. Only the author or an admin may edit;
// non-admin edits are rejected once the comment exceeds the edit window.
func (s *CommentService) Update(ctx context.Context, actor *domain.User, commentID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if len(content) == 0 || len(content) > commentMaxLen {
		return nil, apperrors.NewValidationError("comment content must be between 1 and 1000 characters", map[string]any{"field": "content"})
	}

	comment, err := s.loadComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actor.ID && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("you can only edit your own comments")
	}
	if actor.Role != domain.RoleAdmin && s.now().Sub(comment.CreatedAt) > commentEditWindow {
		return nil, apperrors.NewTooOld("comment is too old to edit")
	}

	comment.Content = content
	comment.UpdatedAt = s.now()
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

// Delete removes a comment and its direct replies, returning the number
// of comments removed.
func (s *CommentService) Delete(ctx context.Context, actor *domain.User, commentID string) (int, error) {
	comment, err := s.loadComment(ctx, commentID)
	if err != nil {
		return 0, err
	}
	if comment.AuthorID != actor.ID && actor.Role != domain.RoleAdmin {
		return 0, apperrors.NewForbidden("you can only delete your own comments")
	}
	removed, err := s.comments.DeleteWithReplies(ctx, commentID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return removed, nil
}

func (s *CommentService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *CommentService) loadComment(ctx context.Context, commentID string) (*domain.Comment, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

func (s *CommentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// assembleThreads loads top-level comments and attaches each one's replies,
// both ascending by creation time.
func assembleThreads(ctx context.Context, comments repository.CommentRepository, ticketID string) ([]domain.CommentThread, error) {
	topLevel, err := comments.ListTopLevel(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	threads := make([]domain.CommentThread, 0, len(topLevel))
	for _, comment := range topLevel {
		replies, err := comments.ListReplies(ctx, comment.ID)
		if err != nil {
			return nil, err
		}
		threads = append(threads, domain.CommentThread{Comment: comment, Replies: replies})
	}
	return threads, nil
}
