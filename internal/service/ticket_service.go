package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const (
	titleMinLen       = 5
	titleMaxLen       = 200
	descriptionMinLen = 10
	descriptionMaxLen = 2000
)

// TicketService owns the ticket lifecycle: creation, reads with lazy
// breach refresh, optimistic-concurrency updates, and aggregate stats.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	timeline   *TimelineRecorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	Timeline    *TimelineRecorder
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		timeline:   deps.Timeline,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketUpdateInput carries the optional fields of an update. A nil field
// is untouched; ExpectedVersion, when set, must match the stored version.
type TicketUpdateInput struct {
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	AssignedTo      *string
	ExpectedVersion *int
}

// TicketListInput describes listing filters; each is optional and they
// are AND-combined.
type TicketListInput struct {
	Search       *string
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	BreachedOnly bool
	AssignedTo   *string
	Limit        int
	Offset       int
}

// TicketPage is one page of a stable-offset listing. NextOffset is nil on
// the last page. Concurrent inserts may shift rows between pages; this is
// offset pagination, not a snapshot cursor.
type TicketPage struct {
	Items      []domain.Ticket
	Total      int
	NextOffset *int
}

// TicketDetail is a ticket together with its comment threads and audit
// trail (newest first).
type TicketDetail struct {
	Ticket   *domain.Ticket
	Comments []domain.CommentThread
	Timeline []domain.TimelineEntry
}

// Create files a new ticket for the actor. The SLA deadline is anchored at
// the persisted creation time.
func (s *TicketService) Create(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)

	if len(title) < titleMinLen || len(title) > titleMaxLen {
		return nil, apperrors.NewValidationError("title must be between 5 and 200 characters", map[string]any{"field": "title"})
	}
	if len(description) < descriptionMinLen || len(description) > descriptionMaxLen {
		return nil, apperrors.NewValidationError("description must be between 10 and 2000 characters", map[string]any{"field": "description"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("priority must be low, medium, or high", map[string]any{"field": "priority"})
	}

	createdAt := s.now()
	deadline, err := sla.ComputeDeadline(createdAt, priority)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatedBy:   actor.ID,
		SLADeadline: deadline,
		Breached:    false,
		Version:     1,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.timeline.Record(ctx, ticket.ID, domain.ActionCreated, actor.ID, map[string]any{
		"title":    ticket.Title,
		"priority": ticket.Priority,
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// Get returns a ticket with its comments and timeline, refreshing the
// breach flag against the clock first. A flag change is persisted with a
// conditional single-column write that leaves version untouched.
func (s *TicketService) Get(ctx context.Context, actor *domain.User, ticketID string) (*TicketDetail, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policyFor(actor.Role).CanView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied to this ticket")
	}

	s.refreshBreach(ctx, ticket)

	threads, err := assembleThreads(ctx, s.comments, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	timeline, err := s.timeline.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketDetail{Ticket: ticket, Comments: threads, Timeline: timeline}, nil
}

// List returns a visibility-scoped page of tickets. A best-effort sweep
// runs first so stale breach flags do not leak into the results.
func (s *TicketService) List(ctx context.Context, actor *domain.User, input TicketListInput) (*TicketPage, error) {
	if _, err := s.tickets.MarkOverdueBreached(ctx, s.now()); err != nil {
		s.logger.Warn("pre-list breach sweep failed", zap.Error(err))
	}

	filter := repository.TicketFilter{
		Search:       input.Search,
		Status:       input.Status,
		Priority:     input.Priority,
		BreachedOnly: input.BreachedOnly,
		AssignedTo:   input.AssignedTo,
		Limit:        input.Limit,
		Offset:       input.Offset,
	}
	// Visibility scope wins over any requested assignee filter.
	policyFor(actor.Role).Scope(actor, &filter)

	items, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.CountWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	page := &TicketPage{Items: items, Total: total}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if next := offset + limit; next < total {
		page.NextOffset = &next
	}
	return page, nil
}

// Update applies a validated, version-checked mutation. All staged fields
// are persisted atomically with version+1; a concurrent writer holding the
// same observed version loses with a VersionConflict.
func (s *TicketService) Update(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != ticket.Version {
		return nil, apperrors.NewVersionConflict(ticket.Version)
	}
	switch actor.Role {
	case domain.RoleUser:
		return nil, apperrors.NewForbidden("users cannot update tickets after creation")
	default:
		if !policyFor(actor.Role).CanUpdate(actor, ticket) {
			return nil, apperrors.NewForbidden("agents can only update their assigned tickets")
		}
	}

	changes := repository.TicketChanges{}
	payload := events.TicketUpdatedPayload{}

	if input.Status != nil && *input.Status != ticket.Status {
		if !domain.ValidStatus(*input.Status) {
			return nil, apperrors.NewValidationError("status must be open, in_progress, resolved, or closed", map[string]any{"field": "status"})
		}
		changes.Status = input.Status
		payload.Status = &events.FieldChange{From: ticket.Status, To: *input.Status}
	}
	if input.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *input.AssignedTo) {
		changes.AssignedTo = input.AssignedTo
		var from any
		if ticket.AssignedTo != nil {
			from = *ticket.AssignedTo
		}
		payload.Assignee = &events.FieldChange{From: from, To: *input.AssignedTo}
	}
	if input.Priority != nil && *input.Priority != ticket.Priority {
		if !domain.ValidPriority(*input.Priority) {
			return nil, apperrors.NewValidationError("priority must be low, medium, or high", map[string]any{"field": "priority"})
		}
		deadline, err := sla.ComputeDeadline(ticket.CreatedAt, *input.Priority)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		breached := false
		changes.Priority = input.Priority
		changes.SLADeadline = &deadline
		changes.Breached = &breached
		payload.Priority = &events.FieldChange{From: ticket.Priority, To: *input.Priority}
	}

	updated, err := s.tickets.UpdateVersioned(ctx, ticket.ID, ticket.Version, changes)
	if err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			return nil, apperrors.NewVersionConflict(ticket.Version)
		}
		return nil, apperrors.MapError(err)
	}
	payload.Version = updated.Version

	if payload.Status != nil {
		s.timeline.Record(ctx, ticket.ID, domain.ActionStatusChanged, actor.ID, map[string]any{
			"from": payload.Status.From, "to": payload.Status.To,
		})
	}
	if payload.Assignee != nil {
		s.timeline.Record(ctx, ticket.ID, domain.ActionAssigned, actor.ID, map[string]any{
			"from": payload.Assignee.From, "to": payload.Assignee.To,
		})
	}
	if payload.Priority != nil {
		s.timeline.Record(ctx, ticket.ID, domain.ActionPriorityChanged, actor.ID, map[string]any{
			"from": payload.Priority.From, "to": payload.Priority.To,
		})
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  payload,
	})
	if payload.Assignee != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Payload:  payload.Assignee,
		})
	}
	return updated, nil
}

// Stats aggregates counts under the actor's visibility scope.
func (s *TicketService) Stats(ctx context.Context, actor *domain.User) (*domain.TicketStats, error) {
	filter := repository.TicketFilter{}
	policyFor(actor.Role).Scope(actor, &filter)

	stats, err := s.tickets.Stats(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// refreshBreach recomputes the breach flag for open tickets at read time.
// Resolved and closed tickets keep whatever flag they ended with.
func (s *TicketService) refreshBreach(ctx context.Context, ticket *domain.Ticket) {
	if ticket.Status.IsTerminal() {
		return
	}
	breached := sla.IsBreached(s.now(), ticket.SLADeadline, ticket.Status)
	if breached == ticket.Breached {
		return
	}
	if err := s.tickets.SetBreached(ctx, ticket.ID, breached); err != nil {
		s.logger.Warn("breach refresh failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	ticket.Breached = breached
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
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
