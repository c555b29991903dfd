package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Create(c.UserContext(), actor, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"ticket": ticketResponse(ticket, time.Now())})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	page, err := h.service.List(c.UserContext(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}

	now := time.Now()
	items := make([]dto.TicketResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ticketResponse(&page.Items[i], now))
	}
	return c.JSON(dto.TicketListResponse{
		Items:      items,
		Total:      page.Total,
		NextOffset: page.NextOffset,
	})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	detail, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}

	now := time.Now()
	comments := make([]dto.CommentThreadResponse, 0, len(detail.Comments))
	for _, thread := range detail.Comments {
		comments = append(comments, commentThreadResponse(thread))
	}
	timeline := make([]dto.TimelineEntryResponse, 0, len(detail.Timeline))
	for _, entry := range detail.Timeline {
		timeline = append(timeline, dto.TimelineEntryResponse{
			ID:        entry.ID,
			Action:    entry.Action,
			ActorID:   entry.ActorID,
			Details:   entry.Details,
			Timestamp: entry.Timestamp,
		})
	}
	return c.JSON(dto.TicketDetailResponse{
		Ticket:   ticketResponse(detail.Ticket, now),
		Comments: comments,
		Timeline: timeline,
	})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Update(c.UserContext(), actor, c.Params("id"), service.TicketUpdateInput{
		Status:          req.Status,
		Priority:        req.Priority,
		AssignedTo:      req.AssignedTo,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ticket": ticketResponse(ticket, time.Now())})
}

// GetStats GET /api/tickets/stats.
func (h *TicketsHandler) GetStats(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	stats, err := h.service.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"stats": dto.TicketStatsResponse{
		Total:      stats.Total,
		Open:       stats.Open,
		InProgress: stats.InProgress,
		Resolved:   stats.Resolved,
		Closed:     stats.Closed,
		Breached:   stats.Breached,
		High:       stats.High,
		Medium:     stats.Medium,
		Low:        stats.Low,
	}})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{
		Limit:  parseInt(c.Query("limit"), 10),
		Offset: parseOffset(c.Query("offset")),
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		input.Search = &search
	}
	if status := c.Query("status"); status != "" {
		s := domain.TicketStatus(status)
		input.Status = &s
	}
	if priority := c.Query("priority"); priority != "" {
		p := domain.TicketPriority(priority)
		input.Priority = &p
	}
	if c.Query("breached") == "true" {
		input.BreachedOnly = true
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		input.AssignedTo = &assignee
	}
	return input
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseOffset(val string) int {
	if val == "" {
		return 0
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket, now time.Time) dto.TicketResponse {
	return dto.TicketResponse{
		ID:            ticket.ID,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Status:        ticket.Status,
		Priority:      ticket.Priority,
		CreatedBy:     ticket.CreatedBy,
		AssignedTo:    ticket.AssignedTo,
		SLADeadline:   ticket.SLADeadline,
		Breached:      ticket.Breached,
		Version:       ticket.Version,
		TimeRemaining: timeRemaining(ticket, now),
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}
}

// timeRemaining is a read-time derived view of the SLA clock; nil for
// resolved/closed tickets.
func timeRemaining(ticket *domain.Ticket, now time.Time) *string {
	if ticket.Status.IsTerminal() {
		return nil
	}
	remaining := ticket.SLADeadline.Sub(now)
	var label string
	switch {
	case remaining <= 0:
		label = "Breached"
	case remaining >= time.Hour:
		label = fmt.Sprintf("%dh %dm", int(remaining.Hours()), int(remaining.Minutes())%60)
	default:
		label = fmt.Sprintf("%dm", int(remaining.Minutes()))
	}
	return &label
}
