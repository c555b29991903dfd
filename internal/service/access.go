package service

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// accessPolicy centralizes the role-based visibility and update rules:
// admins see and touch everything, agents are limited to tickets assigned
// to them, end-users to tickets they created (and may never update one
// after filing it). One policy is resolved per operation.
type accessPolicy interface {
	CanView(actor *domain.User, ticket *domain.Ticket) bool
	CanUpdate(actor *domain.User, ticket *domain.Ticket) bool
	Scope(actor *domain.User, filter *repository.TicketFilter)
}

func policyFor(role domain.Role) accessPolicy {
	switch role {
	case domain.RoleAdmin:
		return adminPolicy{}
	case domain.RoleAgent:
		return agentPolicy{}
	default:
		return userPolicy{}
	}
}

type adminPolicy struct{}

func (adminPolicy) CanView(*domain.User, *domain.Ticket) bool   { return true }
func (adminPolicy) CanUpdate(*domain.User, *domain.Ticket) bool { return true }
func (adminPolicy) Scope(*domain.User, *repository.TicketFilter) {}

type agentPolicy struct{}

func (agentPolicy) CanView(actor *domain.User, ticket *domain.Ticket) bool {
	return ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID
}

func (agentPolicy) CanUpdate(actor *domain.User, ticket *domain.Ticket) bool {
	return ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID
}

func (agentPolicy) Scope(actor *domain.User, filter *repository.TicketFilter) {
	assignee := actor.ID
	filter.AssignedTo = &assignee
}

type userPolicy struct{}

func (userPolicy) CanView(actor *domain.User, ticket *domain.Ticket) bool {
	return ticket.CreatedBy == actor.ID
}

func (userPolicy) CanUpdate(*domain.User, *domain.Ticket) bool { return false }

func (userPolicy) Scope(actor *domain.User, filter *repository.TicketFilter) {
	creator := actor.ID
	filter.CreatedBy = &creator
}
