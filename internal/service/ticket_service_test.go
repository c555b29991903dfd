package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type ticketFixture struct {
	svc        *TicketService
	tickets    *memory.TicketStore
	dispatcher events.Dispatcher
	clock      *fakeClock
	published  *[]events.Event
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	tickets := memory.NewTicketStore()
	comments := memory.NewCommentStore()
	timeline := NewTimelineRecorder(memory.NewTimelineStore(), zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()

	var published []events.Event
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketAssigned,
		events.EventTicketCommented,
	} {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			published = append(published, event)
			return nil
		})
	}

	svc := NewTicketService(TicketDependencies{
		TicketRepo:  tickets,
		CommentRepo: comments,
		Timeline:    timeline,
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
	})
	svc.now = clock.Now

	return &ticketFixture{
		svc:        svc,
		tickets:    tickets,
		dispatcher: dispatcher,
		clock:      clock,
		published:  &published,
	}
}

func testUser(id string, role domain.Role) *domain.User {
	return &domain.User{ID: id, Name: id, Email: id + "@example.com", Role: role}
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }

func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }

func mustCreate(t *testing.T, f *ticketFixture, actor *domain.User, input TicketCreateInput) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.Create(context.Background(), actor, input)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestCreateTicketDefaults(t *testing.T) {
	f := newTicketFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)

	ticket := mustCreate(t, f, reporter, TicketCreateInput{
		Title:       "Printer offline",
		Description: "The 3rd floor printer stopped responding.",
	})

	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want open", ticket.Status)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("priority = %s, want medium (default)", ticket.Priority)
	}
	if ticket.Version != 1 {
		t.Errorf("version = %d, want 1", ticket.Version)
	}
	if ticket.Breached {
		t.Error("new ticket must not be breached")
	}
	if want := f.clock.Now().Add(24 * time.Hour); !ticket.SLADeadline.Equal(want) {
		t.Errorf("sla deadline = %v, want %v", ticket.SLADeadline, want)
	}
	if ticket.CreatedBy != reporter.ID {
		t.Errorf("created_by = %s, want %s", ticket.CreatedBy, reporter.ID)
	}
	if len(*f.published) != 1 || (*f.published)[0].Type != events.EventTicketCreated {
		t.Errorf("expected one ticket_created event, got %v", *f.published)
	}
}

func TestCreateTicketDeadlinePerPriority(t *testing.T) {
	f := newTicketFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)

	tests := []struct {
		priority domain.TicketPriority
		window   time.Duration
	}{
		{domain.TicketPriorityLow, 48 * time.Hour},
		{domain.TicketPriorityMedium, 24 * time.Hour},
		{domain.TicketPriorityHigh, 6 * time.Hour},
	}
	for _, tt := range tests {
		ticket := mustCreate(t, f, reporter, TicketCreateInput{
			Title:       "Deadline check " + string(tt.priority),
			Description: "Verifying the response window per priority.",
			Priority:    tt.priority,
		})
		if want := ticket.CreatedAt.Add(tt.window); !ticket.SLADeadline.Equal(want) {
			t.Errorf("%s: deadline = %v, want %v", tt.priority, ticket.SLADeadline, want)
		}
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newTicketFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)

	tests := []struct {
		name  string
		input TicketCreateInput
	}{
		{"title too short", TicketCreateInput{Title: "Hi", Description: "A perfectly valid description."}},
		{"description too short", TicketCreateInput{Title: "Valid title", Description: "short"}},
		{"unknown priority", TicketCreateInput{Title: "Valid title", Description: "A perfectly valid description.", Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), reporter, tt.input); !apperrors.IsCode(err, "VALIDATION_FAILED") {
				t.Fatalf("expected VALIDATION_FAILED, got %v", err)
			}
		})
	}
}

func TestUpdateStaleVersionRejected(t *testing.T) {
	f := newTicketFixture(t)
	admin := testUser("admin-1", domain.RoleAdmin)
	ticket := mustCreate(t, f, admin, TicketCreateInput{
		Title:       "VPN flapping",
		Description: "Connection drops every few minutes.",
	})

	// First writer succeeds and bumps the version.
	updated, err := f.svc.Update(context.Background(), admin, ticket.ID, TicketUpdateInput{
		Status:          statusPtr(domain.TicketStatusInProgress),
		ExpectedVersion: intPtr(1),
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d, want 2", updated.Version)
	}

	// Second writer still holds version 1 and must lose.
	_, err = f.svc.Update(context.Background(), admin, ticket.ID, TicketUpdateInput{
		Status:          statusPtr(domain.TicketStatusResolved),
		ExpectedVersion: intPtr(1),
	})
	if !apperrors.IsCode(err, "VERSION_CONFLICT") {
		t.Fatalf("expected VERSION_CONFLICT, got %v", err)
	}

	// The losing update must not have mutated anything.
	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("reload ticket: %v", err)
	}
	if stored.Status != domain.TicketStatusInProgress || stored.Version != 2 {
		t.Errorf("stored = %s v%d, want in_progress v2", stored.Status, stored.Version)
	}
}

func TestUpdateEachCallBumpsVersionByOne(t *testing.T) {
	f := newTicketFixture(t)
	admin := testUser("admin-1", domain.RoleAdmin)
	ticket := mustCreate(t, f, admin, TicketCreateInput{
		Title:       "Mailbox full",
		Description: "User cannot receive new messages.",
	})

	for i, status := range []domain.TicketStatus{
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		updated, err := f.svc.Update(context.Background(), admin, ticket.ID, TicketUpdateInput{Status: statusPtr(status)})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if want := i + 2; updated.Version != want {
			t.Errorf("update %d: version = %d, want %d", i, updated.Version, want)
		}
	}
}

func TestUpdateRoleRules(t *testing.T) {
	f := newTicketFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)
	agentA := testUser("agent-a", domain.RoleAgent)
	agentB := testUser("agent-b", domain.RoleAgent)
	admin := testUser("admin-1", domain.RoleAdmin)

	ticket := mustCreate(t, f, reporter, TicketCreateInput{
		Title:       "Laptop battery swollen",
		Description: "Hardware replacement needed as soon as possible.",
	})

	// Reporters never update their own tickets after filing.
	_, err := f.svc.Update(context.Background(), reporter, ticket.ID, TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusClosed),
	})
	if !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("reporter update: expected FORBIDDEN, got %v", err)
	}

	// Unassigned agents may not touch the ticket either.
	_, err = f.svc.Update(context.Background(), agentA, ticket.ID, TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusInProgress),
	})
	if !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("unassigned agent update: expected FORBIDDEN, got %v", err)
	}

	// Admin assigns agentA.
	if _, err := f.svc.Update(context.Background(), admin, ticket.ID, TicketUpdateInput{
		AssignedTo: strPtr(agentA.ID),
	}); err != nil {
		t.Fatalf("admin assign: %v", err)
	}

	// The assignee may now update; a different agent still may not.
	if _, err := f.svc.Update(context.Background(), agentA, ticket.ID, TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusInProgress),
	}); err != nil {
		t.Fatalf("assigned agent update: %v", err)
	}
	_, err = f.svc.Update(context.Background(), agentB, ticket.ID, TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusResolved),
	})
	if !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("other agent update: expected FORBIDDEN, got %v", err)
	}
}

func TestUpdatePriorityRecomputesDeadline(t *testing.T) {
	f := newTicketFixture(t)
	admin := testUser("admin-1", domain.RoleAdmin)
	ticket := mustCreate(t, f, admin, TicketCreateInput{
		Title:       "Slow intranet search",
		Description: "Queries take over thirty seconds to return.",
		Priority:    domain.TicketPriorityLow,
	})

	// Ride past the would-be high deadline before escalating.
	f.clock.Advance(10 * time.Hour)

	updated, err := f.svc.Update(context.Background(), admin, ticket.ID, TicketUpdateInput{
		Priority: priorityPtr(domain.TicketPriorityHigh),
	})
	if err != nil {
		t.Fatalf("escalate priority: %v", err)
	}

	// The deadline stays anchored at the original creation time.
	if want := ticket.CreatedAt.Add(6 * time.Hour); !updated.SLADeadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", updated.SLADeadline, want)
	}
	// The flag is reset at write time; the next read re-evaluates it.
	if updated.Breached {
		t.Error("priority change must reset the breach flag")
	}
}

func TestGetRefreshesBreachWithoutVersionBump(t *testing.T) {
	f := newTicketFixture(t)
	admin := testUser("admin-1", domain.RoleAdmin)
	ticket := mustCreate(t, f, admin, TicketCreateInput{
		Title:       "Payment gateway down",
		Description: "Checkout requests are all failing with 502.",
		Priority:    domain.TicketPriorityHigh,
	})

	f.clock.Advance(7 * time.Hour)

	detail, err := f.svc.Get(context.Background(), admin, ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if !detail.Ticket.Breached {
		t.Error("ticket past its deadline must read as breached")
	}
	if detail.Ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, breach must not change status", detail.Ticket.Status)
	}
	if detail.Ticket.Version != 1 {
		t.Errorf("version = %d, breach refresh must not bump version", detail.Ticket.Version)
	}
}

func TestGetBreachFrozenOnTerminalTickets(t *testing.T) {
	f := newTicketFixture(t)
	admin := testUser("admin-1", domain.RoleAdmin)
	ticket := mustCreate(t, f, admin, TicketCreateInput{
		Title:       "Broken keyboard",
		Description: "Several keys stopped registering input.",
		Priority:    domain.TicketPriorityHigh,
	})

	// Resolve within the window, then read long after the deadline.
	if _, err := f.svc.Update(context.Background(), admin, ticket.ID, TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusResolved),
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	f.clock.Advance(48 * time.Hour)

	detail, err := f.svc.Get(context.Background(), admin, ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if detail.Ticket.Breached {
		t.Error("resolved ticket must keep breached=false past the deadline")
	}
}

func TestGetVisibility(t *testing.T) {
	f := newTicketFixture(t)
	alice := testUser("alice", domain.RoleUser)
	bob := testUser("bob", domain.RoleUser)
	agent := testUser("agent-a", domain.RoleAgent)

	ticket := mustCreate(t, f, alice, TicketCreateInput{
		Title:       "Cannot reset password",
		Description: "Reset emails never arrive in the inbox.",
	})

	if _, err := f.svc.Get(context.Background(), alice, ticket.ID); err != nil {
		t.Fatalf("creator read: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), bob, ticket.ID); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("other user read: expected FORBIDDEN, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), agent, ticket.ID); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("unassigned agent read: expected FORBIDDEN, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), alice, "no-such-ticket"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("missing ticket: expected NOT_FOUND, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	f := newTicketFixture(t)
	admin := testUser("admin-1", domain.RoleAdmin)

	for i := 0; i < 5; i++ {
		mustCreate(t, f, admin, TicketCreateInput{
			Title:       "Batch ticket number",
			Description: "Filler ticket used to fill out the listing.",
		})
		f.clock.Advance(time.Minute)
	}

	page, err := f.svc.List(context.Background(), admin, TicketListInput{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 5 {
		t.Fatalf("first page: %d items total %d, want 2/5", len(page.Items), page.Total)
	}
	if page.NextOffset == nil || *page.NextOffset != 2 {
		t.Fatalf("first page next_offset = %v, want 2", page.NextOffset)
	}

	last, err := f.svc.List(context.Background(), admin, TicketListInput{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(last.Items) != 1 {
		t.Fatalf("last page: %d items, want 1", len(last.Items))
	}
	if last.NextOffset != nil {
		t.Fatalf("last page next_offset = %v, want nil", *last.NextOffset)
	}
}

func TestListScopedByRole(t *testing.T) {
	f := newTicketFixture(t)
	alice := testUser("alice", domain.RoleUser)
	bob := testUser("bob", domain.RoleUser)
	agent := testUser("agent-a", domain.RoleAgent)
	admin := testUser("admin-1", domain.RoleAdmin)

	mine := mustCreate(t, f, alice, TicketCreateInput{
		Title:       "Alice's ticket",
		Description: "Something broke on Alice's workstation.",
	})
	mustCreate(t, f, bob, TicketCreateInput{
		Title:       "Bob's ticket",
		Description: "Something broke on Bob's workstation.",
	})

	if _, err := f.svc.Update(context.Background(), admin, mine.ID, TicketUpdateInput{
		AssignedTo: strPtr(agent.ID),
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	userPage, err := f.svc.List(context.Background(), alice, TicketListInput{})
	if err != nil {
		t.Fatalf("user list: %v", err)
	}
	if len(userPage.Items) != 1 || userPage.Items[0].CreatedBy != alice.ID {
		t.Errorf("user list leaked foreign tickets: %+v", userPage.Items)
	}

	agentPage, err := f.svc.List(context.Background(), agent, TicketListInput{})
	if err != nil {
		t.Fatalf("agent list: %v", err)
	}
	if len(agentPage.Items) != 1 || agentPage.Items[0].ID != mine.ID {
		t.Errorf("agent list should contain only assigned tickets: %+v", agentPage.Items)
	}

	// A requested assignee filter cannot widen an agent's scope.
	foreign, err := f.svc.List(context.Background(), agent, TicketListInput{AssignedTo: strPtr("someone-else")})
	if err != nil {
		t.Fatalf("agent filtered list: %v", err)
	}
	if len(foreign.Items) != 1 || foreign.Items[0].ID != mine.ID {
		t.Errorf("assignee filter escaped visibility scope: %+v", foreign.Items)
	}

	adminPage, err := f.svc.List(context.Background(), admin, TicketListInput{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(adminPage.Items) != 2 {
		t.Errorf("admin list = %d items, want 2", len(adminPage.Items))
	}
}

func TestStatsScoped(t *testing.T) {
	f := newTicketFixture(t)
	alice := testUser("alice", domain.RoleUser)
	bob := testUser("bob", domain.RoleUser)
	admin := testUser("admin-1", domain.RoleAdmin)

	mustCreate(t, f, alice, TicketCreateInput{
		Title:       "Alice's ticket",
		Description: "Something broke on Alice's workstation.",
		Priority:    domain.TicketPriorityHigh,
	})
	mustCreate(t, f, bob, TicketCreateInput{
		Title:       "Bob's ticket",
		Description: "Something broke on Bob's workstation.",
	})

	adminStats, err := f.svc.Stats(context.Background(), admin)
	if err != nil {
		t.Fatalf("admin stats: %v", err)
	}
	if adminStats.Total != 2 || adminStats.Open != 2 || adminStats.High != 1 {
		t.Errorf("admin stats = %+v, want total 2 open 2 high 1", adminStats)
	}

	aliceStats, err := f.svc.Stats(context.Background(), alice)
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if aliceStats.Total != 1 {
		t.Errorf("user stats total = %d, want 1", aliceStats.Total)
	}
}
