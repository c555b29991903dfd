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

type commentFixture struct {
	svc       *CommentService
	ticketSvc *TicketService
	clock     *fakeClock
}

func newCommentFixture(t *testing.T) *commentFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	tickets := memory.NewTicketStore()
	comments := memory.NewCommentStore()
	timeline := NewTimelineRecorder(memory.NewTimelineStore(), zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()

	ticketSvc := NewTicketService(TicketDependencies{
		TicketRepo:  tickets,
		CommentRepo: comments,
		Timeline:    timeline,
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
	})
	ticketSvc.now = clock.Now

	svc := NewCommentService(CommentDependencies{
		CommentRepo: comments,
		TicketRepo:  tickets,
		Timeline:    timeline,
		Dispatcher:  dispatcher,
	})
	svc.now = clock.Now

	return &commentFixture{svc: svc, ticketSvc: ticketSvc, clock: clock}
}

func (f *commentFixture) newTicket(t *testing.T, actor *domain.User) *domain.Ticket {
	t.Helper()
	ticket, err := f.ticketSvc.Create(context.Background(), actor, TicketCreateInput{
		Title:       "Monitor flickering",
		Description: "External display flickers on the dock.",
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestAddCommentAndReply(t *testing.T) {
	f := newCommentFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)
	ticket := f.newTicket(t, reporter)

	parent, err := f.svc.Add(context.Background(), reporter, ticket.ID, "Still happening after a reboot.", nil)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	f.clock.Advance(time.Minute)

	reply, err := f.svc.Add(context.Background(), reporter, ticket.ID, "Tried a different cable too.", &parent.ID)
	if err != nil {
		t.Fatalf("add reply: %v", err)
	}
	if reply.ParentCommentID == nil || *reply.ParentCommentID != parent.ID {
		t.Fatalf("reply parent = %v, want %s", reply.ParentCommentID, parent.ID)
	}

	threads, err := f.svc.List(context.Background(), reporter, ticket.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(threads))
	}
	if len(threads[0].Replies) != 1 || threads[0].Replies[0].ID != reply.ID {
		t.Fatalf("thread replies = %+v, want the single reply", threads[0].Replies)
	}
}

func TestAddCommentParentValidation(t *testing.T) {
	f := newCommentFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)
	ticketA := f.newTicket(t, reporter)
	ticketB := f.newTicket(t, reporter)

	parent, err := f.svc.Add(context.Background(), reporter, ticketA.ID, "Top-level comment.", nil)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	reply, err := f.svc.Add(context.Background(), reporter, ticketA.ID, "First reply.", &parent.ID)
	if err != nil {
		t.Fatalf("add reply: %v", err)
	}

	missing := "no-such-comment"
	tests := []struct {
		name     string
		ticketID string
		parentID *string
	}{
		{"parent does not exist", ticketA.ID, &missing},
		{"parent on another ticket", ticketB.ID, &parent.ID},
		{"reply to a reply", ticketA.ID, &reply.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Add(context.Background(), reporter, tt.ticketID, "Should be rejected.", tt.parentID)
			if !apperrors.IsCode(err, "INVALID_PARENT") {
				t.Fatalf("expected INVALID_PARENT, got %v", err)
			}
		})
	}
}

func TestAddCommentContentValidation(t *testing.T) {
	f := newCommentFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)
	ticket := f.newTicket(t, reporter)

	if _, err := f.svc.Add(context.Background(), reporter, ticket.ID, "   ", nil); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("blank content: expected VALIDATION_FAILED, got %v", err)
	}

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := f.svc.Add(context.Background(), reporter, ticket.ID, string(long), nil); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("oversized content: expected VALIDATION_FAILED, got %v", err)
	}
}

func TestAddCommentVisibility(t *testing.T) {
	f := newCommentFixture(t)
	alice := testUser("alice", domain.RoleUser)
	bob := testUser("bob", domain.RoleUser)
	ticket := f.newTicket(t, alice)

	_, err := f.svc.Add(context.Background(), bob, ticket.ID, "I cannot even see this ticket.", nil)
	if !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestUpdateCommentEditWindow(t *testing.T) {
	f := newCommentFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)
	admin := testUser("admin-1", domain.RoleAdmin)
	ticket := f.newTicket(t, reporter)

	comment, err := f.svc.Add(context.Background(), reporter, ticket.ID, "Original wording.", nil)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	// Inside the window the author may edit.
	f.clock.Advance(23 * time.Hour)
	if _, err := f.svc.Update(context.Background(), reporter, comment.ID, "Amended wording."); err != nil {
		t.Fatalf("edit inside window: %v", err)
	}

	// Past the window the author is locked out, the admin is not.
	f.clock.Advance(2 * time.Hour)
	if _, err := f.svc.Update(context.Background(), reporter, comment.ID, "Too late."); !apperrors.IsCode(err, "TOO_OLD") {
		t.Fatalf("edit past window: expected TOO_OLD, got %v", err)
	}
	if _, err := f.svc.Update(context.Background(), admin, comment.ID, "Admin override."); err != nil {
		t.Fatalf("admin edit past window: %v", err)
	}
}

func TestUpdateCommentAuthorOnly(t *testing.T) {
	f := newCommentFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)
	agent := testUser("agent-a", domain.RoleAgent)
	ticket := f.newTicket(t, reporter)

	comment, err := f.svc.Add(context.Background(), reporter, ticket.ID, "My observation.", nil)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if _, err := f.svc.Update(context.Background(), agent, comment.ID, "Rewritten."); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestDeleteCommentCascadesToReplies(t *testing.T) {
	f := newCommentFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)
	ticket := f.newTicket(t, reporter)

	parent, err := f.svc.Add(context.Background(), reporter, ticket.ID, "Thread starter.", nil)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		if _, err := f.svc.Add(context.Background(), reporter, ticket.ID, "A follow-up reply.", &parent.ID); err != nil {
			t.Fatalf("add reply %d: %v", i, err)
		}
	}

	removed, err := f.svc.Delete(context.Background(), reporter, parent.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 4 {
		t.Fatalf("removed = %d, want 4 (parent plus three replies)", removed)
	}

	threads, err := f.svc.List(context.Background(), reporter, ticket.ID)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(threads) != 0 {
		t.Fatalf("threads after delete = %d, want 0", len(threads))
	}
}

func TestCommentThreadsChronological(t *testing.T) {
	f := newCommentFixture(t)
	reporter := testUser("reporter-1", domain.RoleUser)
	ticket := f.newTicket(t, reporter)

	var ids []string
	for i := 0; i < 3; i++ {
		comment, err := f.svc.Add(context.Background(), reporter, ticket.ID, "Sequenced comment.", nil)
		if err != nil {
			t.Fatalf("add comment %d: %v", i, err)
		}
		ids = append(ids, comment.ID)
		f.clock.Advance(time.Minute)
	}

	threads, err := f.svc.List(context.Background(), reporter, ticket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(threads) != 3 {
		t.Fatalf("threads = %d, want 3", len(threads))
	}
	for i, thread := range threads {
		if thread.Comment.ID != ids[i] {
			t.Fatalf("thread %d = %s, want %s (oldest first)", i, thread.Comment.ID, ids[i])
		}
	}
}
