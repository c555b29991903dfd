package sla

import (
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func TestDurationFor(t *testing.T) {
	tests := []struct {
		priority domain.TicketPriority
		want     time.Duration
	}{
		{domain.TicketPriorityLow, 48 * time.Hour},
		{domain.TicketPriorityMedium, 24 * time.Hour},
		{domain.TicketPriorityHigh, 6 * time.Hour},
	}
	for _, tt := range tests {
		got, err := DurationFor(tt.priority)
		if err != nil {
			t.Fatalf("DurationFor(%s): unexpected error %v", tt.priority, err)
		}
		if got != tt.want {
			t.Errorf("DurationFor(%s) = %v, want %v", tt.priority, got, tt.want)
		}
	}
}

func TestDurationForUnknownPriority(t *testing.T) {
	if _, err := DurationFor("urgent"); !apperrors.IsCode(err, "INVALID_PRIORITY") {
		t.Fatalf("expected INVALID_PRIORITY, got %v", err)
	}
}

func TestComputeDeadline(t *testing.T) {
	createdAt := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	deadline, err := ComputeDeadline(createdAt, domain.TicketPriorityHigh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := createdAt.Add(6 * time.Hour); !deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", deadline, want)
	}

	if _, err := ComputeDeadline(createdAt, "critical"); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestIsBreached(t *testing.T) {
	deadline := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	before := deadline.Add(-time.Minute)
	after := deadline.Add(time.Minute)

	tests := []struct {
		name   string
		now    time.Time
		status domain.TicketStatus
		want   bool
	}{
		{"open before deadline", before, domain.TicketStatusOpen, false},
		{"open exactly at deadline", deadline, domain.TicketStatusOpen, false},
		{"open past deadline", after, domain.TicketStatusOpen, true},
		{"in_progress past deadline", after, domain.TicketStatusInProgress, true},
		{"resolved past deadline", after, domain.TicketStatusResolved, false},
		{"closed past deadline", after, domain.TicketStatusClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBreached(tt.now, deadline, tt.status); got != tt.want {
				t.Errorf("IsBreached = %v, want %v", got, tt.want)
			}
		})
	}
}
