package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ErrVersionMismatch is returned by UpdateVersioned when the conditional
// update matched zero rows, i.e. another writer got there first.
var ErrVersionMismatch = errors.New("ticket version mismatch")

// TicketFilter captures listing parameters. Fields are AND-combined;
// nil/zero fields are ignored.
type TicketFilter struct {
	CreatedBy    *string
	AssignedTo   *string
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	BreachedOnly bool
	Search       *string
	Limit        int
	Offset       int
}

// TicketChanges stages the mutable fields of an update. Only non-nil
// fields are written; the version column is bumped unconditionally.
type TicketChanges struct {
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	AssignedTo  *string
	SLADeadline *time.Time
	Breached    *bool
}

// TicketRepository encapsulates ticket persistence. UpdateVersioned and the
// breach helpers are conditional writes: they affect zero rows rather than
// clobber a concurrent edit.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateVersioned(ctx context.Context, id string, expectedVersion int, changes TicketChanges) (*domain.Ticket, error)
	SetBreached(ctx context.Context, id string, breached bool) error
	MarkOverdueBreached(ctx context.Context, now time.Time) (int, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountWithFilter(ctx context.Context, filter TicketFilter) (int, error)
	Stats(ctx context.Context, filter TicketFilter) (*domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, status, priority, created_by, assigned_to,
               sla_deadline, breached, version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	// created_at is written explicitly so the SLA deadline and the
	// persisted creation time share one anchor.
	const query = `
        INSERT INTO tickets (title, description, status, priority, created_by, assigned_to,
                             sla_deadline, breached, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.SLADeadline,
		ticket.Breached,
		ticket.Version,
		ticket.CreatedAt,
	).Scan(&ticket.ID)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(ticketFields(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateVersioned(ctx context.Context, id string, expectedVersion int, changes TicketChanges) (*domain.Ticket, error) {
	sets := []string{"version = version + 1", "updated_at = NOW()"}
	args := []any{id, expectedVersion}

	stage := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if changes.Status != nil {
		stage("status", *changes.Status)
	}
	if changes.Priority != nil {
		stage("priority", *changes.Priority)
	}
	if changes.AssignedTo != nil {
		stage("assigned_to", *changes.AssignedTo)
	}
	if changes.SLADeadline != nil {
		stage("sla_deadline", *changes.SLADeadline)
	}
	if changes.Breached != nil {
		stage("breached", *changes.Breached)
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$1 AND version=$2 RETURNING %s`,
		strings.Join(sets, ", "), ticketColumns)

	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(ticketFields(&ticket)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionMismatch
		}
		return nil, err
	}
	return &ticket, nil
}

// SetBreached refreshes the breach flag without touching version. The
// guards keep it from resurrecting a flag on terminal tickets and make the
// write a no-op when the flag already matches.
func (r *ticketRepository) SetBreached(ctx context.Context, id string, breached bool) error {
	const query = `
        UPDATE tickets SET breached=$2
        WHERE id=$1 AND breached <> $2 AND status NOT IN ('resolved','closed')`
	_, err := r.pool.Exec(ctx, query, id, breached)
	return err
}

func (r *ticketRepository) MarkOverdueBreached(ctx context.Context, now time.Time) (int, error) {
	const query = `
        UPDATE tickets SET breached=TRUE
        WHERE status NOT IN ('resolved','closed') AND sla_deadline < $1 AND breached=FALSE`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := buildTicketClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountWithFilter(ctx context.Context, filter TicketFilter) (int, error) {
	clauses, args := buildTicketClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE %s`, strings.Join(clauses, " AND "))

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ticketRepository) Stats(ctx context.Context, filter TicketFilter) (*domain.TicketStats, error) {
	clauses, args := buildTicketClauses(filter)
	query := fmt.Sprintf(`
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='open'),
               COUNT(*) FILTER (WHERE status='in_progress'),
               COUNT(*) FILTER (WHERE status='resolved'),
               COUNT(*) FILTER (WHERE status='closed'),
               COUNT(*) FILTER (WHERE breached),
               COUNT(*) FILTER (WHERE priority='high'),
               COUNT(*) FILTER (WHERE priority='medium'),
               COUNT(*) FILTER (WHERE priority='low')
        FROM tickets WHERE %s`, strings.Join(clauses, " AND "))

	var stats domain.TicketStats
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Open,
		&stats.InProgress,
		&stats.Resolved,
		&stats.Closed,
		&stats.Breached,
		&stats.High,
		&stats.Medium,
		&stats.Low,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

func buildTicketClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.BreachedOnly {
		clauses = append(clauses, "breached=TRUE")
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return clauses, args
}

func ticketFields(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.CreatedBy,
		&t.AssignedTo,
		&t.SLADeadline,
		&t.Breached,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketFields(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
