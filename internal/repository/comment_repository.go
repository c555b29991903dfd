package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CommentRepository manages threaded ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	ListTopLevel(ctx context.Context, ticketID string) ([]domain.Comment, error)
	ListReplies(ctx context.Context, parentID string) ([]domain.Comment, error)
	Update(ctx context.Context, comment *domain.Comment) error
	// DeleteWithReplies removes the comment and its direct replies,
	// returning the number of rows removed.
	DeleteWithReplies(ctx context.Context, id string) (int, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

const commentColumns = `id, ticket_id, author_id, parent_comment_id, content, created_at, updated_at`

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, author_id, parent_comment_id, content, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$5)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.ParentCommentID,
		comment.Content,
		comment.CreatedAt,
	).Scan(&comment.ID)
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, parent_comment_id, content, created_at, updated_at
        FROM comments WHERE id=$1`
	var comment domain.Comment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.AuthorID,
		&comment.ParentCommentID,
		&comment.Content,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListTopLevel(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, parent_comment_id, content, created_at, updated_at
        FROM comments WHERE ticket_id=$1 AND parent_comment_id IS NULL ORDER BY created_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *commentRepository) ListReplies(ctx context.Context, parentID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, parent_comment_id, content, created_at, updated_at
        FROM comments WHERE parent_comment_id=$1 ORDER BY created_at ASC`
	return r.list(ctx, query, parentID)
}

func (r *commentRepository) list(ctx context.Context, query string, arg any) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.ParentCommentID,
			&comment.Content,
			&comment.CreatedAt,
			&comment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

func (r *commentRepository) Update(ctx context.Context, comment *domain.Comment) error {
	const query = `
        UPDATE comments SET content=$1, updated_at=$2
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, comment.Content, comment.UpdatedAt, comment.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *commentRepository) DeleteWithReplies(ctx context.Context, id string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	replies, err := tx.Exec(ctx, `DELETE FROM comments WHERE parent_comment_id=$1`, id)
	if err != nil {
		return 0, err
	}
	comment, err := tx.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(replies.RowsAffected() + comment.RowsAffected()), nil
}
