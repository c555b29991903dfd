package dto

import "time"

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content         string  `json:"content"`
	ParentCommentID *string `json:"parent_comment_id"`
}

// UpdateCommentRequest payload.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// CommentResponse is the wire shape of a single comment.
type CommentResponse struct {
	ID              string    `json:"id"`
	TicketID        string    `json:"ticket_id"`
	AuthorID        string    `json:"author_id"`
	ParentCommentID *string   `json:"parent_comment_id"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CommentThreadResponse is a top-level comment with its replies.
type CommentThreadResponse struct {
	CommentResponse
	Replies []CommentResponse `json:"replies"`
}
