package domain

import "time"

// Comment is a threaded message on a ticket. Threads are two levels deep:
// a top-level comment has a nil ParentCommentID, a reply points at a
// top-level comment on the same ticket.
type Comment struct {
	ID              string
	TicketID        string
	AuthorID        string
	ParentCommentID *string
	Content         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CommentThread is a top-level comment with its replies, both ordered by
// creation time ascending.
type CommentThread struct {
	Comment
	Replies []Comment
}
