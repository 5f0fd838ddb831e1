package domain

import "time"

// Comment is a message on a ticket thread. Comments are immutable once
// created and are removed together with their parent ticket.
type Comment struct {
	ID        int64
	TicketID  int64
	AuthorID  int64
	Body      string
	CreatedAt time.Time
}
