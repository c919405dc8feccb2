package domain

import "time"

// Message is one entry in a ticket's append-only thread.
type Message struct {
	ID         string
	TicketID   string
	AuthorID   string
	Content    string
	IsInternal bool
	CreatedAt  time.Time
}
