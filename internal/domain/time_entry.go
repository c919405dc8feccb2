package domain

import (
	"math"
	"time"
)

// TimeEntry records hours spent on a ticket. Date is the calendar day the
// work was done, which may differ from CreatedAt.
type TimeEntry struct {
	ID          string
	TicketID    string
	AuthorID    string
	Hours       float64
	Description string
	Date        time.Time
	CreatedAt   time.Time
}

// DateLayout is the wire format of TimeEntry.Date.
const DateLayout = "2006-01-02"

// ValidHours reports whether hours is a positive, finite amount of work.
func ValidHours(hours float64) bool {
	return hours > 0 && !math.IsInf(hours, 0)
}
