package domain

import "time"

// ActivityType tags audit records.
type ActivityType string

const (
	ActivityTicketCreated       ActivityType = "ticket-created"
	ActivityTicketUpdated       ActivityType = "ticket-updated"
	ActivityMessageAdded        ActivityType = "message-added"
	ActivityTicketResolved      ActivityType = "ticket-resolved"
	ActivityConversionRequested ActivityType = "conversion-requested"
	ActivityConversionApproved  ActivityType = "conversion-approved"
	ActivityConversionRejected  ActivityType = "conversion-rejected"
)

// ActivityItem is an immutable audit record.
type ActivityItem struct {
	ID          string
	Type        ActivityType
	Description string
	ActorUserID string
	TicketID    *string
	// Internal marks records only the support team may see, such as the
	// trace of an internal note.
	Internal  bool
	CreatedAt time.Time
}

// VisibleTo hides internal records from clients.
func (a ActivityItem) VisibleTo(role Role) bool {
	return !a.Internal || role.IsInternal()
}

// TicketRef returns the ticket id or "".
func (a ActivityItem) TicketRef() string {
	if a.TicketID == nil {
		return ""
	}
	return *a.TicketID
}
