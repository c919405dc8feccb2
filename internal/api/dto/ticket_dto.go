package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Priority       string `json:"priority"`
	Category       string `json:"category"`
	OrganizationID string `json:"organizationId"`
}

// UpdateTicketRequest payload. Absent fields are left unchanged; an explicit
// null assignedTo unassigns.
type UpdateTicketRequest struct {
	Status     *string        `json:"status"`
	Priority   *string        `json:"priority"`
	AssignedTo OptionalString `json:"assignedTo"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"isInternal"`
}

// CreateTimeEntryRequest payload. Date is YYYY-MM-DD and defaults to today.
type CreateTimeEntryRequest struct {
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

// ConvertTicketRequest payload.
type ConvertTicketRequest struct {
	ProposedType string `json:"proposedType"`
	Reason       string `json:"reason"`
}

// DecideApprovalRequest payload. Status carries the decision; Decision is
// accepted as an alias.
type DecideApprovalRequest struct {
	Side     string `json:"side"`
	Status   string `json:"status"`
	Decision string `json:"decision"`
}

// Outcome returns the requested decision.
func (r DecideApprovalRequest) Outcome() string {
	if r.Status != "" {
		return r.Status
	}
	return r.Decision
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Description       string                     `json:"description"`
	Status            domain.TicketStatus        `json:"status"`
	Priority          domain.TicketPriority      `json:"priority"`
	Category          domain.TicketCategory      `json:"category"`
	OrganizationID    string                     `json:"organizationId"`
	CreatedBy         string                     `json:"createdBy"`
	AssignedTo        *string                    `json:"assignedTo"`
	CreatedAt         time.Time                  `json:"createdAt"`
	UpdatedAt         time.Time                  `json:"updatedAt"`
	ResolvedAt        *time.Time                 `json:"resolvedAt,omitempty"`
	HoursWorked       float64                    `json:"hoursWorked"`
	Messages          []MessageResponse          `json:"messages"`
	TimeEntries       []TimeEntryResponse        `json:"timeEntries"`
	ConversionRequest *ConversionRequestResponse `json:"conversionRequest"`
}

// MessageResponse represents a thread message.
type MessageResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticketId"`
	AuthorID   string    `json:"authorId"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"isInternal"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TimeEntryResponse represents logged work.
type TimeEntryResponse struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticketId"`
	UserID      string    `json:"userId"`
	Hours       float64   `json:"hours"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ConversionRequestResponse represents a conversion proposal.
type ConversionRequestResponse struct {
	ID               string                `json:"id"`
	TicketID         string                `json:"ticketId"`
	ProposedType     domain.TicketCategory `json:"proposedType"`
	Reason           string                `json:"reason"`
	ProposedBy       string                `json:"proposedBy"`
	InternalApproval domain.ApprovalStatus `json:"internalApproval"`
	ClientApproval   domain.ApprovalStatus `json:"clientApproval"`
	Status           domain.ApprovalStatus `json:"status"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// ApprovalResponse is a conversion request with its ticket summary.
type ApprovalResponse struct {
	ConversionRequestResponse
	TicketTitle    string                `json:"ticketTitle"`
	TicketCategory domain.TicketCategory `json:"ticketCategory"`
	OrganizationID string                `json:"organizationId"`
}

// ListMeta describes a paginated listing.
type ListMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
