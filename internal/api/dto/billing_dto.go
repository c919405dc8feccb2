package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateInvoiceRequest payload. Aggregates are computed when omitted.
type CreateInvoiceRequest struct {
	OrganizationID string   `json:"organizationId"`
	Month          int      `json:"month"`
	Year           int      `json:"year"`
	TicketsClosed  *int     `json:"ticketsClosed"`
	TotalHours     *float64 `json:"totalHours"`
	RatePerHour    *float64 `json:"ratePerHour"`
}

// UpdateInvoiceStatusRequest payload.
type UpdateInvoiceStatusRequest struct {
	Status string `json:"status"`
}

// InvoiceResponse view.
type InvoiceResponse struct {
	ID             string               `json:"id"`
	OrganizationID string               `json:"organizationId"`
	Month          int                  `json:"month"`
	Year           int                  `json:"year"`
	TicketsClosed  int                  `json:"ticketsClosed"`
	TotalHours     float64              `json:"totalHours"`
	RatePerHour    float64              `json:"ratePerHour"`
	TotalAmount    float64              `json:"totalAmount"`
	Status         domain.InvoiceStatus `json:"status"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// DashboardStatsResponse view.
type DashboardStatsResponse struct {
	TotalTickets            int     `json:"totalTickets"`
	OpenTickets             int     `json:"openTickets"`
	InProgressTickets       int     `json:"inProgressTickets"`
	AwaitingClientTickets   int     `json:"awaitingClientTickets"`
	ResolvedTickets         int     `json:"resolvedTickets"`
	ClosedTickets           int     `json:"closedTickets"`
	TotalHours              float64 `json:"totalHours"`
	PendingApprovals        int     `json:"pendingApprovals"`
	AvgFirstResponseMinutes float64 `json:"avgFirstResponseMinutes"`
}

// ActivityResponse view.
type ActivityResponse struct {
	ID          string              `json:"id"`
	Type        domain.ActivityType `json:"type"`
	Description string              `json:"description"`
	UserID      string              `json:"userId"`
	TicketID    *string             `json:"ticketId,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}
