package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// InvoiceStatus enumerates billing states.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft: {InvoiceStatusSent, InvoiceStatusPaid},
	InvoiceStatusSent:  {InvoiceStatusPaid},
	InvoiceStatusPaid:  {},
}

// ParseInvoiceStatus validates a wire value.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.TrimSpace(value))
	if _, ok := invoiceTransitions[status]; ok {
		return status, nil
	}
	return "", apperrors.NewInvalidArgument("invalid invoice status", map[string]any{"status": value})
}

// Invoice is a billing snapshot. Aggregates are frozen at creation and do
// not follow later ticket edits.
type Invoice struct {
	ID             string
	OrganizationID string
	Month          int
	Year           int
	TicketsClosed  int
	TotalHours     float64
	RatePerHour    float64
	TotalAmount    float64
	Status         InvoiceStatus
	CreatedAt      time.Time
}

// ValidatePeriod checks the billing month and year.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 || year < 2000 || year > 9999 {
		return apperrors.NewInvalidArgument("invalid billing period", map[string]any{"month": month, "year": year})
	}
	return nil
}

// TransitionTo moves the invoice forward.
func (i *Invoice) TransitionTo(next InvoiceStatus) error {
	for _, candidate := range invoiceTransitions[i.Status] {
		if candidate == next {
			i.Status = next
			return nil
		}
	}
	return apperrors.NewInvalidStateTransition("invalid invoice status transition", map[string]any{
		"invoice_id": i.ID,
		"from":       i.Status,
		"to":         next,
	})
}
