package service

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/policy"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// InvoiceService bills organizations per calendar month.
type InvoiceService struct {
	core
}

func NewInvoiceService(deps Dependencies) *InvoiceService {
	return &InvoiceService{core: newCore(deps)}
}

// InvoiceInput describes a new invoice. Aggregates left nil are computed
// from the current tickets of the organization for the period.
type InvoiceInput struct {
	OrganizationID string
	Month          int
	Year           int
	TicketsClosed  *int
	TotalHours     *float64
	RatePerHour    *float64
}

// CreateInvoice freezes the billing aggregates into a draft invoice.
func (s *InvoiceService) CreateInvoice(ctx context.Context, actor *domain.User, input InvoiceInput) (*domain.Invoice, error) {
	if err := authorize(actor, policy.ActionManageInvoice, policy.Target{OrganizationID: input.OrganizationID}); err != nil {
		return nil, err
	}
	if input.OrganizationID == "" {
		return nil, apperrors.NewInvalidArgument("organizationId is required", nil)
	}
	if err := domain.ValidatePeriod(input.Month, input.Year); err != nil {
		return nil, err
	}

	totals := s.store.Snapshot().BillingTotals(input.OrganizationID, input.Month, input.Year)
	invoice := domain.Invoice{
		ID:             s.newID(),
		OrganizationID: input.OrganizationID,
		Month:          input.Month,
		Year:           input.Year,
		TicketsClosed:  totals.TicketsClosed,
		TotalHours:     totals.TotalHours,
		RatePerHour:    s.rate,
		Status:         domain.InvoiceStatusDraft,
		CreatedAt:      s.now(),
	}
	if input.TicketsClosed != nil {
		if *input.TicketsClosed < 0 {
			return nil, apperrors.NewInvalidArgument("ticketsClosed must not be negative", nil)
		}
		invoice.TicketsClosed = *input.TicketsClosed
	}
	if input.TotalHours != nil {
		if *input.TotalHours < 0 {
			return nil, apperrors.NewInvalidArgument("totalHours must not be negative", nil)
		}
		invoice.TotalHours = *input.TotalHours
	}
	if input.RatePerHour != nil {
		if *input.RatePerHour <= 0 {
			return nil, apperrors.NewInvalidArgument("ratePerHour must be positive", nil)
		}
		invoice.RatePerHour = *input.RatePerHour
	}
	invoice.TotalAmount = roundCents(invoice.TotalHours * invoice.RatePerHour)

	if err := s.store.CreateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID),
		zap.String("organization_id", invoice.OrganizationID),
		zap.Int("month", invoice.Month),
		zap.Int("year", invoice.Year),
		zap.Float64("total_amount", invoice.TotalAmount),
	)
	return &invoice, nil
}

// UpdateInvoiceStatus moves an invoice forward through draft, sent and paid.
func (s *InvoiceService) UpdateInvoiceStatus(ctx context.Context, actor *domain.User, id, status string) (*domain.Invoice, error) {
	current, err := s.store.Invoice(id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.ActionManageInvoice, policy.Target{OrganizationID: current.OrganizationID}); err != nil {
		return nil, err
	}
	next, err := domain.ParseInvoiceStatus(status)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateInvoice(ctx, id, func(invoice *domain.Invoice) error {
		return invoice.TransitionTo(next)
	})
}

func (s *InvoiceService) GetInvoice(ctx context.Context, actor *domain.User, id string) (*domain.Invoice, error) {
	invoice, err := s.store.Invoice(id)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(actor, policy.ActionViewInvoice, policy.Target{OrganizationID: invoice.OrganizationID}, "invoice", id); err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListInvoices returns invoices newest period first. Admins see all of them,
// clients only their own organization's, and support roles none.
func (s *InvoiceService) ListInvoices(ctx context.Context, actor *domain.User, orgID string) ([]domain.Invoice, error) {
	if policy.ScopeFor(actor.Role, policy.ActionViewInvoice) == policy.ScopeNone {
		return nil, authorize(actor, policy.ActionViewInvoice, policy.Target{OrganizationID: orgID})
	}
	snap := s.store.Snapshot()
	out := make([]domain.Invoice, 0, len(snap.Invoices))
	for _, invoice := range snap.Invoices {
		if orgID != "" && invoice.OrganizationID != orgID {
			continue
		}
		if !policy.Can(actor, policy.ActionViewInvoice, policy.Target{OrganizationID: invoice.OrganizationID}) {
			continue
		}
		out = append(out, *invoice)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
