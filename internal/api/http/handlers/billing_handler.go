package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// BillingHandler serves invoices and dashboard read models.
type BillingHandler struct {
	invoices  *service.InvoiceService
	dashboard *service.DashboardService
}

// NewBillingHandler constructs handler.
func NewBillingHandler(invoices *service.InvoiceService, dashboard *service.DashboardService) *BillingHandler {
	return &BillingHandler{invoices: invoices, dashboard: dashboard}
}

// ListInvoices GET /api/invoices.
func (h *BillingHandler) ListInvoices(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	invoices, err := h.invoices.ListInvoices(c.UserContext(), actor, c.Query("organizationId"))
	if err != nil {
		return err
	}
	resp := make([]dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		resp = append(resp, invoiceResponse(&invoices[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetInvoice GET /api/invoices/:id.
func (h *BillingHandler) GetInvoice(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	invoice, err := h.invoices.GetInvoice(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": invoiceResponse(invoice)})
}

// CreateInvoice POST /api/invoices.
func (h *BillingHandler) CreateInvoice(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	invoice, err := h.invoices.CreateInvoice(c.UserContext(), actor, service.InvoiceInput{
		OrganizationID: req.OrganizationID,
		Month:          req.Month,
		Year:           req.Year,
		TicketsClosed:  req.TicketsClosed,
		TotalHours:     req.TotalHours,
		RatePerHour:    req.RatePerHour,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": invoiceResponse(invoice)})
}

// UpdateInvoiceStatus PUT /api/invoices/:id.
func (h *BillingHandler) UpdateInvoiceStatus(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateInvoiceStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	invoice, err := h.invoices.UpdateInvoiceStatus(c.UserContext(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": invoiceResponse(invoice)})
}

// Stats GET /api/dashboard/stats.
func (h *BillingHandler) Stats(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	stats, err := h.dashboard.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardStatsResponse{
		TotalTickets:            stats.TotalTickets,
		OpenTickets:             stats.Open,
		InProgressTickets:       stats.InProgress,
		AwaitingClientTickets:   stats.AwaitingClient,
		ResolvedTickets:         stats.Resolved,
		ClosedTickets:           stats.Closed,
		TotalHours:              stats.TotalHours,
		PendingApprovals:        stats.PendingApproval,
		AvgFirstResponseMinutes: stats.AvgFirstResponse.Minutes(),
	}})
}

// Activities GET /api/dashboard/activities.
func (h *BillingHandler) Activities(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	items, err := h.dashboard.Activities(c.UserContext(), actor, parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	resp := make([]dto.ActivityResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, dto.ActivityResponse{
			ID:          item.ID,
			Type:        item.Type,
			Description: item.Description,
			UserID:      item.ActorUserID,
			TicketID:    item.TicketID,
			CreatedAt:   item.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

func invoiceResponse(invoice *domain.Invoice) dto.InvoiceResponse {
	return dto.InvoiceResponse{
		ID:             invoice.ID,
		OrganizationID: invoice.OrganizationID,
		Month:          invoice.Month,
		Year:           invoice.Year,
		TicketsClosed:  invoice.TicketsClosed,
		TotalHours:     invoice.TotalHours,
		RatePerHour:    invoice.RatePerHour,
		TotalAmount:    invoice.TotalAmount,
		Status:         invoice.Status,
		CreatedAt:      invoice.CreatedAt,
	}
}
