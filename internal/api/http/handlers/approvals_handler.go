package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ApprovalsHandler exposes the conversion approval queue.
type ApprovalsHandler struct {
	conversions *service.ConversionService
}

func NewApprovalsHandler(conversions *service.ConversionService) *ApprovalsHandler {
	return &ApprovalsHandler{conversions: conversions}
}

// List GET /api/approvals.
func (h *ApprovalsHandler) List(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	items, err := h.conversions.ListApprovals(c.UserContext(), actor)
	if err != nil {
		return err
	}
	resp := make([]dto.ApprovalResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, approvalResponse(item))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Get GET /api/approvals/:id.
func (h *ApprovalsHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	item, err := h.conversions.GetConversion(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": approvalResponse(*item)})
}

// Decide PUT /api/approvals/:id.
func (h *ApprovalsHandler) Decide(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.DecideApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	decided, err := h.conversions.DecideApproval(c.UserContext(), actor, c.Params("id"), req.Side, req.Outcome())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": conversionResponse(*decided)})
}

func approvalResponse(item service.ApprovalItem) dto.ApprovalResponse {
	return dto.ApprovalResponse{
		ConversionRequestResponse: conversionResponse(item.Request),
		TicketTitle:               item.TicketTitle,
		TicketCategory:            item.TicketCategory,
		OrganizationID:            item.OrganizationID,
	}
}
