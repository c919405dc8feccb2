package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type OrganizationsHandler struct {
	orgs *service.OrganizationService
}

func NewOrganizationsHandler(orgs *service.OrganizationService) *OrganizationsHandler {
	return &OrganizationsHandler{orgs: orgs}
}

// List GET /api/organizations.
func (h *OrganizationsHandler) List(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	orgs, err := h.orgs.ListOrganizations(c.UserContext(), actor)
	if err != nil {
		return err
	}
	resp := make([]dto.OrganizationResponse, 0, len(orgs))
	for i := range orgs {
		resp = append(resp, organizationResponse(&orgs[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Get GET /api/organizations/:id.
func (h *OrganizationsHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	org, err := h.orgs.GetOrganization(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": organizationResponse(org)})
}

// Create POST /api/organizations.
func (h *OrganizationsHandler) Create(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	input, err := parseOrganizationInput(c)
	if err != nil {
		return err
	}
	org, err := h.orgs.CreateOrganization(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": organizationResponse(org)})
}

// Update PUT /api/organizations/:id.
func (h *OrganizationsHandler) Update(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	input, err := parseOrganizationInput(c)
	if err != nil {
		return err
	}
	org, err := h.orgs.UpdateOrganization(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": organizationResponse(org)})
}

// Delete DELETE /api/organizations/:id.
func (h *OrganizationsHandler) Delete(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.orgs.DeleteOrganization(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseOrganizationInput(c *fiber.Ctx) (service.OrganizationInput, error) {
	var req dto.OrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return service.OrganizationInput{}, apperrors.NewInvalidArgument("invalid payload", nil)
	}
	return service.OrganizationInput{Name: req.Name, Plan: req.Plan, ContactEmail: req.ContactEmail}, nil
}

func organizationResponse(org *domain.Organization) dto.OrganizationResponse {
	return dto.OrganizationResponse{
		ID:           org.ID,
		Name:         org.Name,
		Plan:         org.Plan,
		ContactEmail: org.ContactEmail,
		CreatedAt:    org.CreatedAt,
	}
}
