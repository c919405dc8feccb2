package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/store"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets     *service.TicketService
	conversions *service.ConversionService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, conversions *service.ConversionService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, conversions: conversions}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		Category:       req.Category,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, total, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": ticketResponses(tickets),
		"meta": dto.ListMeta{Total: total, Limit: filter.Limit, Offset: filter.Offset},
	})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	input := service.TicketUpdateInput{Status: req.Status, Priority: req.Priority}
	if req.AssignedTo.Set {
		if req.AssignedTo.Value == nil || strings.TrimSpace(*req.AssignedTo.Value) == "" {
			input.ClearAssignee = true
		} else {
			input.AssignedTo = req.AssignedTo.Value
		}
	}
	ticket, err := h.tickets.UpdateTicket(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AddMessage POST /api/tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	msg, err := h.tickets.AddMessage(c.UserContext(), actor, c.Params("id"), req.Content, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(*msg)})
}

// AddTimeEntry POST /api/tickets/:id/time-entries.
func (h *TicketsHandler) AddTimeEntry(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTimeEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	input := service.TimeEntryInput{Hours: req.Hours, Description: req.Description}
	if req.Date != "" {
		date, err := time.Parse(domain.DateLayout, req.Date)
		if err != nil {
			return apperrors.NewInvalidArgument("date must be YYYY-MM-DD", map[string]any{"date": req.Date})
		}
		input.Date = date
	}
	entry, err := h.tickets.AddTimeEntry(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": timeEntryResponse(*entry)})
}

// RequestConversion POST /api/tickets/:id/convert.
func (h *TicketsHandler) RequestConversion(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ConvertTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	created, err := h.conversions.RequestConversion(c.UserContext(), actor, c.Params("id"), req.ProposedType, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": conversionResponse(*created)})
}

// OrganizationTickets GET /api/organizations/:id/tickets.
func (h *TicketsHandler) OrganizationTickets(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.TicketsForOrg(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// UserTickets GET /api/users/:id/tickets.
func (h *TicketsHandler) UserTickets(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.TicketsForUser(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

func parseTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		TicketFilter: store.TicketFilter{
			OrganizationID: c.Query("organizationId"),
			AssigneeID:     c.Query("assignedTo"),
			Search:         c.Query("search"),
		},
	}
	if value := c.Query("status"); value != "" {
		status, err := domain.ParseTicketStatus(value)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if value := c.Query("priority"); value != "" {
		priority, err := domain.ParseTicketPriority(value)
		if err != nil {
			return filter, err
		}
		filter.Priority = priority
	}
	if value := c.Query("category"); value != "" {
		category, err := domain.ParseTicketCategory(value)
		if err != nil {
			return filter, err
		}
		filter.Category = category
	}
	filter.Limit = parseInt(c.Query("limit"), 0)
	filter.Offset = parseInt(c.Query("offset"), 0)
	return filter, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func ticketResponses(tickets []*domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, ticketResponse(ticket))
	}
	return items
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:             ticket.ID,
		Title:          ticket.Title,
		Description:    ticket.Description,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		Category:       ticket.Category,
		OrganizationID: ticket.OrganizationID,
		CreatedBy:      ticket.CreatedBy,
		AssignedTo:     ticket.AssignedTo,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
		ResolvedAt:     ticket.ResolvedAt,
		HoursWorked:    ticket.HoursWorked(),
		Messages:       make([]dto.MessageResponse, 0, len(ticket.Messages)),
		TimeEntries:    make([]dto.TimeEntryResponse, 0, len(ticket.TimeEntries)),
	}
	for _, msg := range ticket.Messages {
		resp.Messages = append(resp.Messages, messageResponse(msg))
	}
	for _, entry := range ticket.TimeEntries {
		resp.TimeEntries = append(resp.TimeEntries, timeEntryResponse(entry))
	}
	if latest := ticket.LatestConversion(); latest != nil {
		conv := conversionResponse(*latest)
		resp.ConversionRequest = &conv
	}
	return resp
}

func messageResponse(msg domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:         msg.ID,
		TicketID:   msg.TicketID,
		AuthorID:   msg.AuthorID,
		Content:    msg.Content,
		IsInternal: msg.IsInternal,
		CreatedAt:  msg.CreatedAt,
	}
}

func timeEntryResponse(entry domain.TimeEntry) dto.TimeEntryResponse {
	return dto.TimeEntryResponse{
		ID:          entry.ID,
		TicketID:    entry.TicketID,
		UserID:      entry.AuthorID,
		Hours:       entry.Hours,
		Description: entry.Description,
		Date:        entry.Date.Format(domain.DateLayout),
		CreatedAt:   entry.CreatedAt,
	}
}

func conversionResponse(req domain.ConversionRequest) dto.ConversionRequestResponse {
	return dto.ConversionRequestResponse{
		ID:               req.ID,
		TicketID:         req.TicketID,
		ProposedType:     req.ProposedType,
		Reason:           req.Reason,
		ProposedBy:       req.ProposedBy,
		InternalApproval: req.InternalApproval,
		ClientApproval:   req.ClientApproval,
		Status:           req.Outcome(),
		CreatedAt:        req.CreatedAt,
	}
}
