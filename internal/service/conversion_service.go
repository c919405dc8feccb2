package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/store"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ConversionService runs the dual approval workflow.
type ConversionService struct {
	core
}

// NewConversionService constructs the service.
func NewConversionService(deps Dependencies) *ConversionService {
	return &ConversionService{core: newCore(deps)}
}

// ApprovalItem is a conversion request together with its ticket summary.
type ApprovalItem struct {
	Request        domain.ConversionRequest
	TicketTitle    string
	TicketCategory domain.TicketCategory
	OrganizationID string
}

// RequestConversion proposes converting a ticket to feature or enhancement work.
func (s *ConversionService) RequestConversion(ctx context.Context, actor *domain.User, ticketID, proposedType, reason string) (*domain.ConversionRequest, error) {
	current, err := loadVisibleTicket(s.store, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.ActionRequestConversion, policy.Target{OrganizationID: current.OrganizationID}); err != nil {
		return nil, err
	}
	target, err := domain.ParseTicketCategory(proposedType)
	if err != nil {
		return nil, err
	}

	var created domain.ConversionRequest
	_, change, err := s.store.MutateTicket(ctx, ticketID, func(ticket *domain.Ticket) (store.TicketChange, error) {
		now := s.now()
		req, err := ticket.ProposeConversion(domain.ConversionRequest{
			ID:           s.newID(),
			ProposedType: target,
			Reason:       strings.TrimSpace(reason),
			ProposedBy:   actor.ID,
		}, now)
		if err != nil {
			return store.TicketChange{}, err
		}
		created = req
		description := fmt.Sprintf("Conversion to %s requested for %s", req.ProposedType, ticket.Title)
		return store.TicketChange{
			Conversion:        &created,
			ConversionCreated: true,
			Activities:        []domain.ActivityItem{s.activity(domain.ActivityConversionRequested, actor, ticket.ID, description, ticket.UpdatedAt)},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventConversionRequested,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload:  events.ConversionRequestedPayload{RequestID: created.ID, ProposedType: created.ProposedType},
	})
	s.publishActivities(ctx, change.Activities)
	return &created, nil
}

// DecideApproval sets one approval side. Checks run in a fixed order:
// existence, input, authorization, then state.
func (s *ConversionService) DecideApproval(ctx context.Context, actor *domain.User, requestID, side, decision string) (*domain.ConversionRequest, error) {
	ticketID, err := s.store.TicketIDForConversion(requestID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Ticket(ticketID)
	if err != nil {
		return nil, err
	}

	approvalSide, err := domain.ParseApprovalSide(side)
	if err != nil {
		return nil, err
	}
	verdict, err := domain.ParseDecision(decision)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.ApprovalAction(approvalSide), policy.Target{OrganizationID: current.OrganizationID}); err != nil {
		return nil, err
	}

	var decided domain.ConversionRequest
	_, change, err := s.store.MutateTicket(ctx, ticketID, func(ticket *domain.Ticket) (store.TicketChange, error) {
		req, err := ticket.DecideConversion(requestID, approvalSide, verdict, s.now())
		if err != nil {
			return store.TicketChange{}, err
		}
		decided = req

		kind := domain.ActivityTicketUpdated
		description := fmt.Sprintf("%s approval %s for conversion of %s", approvalSide, verdict, ticket.Title)
		switch req.Outcome() {
		case domain.ApprovalApproved:
			kind = domain.ActivityConversionApproved
			description = fmt.Sprintf("%s converted to %s", ticket.Title, req.ProposedType)
		case domain.ApprovalRejected:
			kind = domain.ActivityConversionRejected
			description = fmt.Sprintf("Conversion of %s to %s rejected", ticket.Title, req.ProposedType)
		}
		return store.TicketChange{
			Conversion: &decided,
			Activities: []domain.ActivityItem{s.activity(kind, actor, ticket.ID, description, ticket.UpdatedAt)},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordApprovalDecision(string(approvalSide), string(verdict))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventConversionDecided,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload: events.ConversionDecidedPayload{
			RequestID: decided.ID,
			Side:      approvalSide,
			Decision:  verdict,
			Outcome:   decided.Outcome(),
		},
	})
	s.publishActivities(ctx, change.Activities)
	return &decided, nil
}

// GetConversion returns any request, open or resolved, on a visible ticket.
func (s *ConversionService) GetConversion(ctx context.Context, actor *domain.User, requestID string) (*ApprovalItem, error) {
	ticketID, err := s.store.TicketIDForConversion(requestID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.store.Ticket(ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(actor, policy.ActionViewTicket, policy.Target{OrganizationID: ticket.OrganizationID}, "conversion request", requestID); err != nil {
		return nil, err
	}
	req := ticket.FindConversion(requestID)
	if req == nil {
		return nil, apperrors.NewNotFound("conversion request", map[string]any{"id": requestID})
	}
	return &ApprovalItem{Request: *req, TicketTitle: ticket.Title, TicketCategory: ticket.Category, OrganizationID: ticket.OrganizationID}, nil
}

// ListApprovals returns the open requests on tickets the actor can see,
// oldest first.
func (s *ConversionService) ListApprovals(ctx context.Context, actor *domain.User) ([]ApprovalItem, error) {
	snap := s.store.Snapshot()
	items := make([]ApprovalItem, 0)
	for _, req := range snap.OpenConversions(snap.Tickets) {
		ticket, ok := snap.Ticket(req.TicketID)
		if !ok || !policy.Can(actor, policy.ActionViewTicket, policy.Target{OrganizationID: ticket.OrganizationID}) {
			continue
		}
		items = append(items, ApprovalItem{
			Request:        req,
			TicketTitle:    ticket.Title,
			TicketCategory: ticket.Category,
			OrganizationID: ticket.OrganizationID,
		})
	}
	return items, nil
}
