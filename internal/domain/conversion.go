package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ApprovalStatus is the state of one approval side.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ParseDecision accepts only the two final values a side can be set to.
func ParseDecision(value string) (ApprovalStatus, error) {
	decision := ApprovalStatus(strings.TrimSpace(value))
	if decision == ApprovalApproved || decision == ApprovalRejected {
		return decision, nil
	}
	return "", apperrors.NewInvalidArgument("decision must be approved or rejected", map[string]any{"decision": value})
}

// ApprovalSide names the two independent sign-off tracks.
type ApprovalSide string

const (
	ApprovalSideInternal ApprovalSide = "internal"
	ApprovalSideClient   ApprovalSide = "client"
)

// ParseApprovalSide validates a wire value.
func ParseApprovalSide(value string) (ApprovalSide, error) {
	side := ApprovalSide(strings.TrimSpace(value))
	if side == ApprovalSideInternal || side == ApprovalSideClient {
		return side, nil
	}
	return "", apperrors.NewInvalidArgument("side must be internal or client", map[string]any{"side": value})
}

// ConversionRequest proposes reclassifying a ticket as feature or
// enhancement work, gated on both sides approving.
type ConversionRequest struct {
	ID               string
	TicketID         string
	ProposedType     TicketCategory
	Reason           string
	ProposedBy       string
	CreatedAt        time.Time
	InternalApproval ApprovalStatus
	ClientApproval   ApprovalStatus
}

// Outcome folds both sides: any rejection wins, both approvals approve,
// anything else is still pending.
func (r ConversionRequest) Outcome() ApprovalStatus {
	if r.InternalApproval == ApprovalRejected || r.ClientApproval == ApprovalRejected {
		return ApprovalRejected
	}
	if r.InternalApproval == ApprovalApproved && r.ClientApproval == ApprovalApproved {
		return ApprovalApproved
	}
	return ApprovalPending
}

// IsOpen reports whether the request can still take decisions.
func (r ConversionRequest) IsOpen() bool {
	return r.Outcome() == ApprovalPending
}

// SideStatus returns the current value of one side.
func (r ConversionRequest) SideStatus(side ApprovalSide) ApprovalStatus {
	if side == ApprovalSideInternal {
		return r.InternalApproval
	}
	return r.ClientApproval
}

// ActiveConversion returns the open request, if any.
func (t *Ticket) ActiveConversion() *ConversionRequest {
	if n := len(t.Conversions); n > 0 && t.Conversions[n-1].IsOpen() {
		return &t.Conversions[n-1]
	}
	return nil
}

// LatestConversion returns the most recent request regardless of outcome.
func (t *Ticket) LatestConversion() *ConversionRequest {
	if n := len(t.Conversions); n > 0 {
		return &t.Conversions[n-1]
	}
	return nil
}

// FindConversion looks a request up by id.
func (t *Ticket) FindConversion(id string) *ConversionRequest {
	for i := range t.Conversions {
		if t.Conversions[i].ID == id {
			return &t.Conversions[i]
		}
	}
	return nil
}

// ProposeConversion attaches a new request with both sides pending.
func (t *Ticket) ProposeConversion(req ConversionRequest, now time.Time) (ConversionRequest, error) {
	if req.ProposedType != TicketCategoryFeature && req.ProposedType != TicketCategoryEnhancement {
		return ConversionRequest{}, apperrors.NewInvalidArgument("proposed type must be feature or enhancement", map[string]any{
			"proposed_type": req.ProposedType,
		})
	}
	if strings.TrimSpace(req.Reason) == "" {
		return ConversionRequest{}, apperrors.NewInvalidArgument("reason is required", nil)
	}
	if active := t.ActiveConversion(); active != nil {
		return ConversionRequest{}, apperrors.NewConflictingConversionRequest(map[string]any{
			"ticket_id":             t.ID,
			"conversion_request_id": active.ID,
		})
	}
	if !t.Category.Convertible() {
		return ConversionRequest{}, apperrors.NewInvalidStateTransition("ticket category cannot be converted", map[string]any{
			"ticket_id": t.ID,
			"category":  t.Category,
		})
	}
	if t.Status == TicketStatusClosed {
		return ConversionRequest{}, apperrors.NewInvalidStateTransition("closed tickets cannot be converted", map[string]any{
			"ticket_id": t.ID,
		})
	}

	req.TicketID = t.ID
	req.CreatedAt = now
	req.InternalApproval = ApprovalPending
	req.ClientApproval = ApprovalPending
	t.Conversions = append(t.Conversions, req)
	t.Touch(now)
	return req, nil
}

// DecideConversion sets one side exactly once. When the request reaches an
// approved outcome the ticket takes the proposed category.
func (t *Ticket) DecideConversion(requestID string, side ApprovalSide, decision ApprovalStatus, now time.Time) (ConversionRequest, error) {
	req := t.FindConversion(requestID)
	if req == nil {
		return ConversionRequest{}, apperrors.NewNotFound("conversion request", map[string]any{"conversion_request_id": requestID})
	}
	if !req.IsOpen() {
		return ConversionRequest{}, apperrors.NewInvalidStateTransition("conversion request is already resolved", map[string]any{
			"conversion_request_id": requestID,
			"outcome":               req.Outcome(),
		})
	}
	if req.SideStatus(side) != ApprovalPending {
		return ConversionRequest{}, apperrors.NewInvalidStateTransition("approval side already decided", map[string]any{
			"conversion_request_id": requestID,
			"side":                  side,
			"status":                req.SideStatus(side),
		})
	}

	if side == ApprovalSideInternal {
		req.InternalApproval = decision
	} else {
		req.ClientApproval = decision
	}
	if req.Outcome() == ApprovalApproved {
		t.Category = req.ProposedType
	}
	t.Touch(now)
	return *req, nil
}
