package domain

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen           TicketStatus = "open"
	TicketStatusInProgress     TicketStatus = "in-progress"
	TicketStatusAwaitingClient TicketStatus = "awaiting-client"
	TicketStatusResolved       TicketStatus = "resolved"
	TicketStatusClosed         TicketStatus = "closed"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// TicketCategory classifies the work. Feature and enhancement are reachable
// from the support categories only through an approved conversion.
type TicketCategory string

const (
	TicketCategoryBug         TicketCategory = "bug"
	TicketCategorySupport     TicketCategory = "support"
	TicketCategoryQuestion    TicketCategory = "question"
	TicketCategoryFeature     TicketCategory = "feature"
	TicketCategoryEnhancement TicketCategory = "enhancement"
)

// TicketStatuses lists statuses in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusAwaitingClient,
	TicketStatusResolved,
	TicketStatusClosed,
}

// allowedTransitions only contains forward edges. There is no reopen path.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:           {TicketStatusInProgress, TicketStatusAwaitingClient, TicketStatusResolved, TicketStatusClosed},
	TicketStatusInProgress:     {TicketStatusAwaitingClient, TicketStatusResolved, TicketStatusClosed},
	TicketStatusAwaitingClient: {TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:       {TicketStatusClosed},
	TicketStatusClosed:         {},
}

// CanTransition reports whether current -> next is an edge of the state machine.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseTicketStatus validates a wire value.
func ParseTicketStatus(value string) (TicketStatus, error) {
	status := TicketStatus(strings.TrimSpace(value))
	if _, ok := allowedTransitions[status]; ok {
		return status, nil
	}
	return "", apperrors.NewInvalidArgument("invalid status", map[string]any{"status": value})
}

// IsTerminal reports whether priority and assignee are frozen.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// ParseTicketPriority validates a wire value.
func ParseTicketPriority(value string) (TicketPriority, error) {
	priority := TicketPriority(strings.TrimSpace(value))
	switch priority {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return priority, nil
	}
	return "", apperrors.NewInvalidArgument("invalid priority", map[string]any{"priority": value})
}

// ParseTicketCategory validates a wire value.
func ParseTicketCategory(value string) (TicketCategory, error) {
	category := TicketCategory(strings.TrimSpace(value))
	switch category {
	case TicketCategoryBug, TicketCategorySupport, TicketCategoryQuestion, TicketCategoryFeature, TicketCategoryEnhancement:
		return category, nil
	}
	return "", apperrors.NewInvalidArgument("invalid category", map[string]any{"category": value})
}

// Convertible reports whether a conversion may be proposed from this category.
func (c TicketCategory) Convertible() bool {
	return c == TicketCategoryBug || c == TicketCategorySupport || c == TicketCategoryQuestion
}

// Ticket is the aggregate for support requests. A published Ticket value is
// never mutated in place; writers work on a Clone.
type Ticket struct {
	ID             string
	Title          string
	Description    string
	Status         TicketStatus
	Priority       TicketPriority
	Category       TicketCategory
	OrganizationID string
	CreatedBy      string
	AssignedTo     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// ResolvedAt is stamped when the ticket first reaches resolved or closed
	// and never moves afterwards.
	ResolvedAt *time.Time
	// Version increments on every committed mutation and backs the
	// optimistic check in durable storage.
	Version     int64
	Messages    []Message
	TimeEntries []TimeEntry
	// Conversions keeps every proposal ever made; only the last one can
	// still be open.
	Conversions []ConversionRequest
}

// Clone returns a deep copy safe to mutate.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		clone.AssignedTo = &assignee
	}
	if t.ResolvedAt != nil {
		resolved := *t.ResolvedAt
		clone.ResolvedAt = &resolved
	}
	clone.Messages = append([]Message(nil), t.Messages...)
	clone.TimeEntries = append([]TimeEntry(nil), t.TimeEntries...)
	clone.Conversions = append([]ConversionRequest(nil), t.Conversions...)
	return &clone
}

// HoursWorked is derived from the time entries on every call.
func (t *Ticket) HoursWorked() float64 {
	total := 0.0
	for _, entry := range t.TimeEntries {
		total += entry.Hours
	}
	return total
}

// AssigneeID returns the assignee or "".
func (t *Ticket) AssigneeID() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}

// Touch advances UpdatedAt, never letting it stand still or move backwards.
func (t *Ticket) Touch(now time.Time) {
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Microsecond)
	}
	t.UpdatedAt = now
}

// TransitionTo moves the ticket along the status machine.
func (t *Ticket) TransitionTo(next TicketStatus, now time.Time) error {
	if !CanTransition(t.Status, next) {
		return apperrors.NewInvalidStateTransition("invalid status transition", map[string]any{
			"ticket_id": t.ID,
			"from":      t.Status,
			"to":        next,
		})
	}
	t.Status = next
	t.Touch(now)
	if next.IsTerminal() && t.ResolvedAt == nil {
		resolved := t.UpdatedAt
		t.ResolvedAt = &resolved
	}
	return nil
}

// SetPriority changes priority while the ticket is still being worked.
func (t *Ticket) SetPriority(priority TicketPriority, now time.Time) error {
	if t.Status.IsTerminal() {
		return apperrors.NewInvalidStateTransition("priority is frozen once a ticket is resolved", map[string]any{
			"ticket_id": t.ID,
			"status":    t.Status,
		})
	}
	t.Priority = priority
	t.Touch(now)
	return nil
}

// Assign sets or clears (empty id) the assignee while the ticket is still being worked.
func (t *Ticket) Assign(userID string, now time.Time) error {
	if t.Status.IsTerminal() {
		return apperrors.NewInvalidStateTransition("assignee is frozen once a ticket is resolved", map[string]any{
			"ticket_id": t.ID,
			"status":    t.Status,
		})
	}
	if userID == "" {
		t.AssignedTo = nil
	} else {
		t.AssignedTo = &userID
	}
	t.Touch(now)
	return nil
}

// AppendMessage adds to the thread without touching status.
func (t *Ticket) AppendMessage(msg Message, now time.Time) {
	t.Messages = append(t.Messages, msg)
	t.Touch(now)
}

// AppendTimeEntry logs hours without touching status.
func (t *Ticket) AppendTimeEntry(entry TimeEntry, now time.Time) error {
	if !ValidHours(entry.Hours) {
		return apperrors.NewInvalidArgument("hours must be positive", map[string]any{"hours": strconv.FormatFloat(entry.Hours, 'g', -1, 64)})
	}
	t.TimeEntries = append(t.TimeEntries, entry)
	t.Touch(now)
	return nil
}

// ProjectFor returns a copy filtered for the viewer's role. Clients never
// see internal notes.
func (t *Ticket) ProjectFor(role Role) *Ticket {
	view := t.Clone()
	if role != RoleClient {
		return view
	}
	public := make([]Message, 0, len(view.Messages))
	for _, msg := range view.Messages {
		if msg.IsInternal {
			continue
		}
		public = append(public, msg)
	}
	view.Messages = public
	return view
}
