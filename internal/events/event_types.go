package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketMessageAdded    EventType = "ticket_message_added"
	EventTimeLogged            EventType = "ticket_time_logged"
	EventConversionRequested   EventType = "conversion_requested"
	EventConversionDecided     EventType = "conversion_decided"
	EventActivityRecorded      EventType = "activity_recorded"
)

// Event represents a domain event emitted by services after a commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OrganizationID string                `json:"organization_id"`
	Priority       domain.TicketPriority `json:"priority"`
	Category       domain.TicketCategory `json:"category"`
	Title          string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string `json:"message_id"`
	IsInternal  bool   `json:"is_internal"`
	BodyPreview string `json:"body_preview"`
}

// TimeLoggedPayload payload.
type TimeLoggedPayload struct {
	EntryID string  `json:"entry_id"`
	Hours   float64 `json:"hours"`
}

// ConversionRequestedPayload payload.
type ConversionRequestedPayload struct {
	RequestID    string                `json:"request_id"`
	ProposedType domain.TicketCategory `json:"proposed_type"`
}

// ConversionDecidedPayload payload.
type ConversionDecidedPayload struct {
	RequestID string                `json:"request_id"`
	Side      domain.ApprovalSide   `json:"side"`
	Decision  domain.ApprovalStatus `json:"decision"`
	Outcome   domain.ApprovalStatus `json:"outcome"`
}

// ActivityRecordedPayload carries one audit record to the activity sink.
type ActivityRecordedPayload struct {
	Activity domain.ActivityItem `json:"activity"`
}
