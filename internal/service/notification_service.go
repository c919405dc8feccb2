package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/store"
)

// Notification is one message addressed to one user about an event.
type Notification struct {
	RecipientID string
	EventType   events.EventType
	TicketID    string
}

// NotificationSender delivers notifications. Delivery channels are out of
// scope; the default sender only logs.
type NotificationSender func(ctx context.Context, n Notification) error

// NotificationService resolves who should hear about domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	store      *store.Store
	logger     *zap.Logger
	send       NotificationSender
}

// NewNotificationService creates the service. A nil sender logs instead of
// delivering.
func NewNotificationService(deps Dependencies, send NotificationSender) *NotificationService {
	c := newCore(deps)
	n := &NotificationService{dispatcher: c.dispatcher, store: c.store, logger: c.logger, send: send}
	if n.send == nil {
		n.send = n.logNotification
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketMessageAdded,
		events.EventConversionRequested,
		events.EventConversionDecided,
	} {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	for _, recipient := range n.recipients(event) {
		if err := n.send(ctx, Notification{RecipientID: recipient, EventType: event.Type, TicketID: event.TicketID}); err != nil {
			return err
		}
	}
	return nil
}

// recipients never includes the actor and never sends internal notes to
// clients.
func (n *NotificationService) recipients(event events.Event) []string {
	ticket, err := n.store.Ticket(event.TicketID)
	if err != nil {
		return nil
	}
	snap := n.store.Snapshot()
	set := map[string]struct{}{}
	add := func(userID string) {
		if userID == "" || userID == event.ActorID {
			return
		}
		if user, ok := snap.User(userID); ok && user.Active() {
			set[userID] = struct{}{}
		}
	}

	switch event.Type {
	case events.EventTicketCreated:
		for _, user := range snap.Users {
			if user.Active() && user.Role == domain.RoleSupportLead {
				add(user.ID)
			}
		}
	case events.EventTicketAssigned:
		add(ticket.AssigneeID())
	case events.EventTicketStatusChanged:
		add(ticket.CreatedBy)
		add(ticket.AssigneeID())
	case events.EventTicketMessageAdded:
		add(ticket.AssigneeID())
		if payload, ok := event.Payload.(events.TicketMessageAddedPayload); ok && !payload.IsInternal {
			add(ticket.CreatedBy)
		}
	case events.EventConversionRequested:
		for _, user := range snap.Users {
			if user.Active() && user.BelongsTo(ticket.OrganizationID) {
				add(user.ID)
			}
		}
	case events.EventConversionDecided:
		if payload, ok := event.Payload.(events.ConversionDecidedPayload); ok {
			if req := ticket.FindConversion(payload.RequestID); req != nil {
				add(req.ProposedBy)
			}
		}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (n *NotificationService) logNotification(_ context.Context, note Notification) error {
	n.logger.Info("notification",
		zap.String("recipient_id", note.RecipientID),
		zap.String("event_type", string(note.EventType)),
		zap.String("ticket_id", note.TicketID))
	return nil
}
