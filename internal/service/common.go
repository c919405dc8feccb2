package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/store"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// Dependencies bundles what every application service needs.
type Dependencies struct {
	Store      *store.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
	// NewID defaults to random UUIDs.
	NewID func() string
	// BcryptCost applies to passwords set through the services.
	BcryptCost int
	// DefaultRatePerHour prices invoices created without an explicit rate.
	DefaultRatePerHour float64
}

// core is embedded by the services and carries the shared plumbing.
type core struct {
	store      *store.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	clock      func() time.Time
	newID      func() string
	bcryptCost int
	rate       float64
}

func newCore(deps Dependencies) core {
	c := core{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		newID:      deps.NewID,
		bcryptCost: deps.BcryptCost,
		rate:       deps.DefaultRatePerHour,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.bcryptCost == 0 {
		c.bcryptCost = bcrypt.DefaultCost
	}
	if c.rate <= 0 {
		c.rate = 150
	}
	return c
}

func (c core) now() time.Time {
	return c.clock().UTC()
}

// authorizeView hides entities the actor may not see behind NOT_FOUND so
// their existence does not leak.
func authorizeView(actor *domain.User, action policy.Action, target policy.Target, resource string, id string) error {
	if decision := policy.Authorize(actor, action, target); !decision.Allowed {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return nil
}

// authorize turns a policy denial into FORBIDDEN.
func authorize(actor *domain.User, action policy.Action, target policy.Target) error {
	if decision := policy.Authorize(actor, action, target); !decision.Allowed {
		return apperrors.NewForbidden(decision.Reason)
	}
	return nil
}

func (c core) activity(kind domain.ActivityType, actor *domain.User, ticketID string, description string, at time.Time) domain.ActivityItem {
	item := domain.ActivityItem{
		ID:          c.newID(),
		Type:        kind,
		Description: description,
		ActorUserID: actor.ID,
		CreatedAt:   at,
	}
	if ticketID != "" {
		item.TicketID = &ticketID
	}
	return item
}

func (c core) publishEvent(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = c.newID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	_ = c.dispatcher.Publish(ctx, event)
}

// publishActivities forwards committed audit records to the activity sink.
func (c core) publishActivities(ctx context.Context, items []domain.ActivityItem) {
	for _, item := range items {
		c.publishEvent(ctx, events.Event{
			Type:      events.EventActivityRecorded,
			TicketID:  item.TicketRef(),
			ActorID:   item.ActorUserID,
			Timestamp: item.CreatedAt,
			Payload:   events.ActivityRecordedPayload{Activity: item},
		})
	}
}

func projectTickets(tickets []*domain.Ticket, role domain.Role) []*domain.Ticket {
	out := make([]*domain.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, ticket.ProjectFor(role))
	}
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
