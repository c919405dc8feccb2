package service

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/store"
)

// DefaultActivityLimit caps the activity feed when the caller gives no limit.
const DefaultActivityLimit = 50

// DashboardService serves the read-only projections.
type DashboardService struct {
	core
	feedLimit int
}

func NewDashboardService(deps Dependencies, feedLimit int) *DashboardService {
	if feedLimit <= 0 {
		feedLimit = DefaultActivityLimit
	}
	return &DashboardService{core: newCore(deps), feedLimit: feedLimit}
}

// Stats aggregates the tickets visible to the actor. Every counter comes
// from the same snapshot, so the totals always add up.
func (s *DashboardService) Stats(ctx context.Context, actor *domain.User) (store.Stats, error) {
	if err := authorize(actor, policy.ActionViewDashboard, policy.Target{OrganizationID: actor.OrgID()}); err != nil {
		return store.Stats{}, err
	}
	snap := s.store.Snapshot()
	return snap.ComputeStats(visibleTickets(snap, actor)), nil
}

// Activities returns the newest activity items visible to the actor. Clients
// only see activities about their own organization's tickets, and never the
// records left by internal notes.
func (s *DashboardService) Activities(ctx context.Context, actor *domain.User, limit int) ([]domain.ActivityItem, error) {
	if err := authorize(actor, policy.ActionViewDashboard, policy.Target{OrganizationID: actor.OrgID()}); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.feedLimit {
		limit = s.feedLimit
	}
	snap := s.store.Snapshot()
	keep := func(item domain.ActivityItem) bool {
		if actor.Role.IsInternal() {
			return true
		}
		if !item.VisibleTo(actor.Role) {
			return false
		}
		ticket, ok := snap.Ticket(item.TicketRef())
		return ok && policy.Can(actor, policy.ActionViewTicket, policy.Target{OrganizationID: ticket.OrganizationID})
	}
	return snap.RecentActivities(keep, limit), nil
}

func visibleTickets(snap *store.Snapshot, actor *domain.User) []*domain.Ticket {
	out := make([]*domain.Ticket, 0, len(snap.Tickets))
	for _, ticket := range snap.Tickets {
		if policy.Can(actor, policy.ActionViewTicket, policy.Target{OrganizationID: ticket.OrganizationID}) {
			out = append(out, ticket)
		}
	}
	return out
}
