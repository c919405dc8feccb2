package store

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Snapshot is a consistent, read-only view of the whole aggregate taken at a
// single point in time. Its values are shared with the store and must not be
// modified.
type Snapshot struct {
	Organizations []*domain.Organization
	Users         []*domain.User
	Invoices      []*domain.Invoice
	Tickets       []*domain.Ticket
	Activities    []domain.ActivityItem

	users   map[string]*domain.User
	tickets map[string]*domain.Ticket
}

// Snapshot captures the current state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Organizations: make([]*domain.Organization, 0, len(s.orgOrder)),
		Users:         make([]*domain.User, 0, len(s.userOrder)),
		Invoices:      make([]*domain.Invoice, 0, len(s.invoiceOrder)),
		Tickets:       make([]*domain.Ticket, 0, len(s.ticketOrder)),
		// Activities only ever grow, so a capped slice header is stable.
		Activities: s.activities[:len(s.activities):len(s.activities)],
		users:      make(map[string]*domain.User, len(s.users)),
		tickets:    make(map[string]*domain.Ticket, len(s.tickets)),
	}
	for _, id := range s.orgOrder {
		snap.Organizations = append(snap.Organizations, s.orgs[id])
	}
	for _, id := range s.userOrder {
		user := s.users[id]
		snap.Users = append(snap.Users, user)
		snap.users[id] = user
	}
	for _, id := range s.invoiceOrder {
		snap.Invoices = append(snap.Invoices, s.invoices[id])
	}
	for _, id := range s.ticketOrder {
		ticket := s.tickets[id].current
		snap.Tickets = append(snap.Tickets, ticket)
		snap.tickets[id] = ticket
	}
	return snap
}

// User resolves a user in the snapshot.
func (s *Snapshot) User(id string) (*domain.User, bool) {
	user, ok := s.users[id]
	return user, ok
}

// Ticket resolves a ticket in the snapshot.
func (s *Snapshot) Ticket(id string) (*domain.Ticket, bool) {
	ticket, ok := s.tickets[id]
	return ticket, ok
}

// TicketFilter narrows ticket projections. Zero fields match everything.
type TicketFilter struct {
	OrganizationID string
	AssigneeID     string
	Status         domain.TicketStatus
	Priority       domain.TicketPriority
	Category       domain.TicketCategory
	Search         string
}

func (f TicketFilter) matches(ticket *domain.Ticket) bool {
	if f.OrganizationID != "" && ticket.OrganizationID != f.OrganizationID {
		return false
	}
	if f.AssigneeID != "" && ticket.AssigneeID() != f.AssigneeID {
		return false
	}
	if f.Status != "" && ticket.Status != f.Status {
		return false
	}
	if f.Priority != "" && ticket.Priority != f.Priority {
		return false
	}
	if f.Category != "" && ticket.Category != f.Category {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		haystack := strings.ToLower(ticket.Title + "\n" + ticket.Description)
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// FilterTickets returns matching tickets, most recently updated first.
func (s *Snapshot) FilterTickets(filter TicketFilter) []*domain.Ticket {
	out := make([]*domain.Ticket, 0)
	for _, ticket := range s.Tickets {
		if filter.matches(ticket) {
			out = append(out, ticket)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// TicketsForOrg is the per-organization projection.
func (s *Snapshot) TicketsForOrg(orgID string) []*domain.Ticket {
	return s.FilterTickets(TicketFilter{OrganizationID: orgID})
}

// TicketsForAssignee is the per-assignee projection.
func (s *Snapshot) TicketsForAssignee(userID string) []*domain.Ticket {
	return s.FilterTickets(TicketFilter{AssigneeID: userID})
}

// Stats aggregates dashboard counters over a set of tickets.
type Stats struct {
	TotalTickets    int
	Open            int
	InProgress      int
	AwaitingClient  int
	Resolved        int
	Closed          int
	TotalHours      float64
	PendingApproval int
	// AvgFirstResponse averages the delay between creation and the first
	// reply written by an internal user, over tickets that have one.
	AvgFirstResponse time.Duration
	Responded        int
}

// ComputeStats derives dashboard counters for the given tickets.
func (s *Snapshot) ComputeStats(tickets []*domain.Ticket) Stats {
	var stats Stats
	var responseTotal time.Duration
	for _, ticket := range tickets {
		stats.TotalTickets++
		switch ticket.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusInProgress:
			stats.InProgress++
		case domain.TicketStatusAwaitingClient:
			stats.AwaitingClient++
		case domain.TicketStatusResolved:
			stats.Resolved++
		case domain.TicketStatusClosed:
			stats.Closed++
		}
		stats.TotalHours += ticket.HoursWorked()
		if ticket.ActiveConversion() != nil {
			stats.PendingApproval++
		}
		if delay, ok := s.firstResponse(ticket); ok {
			responseTotal += delay
			stats.Responded++
		}
	}
	if stats.Responded > 0 {
		stats.AvgFirstResponse = responseTotal / time.Duration(stats.Responded)
	}
	return stats
}

func (s *Snapshot) firstResponse(ticket *domain.Ticket) (time.Duration, bool) {
	for _, msg := range ticket.Messages {
		if msg.IsInternal {
			continue
		}
		author, ok := s.users[msg.AuthorID]
		if !ok || !author.Role.IsInternal() {
			continue
		}
		return msg.CreatedAt.Sub(ticket.CreatedAt), true
	}
	return 0, false
}

// OpenConversions lists open requests on the given tickets, oldest first.
func (s *Snapshot) OpenConversions(tickets []*domain.Ticket) []domain.ConversionRequest {
	out := make([]domain.ConversionRequest, 0)
	for _, ticket := range tickets {
		if req := ticket.ActiveConversion(); req != nil {
			out = append(out, *req)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RecentActivities returns activities accepted by keep, newest first, capped
// at limit when limit > 0.
func (s *Snapshot) RecentActivities(keep func(domain.ActivityItem) bool, limit int) []domain.ActivityItem {
	out := make([]domain.ActivityItem, 0)
	for i := len(s.Activities) - 1; i >= 0; i-- {
		item := s.Activities[i]
		if keep != nil && !keep(item) {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// BillingTotals are the aggregates an invoice freezes for a period.
type BillingTotals struct {
	TicketsClosed int
	TotalHours    float64
}

// BillingTotals sums work for an organization in a calendar month: tickets
// that first reached resolved or closed in the month, and hours from time
// entries dated in the month.
func (s *Snapshot) BillingTotals(orgID string, month, year int) BillingTotals {
	var totals BillingTotals
	inPeriod := func(t time.Time) bool {
		return t.Year() == year && int(t.Month()) == month
	}
	for _, ticket := range s.Tickets {
		if ticket.OrganizationID != orgID {
			continue
		}
		if ticket.ResolvedAt != nil && inPeriod(*ticket.ResolvedAt) {
			totals.TicketsClosed++
		}
		for _, entry := range ticket.TimeEntries {
			if inPeriod(entry.Date) {
				totals.TotalHours += entry.Hours
			}
		}
	}
	return totals
}
