// Package store holds the materialized aggregate: organizations, users,
// tickets, invoices and the activity log.
//
// Published values are immutable. A writer clones the current value, applies
// its change to the clone, persists it and only then swaps the pointer, so a
// failed mutation leaves nothing behind and readers never observe a partial
// update. Each ticket has its own lock; writes to different tickets do not
// contend.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketChange carries the side records produced by a ticket mutation so the
// persister can write them in the same transaction.
type TicketChange struct {
	Message           *domain.Message
	TimeEntry         *domain.TimeEntry
	Conversion        *domain.ConversionRequest
	ConversionCreated bool
	Activities        []domain.ActivityItem
}

// TicketCommit is handed to the Persister for every ticket write.
type TicketCommit struct {
	TicketChange
	Ticket      *domain.Ticket
	PrevVersion int64
	Created     bool
}

// Persister makes committed state durable. Every call happens before the
// new state becomes visible; an error aborts the mutation.
type Persister interface {
	SaveOrganization(ctx context.Context, org domain.Organization, created bool) error
	DeleteOrganization(ctx context.Context, id string) error
	SaveUser(ctx context.Context, user domain.User, created bool) error
	SaveInvoice(ctx context.Context, invoice domain.Invoice, created bool) error
	SaveTicket(ctx context.Context, commit TicketCommit) error
}

// NopPersister keeps everything in memory only.
type NopPersister struct{}

func (NopPersister) SaveOrganization(context.Context, domain.Organization, bool) error { return nil }
func (NopPersister) DeleteOrganization(context.Context, string) error { return nil }
func (NopPersister) SaveUser(context.Context, domain.User, bool) error { return nil }
func (NopPersister) SaveInvoice(context.Context, domain.Invoice, bool) error { return nil }
func (NopPersister) SaveTicket(context.Context, TicketCommit) error { return nil }

type ticketSlot struct {
	// lock serializes writers of this ticket.
	lock sync.Mutex
	// current is read and swapped under Store.mu.
	current *domain.Ticket
}

// Store is the aggregate root of the service.
type Store struct {
	persister Persister

	// dirMu serializes directory writes (organizations, users, invoices) and
	// ticket creation, which must see a stable organization set.
	dirMu sync.Mutex

	mu           sync.RWMutex
	orgs         map[string]*domain.Organization
	orgOrder     []string
	users        map[string]*domain.User
	userOrder    []string
	emails       map[string]string
	invoices     map[string]*domain.Invoice
	invoiceOrder []string
	tickets      map[string]*ticketSlot
	ticketOrder  []string
	conversions  map[string]string
	activities   []domain.ActivityItem
}

// New builds an empty store. A nil persister keeps state in memory only.
func New(persister Persister) *Store {
	if persister == nil {
		persister = NopPersister{}
	}
	return &Store{
		persister:   persister,
		orgs:        make(map[string]*domain.Organization),
		users:       make(map[string]*domain.User),
		emails:      make(map[string]string),
		invoices:    make(map[string]*domain.Invoice),
		tickets:     make(map[string]*ticketSlot),
		conversions: make(map[string]string),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// State is a full dump used to hydrate the store at startup.
type State struct {
	Organizations []domain.Organization
	Users         []domain.User
	Invoices      []domain.Invoice
	Tickets       []*domain.Ticket
	Activities    []domain.ActivityItem
}

// Hydrate replaces the in-memory state. It is meant for startup, before the
// store serves traffic.
func (s *Store) Hydrate(state State) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orgs = make(map[string]*domain.Organization, len(state.Organizations))
	s.orgOrder = nil
	s.users = make(map[string]*domain.User, len(state.Users))
	s.userOrder = nil
	s.emails = make(map[string]string, len(state.Users))
	s.invoices = make(map[string]*domain.Invoice, len(state.Invoices))
	s.invoiceOrder = nil
	s.tickets = make(map[string]*ticketSlot, len(state.Tickets))
	s.ticketOrder = nil
	s.conversions = make(map[string]string)

	for i := range state.Organizations {
		org := state.Organizations[i]
		s.orgs[org.ID] = &org
		s.orgOrder = append(s.orgOrder, org.ID)
	}
	for i := range state.Users {
		user := state.Users[i]
		s.users[user.ID] = &user
		s.userOrder = append(s.userOrder, user.ID)
		if user.Active() {
			s.emails[emailKey(user.Email)] = user.ID
		}
	}
	for i := range state.Invoices {
		invoice := state.Invoices[i]
		s.invoices[invoice.ID] = &invoice
		s.invoiceOrder = append(s.invoiceOrder, invoice.ID)
	}
	for _, ticket := range state.Tickets {
		s.tickets[ticket.ID] = &ticketSlot{current: ticket.Clone()}
		s.ticketOrder = append(s.ticketOrder, ticket.ID)
		for _, req := range ticket.Conversions {
			s.conversions[req.ID] = ticket.ID
		}
	}
	s.activities = append([]domain.ActivityItem(nil), state.Activities...)
}

// Organization returns a copy of the organization.
func (s *Store) Organization(id string) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, apperrors.NewNotFound("organization", map[string]any{"organization_id": id})
	}
	copied := *org
	return &copied, nil
}

// User returns a copy of the user, including retired accounts.
func (s *Store) User(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	copied := *user
	return &copied, nil
}

// UserByEmail finds an active account by email, case-insensitively.
func (s *Store) UserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[emailKey(email)]
	if !ok {
		return nil, apperrors.NewNotFound("user", nil)
	}
	copied := *s.users[id]
	return &copied, nil
}

// Invoice returns a copy of the invoice.
func (s *Store) Invoice(id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.invoices[id]
	if !ok {
		return nil, apperrors.NewNotFound("invoice", map[string]any{"invoice_id": id})
	}
	copied := *invoice
	return &copied, nil
}

// Ticket returns a private copy of the current ticket.
func (s *Store) Ticket(id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return slot.current.Clone(), nil
}

// TicketIDForConversion resolves the ticket owning a conversion request.
func (s *Store) TicketIDForConversion(requestID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticketID, ok := s.conversions[requestID]
	if !ok {
		return "", apperrors.NewNotFound("conversion request", map[string]any{"conversion_request_id": requestID})
	}
	return ticketID, nil
}
