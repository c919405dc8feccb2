package store

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// CreateTicket persists and publishes a new ticket with its creation
// activities. The owning organization must exist.
func (s *Store) CreateTicket(ctx context.Context, ticket *domain.Ticket, activities []domain.ActivityItem) (*domain.Ticket, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	s.mu.RLock()
	_, orgExists := s.orgs[ticket.OrganizationID]
	_, dup := s.tickets[ticket.ID]
	s.mu.RUnlock()
	if !orgExists {
		return nil, apperrors.NewNotFound("organization", map[string]any{"organization_id": ticket.OrganizationID})
	}
	if dup {
		return nil, apperrors.NewConflict("ticket already exists", map[string]any{"ticket_id": ticket.ID})
	}

	draft := ticket.Clone()
	draft.Version = 1
	commit := TicketCommit{
		TicketChange: TicketChange{Activities: activities},
		Ticket:       draft,
		Created:      true,
	}
	if err := s.persister.SaveTicket(ctx, commit); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tickets[draft.ID] = &ticketSlot{current: draft}
	s.ticketOrder = append(s.ticketOrder, draft.ID)
	s.activities = append(s.activities, activities...)
	s.mu.Unlock()
	return draft.Clone(), nil
}

// MutateFunc edits a private copy of a ticket. Returning an error discards
// the copy.
type MutateFunc func(ticket *domain.Ticket) (TicketChange, error)

// MutateTicket runs fn under the ticket's exclusive lock, persists the result
// and publishes it. Concurrent calls on the same ticket are serialized; calls
// on different tickets proceed independently.
func (s *Store) MutateTicket(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, TicketChange, error) {
	s.mu.RLock()
	slot, ok := s.tickets[id]
	s.mu.RUnlock()
	if !ok {
		return nil, TicketChange{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}

	slot.lock.Lock()
	defer slot.lock.Unlock()

	s.mu.RLock()
	current := slot.current
	s.mu.RUnlock()

	draft := current.Clone()
	change, err := fn(draft)
	if err != nil {
		return nil, TicketChange{}, err
	}
	draft.ID = current.ID
	draft.OrganizationID = current.OrganizationID
	draft.Version = current.Version + 1

	commit := TicketCommit{TicketChange: change, Ticket: draft, PrevVersion: current.Version}
	if err := s.persister.SaveTicket(ctx, commit); err != nil {
		return nil, TicketChange{}, err
	}

	s.mu.Lock()
	slot.current = draft
	if change.ConversionCreated && change.Conversion != nil {
		s.conversions[change.Conversion.ID] = draft.ID
	}
	s.activities = append(s.activities, change.Activities...)
	s.mu.Unlock()
	return draft.Clone(), change, nil
}
