package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/store"
)

// Load reads the full aggregate so the store can be hydrated at startup.
func Load(ctx context.Context, pool *pgxpool.Pool) (store.State, error) {
	var state store.State
	var err error

	if state.Organizations, err = NewOrganizationRepository(pool).List(ctx); err != nil {
		return state, fmt.Errorf("load organizations: %w", err)
	}
	if state.Users, err = NewUserRepository(pool).List(ctx); err != nil {
		return state, fmt.Errorf("load users: %w", err)
	}
	if state.Invoices, err = NewInvoiceRepository(pool).List(ctx); err != nil {
		return state, fmt.Errorf("load invoices: %w", err)
	}
	if state.Activities, err = NewActivityRepository(pool).ListAll(ctx); err != nil {
		return state, fmt.Errorf("load activities: %w", err)
	}
	if state.Tickets, err = NewTicketRepository(pool).List(ctx); err != nil {
		return state, fmt.Errorf("load tickets: %w", err)
	}

	byID := make(map[string]*domain.Ticket, len(state.Tickets))
	for _, ticket := range state.Tickets {
		byID[ticket.ID] = ticket
	}

	messages, err := NewTicketMessageRepository(pool).ListAll(ctx)
	if err != nil {
		return state, fmt.Errorf("load messages: %w", err)
	}
	for _, msg := range messages {
		if ticket, ok := byID[msg.TicketID]; ok {
			ticket.Messages = append(ticket.Messages, msg)
		}
	}

	entries, err := NewTimeEntryRepository(pool).ListAll(ctx)
	if err != nil {
		return state, fmt.Errorf("load time entries: %w", err)
	}
	for _, entry := range entries {
		if ticket, ok := byID[entry.TicketID]; ok {
			ticket.TimeEntries = append(ticket.TimeEntries, entry)
		}
	}

	conversions, err := NewConversionRepository(pool).ListAll(ctx)
	if err != nil {
		return state, fmt.Errorf("load conversion requests: %w", err)
	}
	for _, req := range conversions {
		if ticket, ok := byID[req.TicketID]; ok {
			ticket.Conversions = append(ticket.Conversions, req)
		}
	}
	return state, nil
}
