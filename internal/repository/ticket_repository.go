package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketRepository persists the ticket row. Threads, time entries and
// conversion requests live in their own repositories.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	UpdateVersioned(ctx context.Context, ticket *domain.Ticket, prevVersion int64) error
	List(ctx context.Context) ([]*domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, status, priority, category, organization_id, created_by,
            assigned_to, created_at, updated_at, resolved_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.OrganizationID,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.Version,
	)
	return err
}

// UpdateVersioned writes the ticket only if the stored row still carries
// prevVersion.
func (r *ticketRepository) UpdateVersioned(ctx context.Context, ticket *domain.Ticket, prevVersion int64) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, category=$5,
            assigned_to=$6, updated_at=$7, resolved_at=$8, version=$9
        WHERE id=$10 AND version=$11`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.AssignedTo,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.Version,
		ticket.ID,
		prevVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context) ([]*domain.Ticket, error) {
	const query = `
        SELECT id, title, description, status, priority, category, organization_id, created_by,
               assigned_to, created_at, updated_at, resolved_at, version
        FROM tickets ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Category,
			&ticket.OrganizationID,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ResolvedAt,
			&ticket.Version,
		); err != nil {
			return nil, err
		}
		result = append(result, &ticket)
	}
	return result, rows.Err()
}
