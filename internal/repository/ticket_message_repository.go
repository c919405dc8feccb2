package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketMessageRepository manages ticket thread messages. Messages are
// append-only, so there is no update.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg domain.Message) error
	ListAll(ctx context.Context) ([]domain.Message, error)
}

type ticketMessageRepository struct {
	db DBTX
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(db DBTX) TicketMessageRepository {
	return &ticketMessageRepository{db: db}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (id, ticket_id, author_id, content, is_internal, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.TicketID, msg.AuthorID, msg.Content, msg.IsInternal, msg.CreatedAt)
	return err
}

func (r *ticketMessageRepository) ListAll(ctx context.Context) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, author_id, content, is_internal, created_at
        FROM ticket_messages ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.TicketID, &msg.AuthorID, &msg.Content, &msg.IsInternal, &msg.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
