package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ActivityRepository stores the audit trail.
type ActivityRepository interface {
	CreateBatch(ctx context.Context, items []domain.ActivityItem) error
	ListAll(ctx context.Context) ([]domain.ActivityItem, error)
}

type activityRepository struct {
	db DBTX
}

// NewActivityRepository builds repository.
func NewActivityRepository(db DBTX) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) CreateBatch(ctx context.Context, items []domain.ActivityItem) error {
	if len(items) == 0 {
		return nil
	}
	const query = `
        INSERT INTO activities (id, type, description, actor_user_id, ticket_id, is_internal, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, item.ID, item.Type, item.Description, item.ActorUserID, item.TicketID, item.Internal, item.CreatedAt)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

func (r *activityRepository) ListAll(ctx context.Context) ([]domain.ActivityItem, error) {
	const query = `
        SELECT id, type, description, actor_user_id, ticket_id, is_internal, created_at
        FROM activities ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActivityItem
	for rows.Next() {
		var item domain.ActivityItem
		if err := rows.Scan(&item.ID, &item.Type, &item.Description, &item.ActorUserID, &item.TicketID, &item.Internal, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
