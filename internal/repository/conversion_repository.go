package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ConversionRepository persists conversion requests and their decisions.
type ConversionRepository interface {
	Create(ctx context.Context, req domain.ConversionRequest) error
	UpdateApprovals(ctx context.Context, req domain.ConversionRequest) error
	ListAll(ctx context.Context) ([]domain.ConversionRequest, error)
}

type conversionRepository struct {
	db DBTX
}

// NewConversionRepository builds repository.
func NewConversionRepository(db DBTX) ConversionRepository {
	return &conversionRepository{db: db}
}

func (r *conversionRepository) Create(ctx context.Context, req domain.ConversionRequest) error {
	const query = `
        INSERT INTO conversion_requests (id, ticket_id, proposed_type, reason, proposed_by, created_at, internal_approval, client_approval)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		req.ID,
		req.TicketID,
		req.ProposedType,
		req.Reason,
		req.ProposedBy,
		req.CreatedAt,
		req.InternalApproval,
		req.ClientApproval,
	)
	return err
}

func (r *conversionRepository) UpdateApprovals(ctx context.Context, req domain.ConversionRequest) error {
	const query = `
        UPDATE conversion_requests SET internal_approval=$1, client_approval=$2
        WHERE id=$3`
	cmd, err := r.db.Exec(ctx, query, req.InternalApproval, req.ClientApproval, req.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *conversionRepository) ListAll(ctx context.Context) ([]domain.ConversionRequest, error) {
	const query = `
        SELECT id, ticket_id, proposed_type, reason, proposed_by, created_at, internal_approval, client_approval
        FROM conversion_requests ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ConversionRequest
	for rows.Next() {
		var req domain.ConversionRequest
		if err := rows.Scan(
			&req.ID,
			&req.TicketID,
			&req.ProposedType,
			&req.Reason,
			&req.ProposedBy,
			&req.CreatedAt,
			&req.InternalApproval,
			&req.ClientApproval,
		); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}
