package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// InvoiceRepository persists invoice snapshots.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice domain.Invoice) error
	UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus) error
	List(ctx context.Context) ([]domain.Invoice, error)
}

type invoiceRepository struct {
	db DBTX
}

// NewInvoiceRepository builds repository.
func NewInvoiceRepository(db DBTX) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice domain.Invoice) error {
	const query = `
        INSERT INTO invoices (id, organization_id, month, year, tickets_closed, total_hours, rate_per_hour, total_amount, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.db.Exec(ctx, query,
		invoice.ID,
		invoice.OrganizationID,
		invoice.Month,
		invoice.Year,
		invoice.TicketsClosed,
		invoice.TotalHours,
		invoice.RatePerHour,
		invoice.TotalAmount,
		invoice.Status,
		invoice.CreatedAt,
	)
	return err
}

// UpdateStatus is the only mutation: aggregates are frozen at creation.
func (r *invoiceRepository) UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE invoices SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *invoiceRepository) List(ctx context.Context) ([]domain.Invoice, error) {
	const query = `
        SELECT id, organization_id, month, year, tickets_closed, total_hours, rate_per_hour, total_amount, status, created_at
        FROM invoices ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Invoice
	for rows.Next() {
		var invoice domain.Invoice
		if err := rows.Scan(
			&invoice.ID,
			&invoice.OrganizationID,
			&invoice.Month,
			&invoice.Year,
			&invoice.TicketsClosed,
			&invoice.TotalHours,
			&invoice.RatePerHour,
			&invoice.TotalAmount,
			&invoice.Status,
			&invoice.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, invoice)
	}
	return result, rows.Err()
}
