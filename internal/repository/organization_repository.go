package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// OrganizationRepository persists client organizations.
type OrganizationRepository interface {
	Create(ctx context.Context, org domain.Organization) error
	Update(ctx context.Context, org domain.Organization) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Organization, error)
}

type organizationRepository struct {
	db DBTX
}

// NewOrganizationRepository returns a Postgres-backed implementation.
func NewOrganizationRepository(db DBTX) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) Create(ctx context.Context, org domain.Organization) error {
	const query = `
        INSERT INTO organizations (id, name, plan, contact_email, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.Exec(ctx, query, org.ID, org.Name, org.Plan, org.ContactEmail, org.CreatedAt)
	return err
}

func (r *organizationRepository) Update(ctx context.Context, org domain.Organization) error {
	const query = `
        UPDATE organizations SET name=$1, plan=$2, contact_email=$3
        WHERE id=$4`
	cmd, err := r.db.Exec(ctx, query, org.Name, org.Plan, org.ContactEmail, org.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *organizationRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *organizationRepository) List(ctx context.Context) ([]domain.Organization, error) {
	const query = `
        SELECT id, name, plan, contact_email, created_at
        FROM organizations ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Organization
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Plan, &org.ContactEmail, &org.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, org)
	}
	return result, rows.Err()
}
