package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TimeEntryRepository stores logged hours.
type TimeEntryRepository interface {
	Create(ctx context.Context, entry domain.TimeEntry) error
	ListAll(ctx context.Context) ([]domain.TimeEntry, error)
}

type timeEntryRepository struct {
	db DBTX
}

// NewTimeEntryRepository builds repository.
func NewTimeEntryRepository(db DBTX) TimeEntryRepository {
	return &timeEntryRepository{db: db}
}

func (r *timeEntryRepository) Create(ctx context.Context, entry domain.TimeEntry) error {
	const query = `
        INSERT INTO time_entries (id, ticket_id, author_id, hours, description, work_date, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.AuthorID,
		entry.Hours,
		entry.Description,
		entry.Date,
		entry.CreatedAt,
	)
	return err
}

func (r *timeEntryRepository) ListAll(ctx context.Context) ([]domain.TimeEntry, error) {
	const query = `
        SELECT id, ticket_id, author_id, hours, description, work_date, created_at
        FROM time_entries ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TimeEntry
	for rows.Next() {
		var entry domain.TimeEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.AuthorID,
			&entry.Hours,
			&entry.Description,
			&entry.Date,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
