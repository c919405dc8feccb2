package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/store"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// PostgresPersister writes store commits to Postgres. Every ticket commit
// (row, side records and activities) runs in one transaction guarded by the
// row version.
type PostgresPersister struct {
	pool *pgxpool.Pool
}

var _ store.Persister = (*PostgresPersister)(nil)

// NewPostgresPersister builds the persister.
func NewPostgresPersister(pool *pgxpool.Pool) *PostgresPersister {
	return &PostgresPersister{pool: pool}
}

func (p *PostgresPersister) SaveOrganization(ctx context.Context, org domain.Organization, created bool) error {
	repo := NewOrganizationRepository(p.pool)
	if created {
		return repo.Create(ctx, org)
	}
	return repo.Update(ctx, org)
}

func (p *PostgresPersister) DeleteOrganization(ctx context.Context, id string) error {
	return NewOrganizationRepository(p.pool).Delete(ctx, id)
}

func (p *PostgresPersister) SaveUser(ctx context.Context, user domain.User, created bool) error {
	repo := NewUserRepository(p.pool)
	if created {
		return repo.Create(ctx, user)
	}
	return repo.Update(ctx, user)
}

func (p *PostgresPersister) SaveInvoice(ctx context.Context, invoice domain.Invoice, created bool) error {
	repo := NewInvoiceRepository(p.pool)
	if created {
		return repo.Create(ctx, invoice)
	}
	return repo.UpdateStatus(ctx, invoice.ID, invoice.Status)
}

func (p *PostgresPersister) SaveTicket(ctx context.Context, commit store.TicketCommit) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tickets := NewTicketRepository(tx)
		if commit.Created {
			if err := tickets.Create(ctx, commit.Ticket); err != nil {
				return err
			}
		} else if err := tickets.UpdateVersioned(ctx, commit.Ticket, commit.PrevVersion); err != nil {
			return err
		}

		if commit.Message != nil {
			if err := NewTicketMessageRepository(tx).Create(ctx, *commit.Message); err != nil {
				return err
			}
		}
		if commit.TimeEntry != nil {
			if err := NewTimeEntryRepository(tx).Create(ctx, *commit.TimeEntry); err != nil {
				return err
			}
		}
		if commit.Conversion != nil {
			conversions := NewConversionRepository(tx)
			if commit.ConversionCreated {
				if err := conversions.Create(ctx, *commit.Conversion); err != nil {
					return err
				}
			} else if err := conversions.UpdateApprovals(ctx, *commit.Conversion); err != nil {
				return err
			}
		}
		return NewActivityRepository(tx).CreateBatch(ctx, commit.Activities)
	})
	if errors.Is(err, ErrVersionConflict) {
		return apperrors.NewConflict("ticket was modified concurrently", map[string]any{
			"ticket_id": commit.Ticket.ID,
			"version":   commit.PrevVersion,
		})
	}
	return err
}
