package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type failingPersister struct {
	NopPersister
	fail bool
}

func (p *failingPersister) SaveTicket(context.Context, TicketCommit) error {
	if p.fail {
		return errors.New("disk on fire")
	}
	return nil
}

func seeded(t *testing.T, persister Persister) *Store {
	t.Helper()
	s := New(persister)
	ctx := context.Background()
	require.NoError(t, s.CreateOrganization(ctx, domain.Organization{ID: "org-x", Name: "X", Plan: domain.PlanStarter}))
	require.NoError(t, s.CreateOrganization(ctx, domain.Organization{ID: "org-y", Name: "Y", Plan: domain.PlanEnterprise}))
	require.NoError(t, s.CreateUser(ctx, domain.User{ID: "staff", Email: "staff@desk.io", Role: domain.RoleSupportStaff}))
	for i, org := range []string{"org-x", "org-y"} {
		_, err := s.CreateTicket(ctx, &domain.Ticket{
			ID:             fmt.Sprintf("t-%d", i+1),
			Title:          "Ticket " + org,
			Status:         domain.TicketStatusOpen,
			Priority:       domain.TicketPriorityLow,
			Category:       domain.TicketCategoryBug,
			OrganizationID: org,
			CreatedAt:      t0,
			UpdatedAt:      t0,
		}, []domain.ActivityItem{{ID: fmt.Sprintf("a-%d", i), Type: domain.ActivityTicketCreated}})
		require.NoError(t, err)
	}
	return s
}

func TestCreateTicketRequiresOrganization(t *testing.T) {
	s := New(nil)
	_, err := s.CreateTicket(context.Background(), &domain.Ticket{ID: "t", OrganizationID: "missing"}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestMutateTicketSerializesSameTicket(t *testing.T) {
	s := seeded(t, nil)
	const writers = 64

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.MutateTicket(context.Background(), "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
				msg := domain.Message{ID: fmt.Sprintf("m-%d", i), TicketID: ticket.ID}
				ticket.AppendMessage(msg, t0)
				return TicketChange{Message: &msg}, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	ticket, err := s.Ticket("t-1")
	require.NoError(t, err)
	assert.Len(t, ticket.Messages, writers)
	assert.Equal(t, int64(writers+1), ticket.Version)
}

func TestMutateTicketDifferentTicketsDoNotBlock(t *testing.T) {
	s := seeded(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _, _ = s.MutateTicket(context.Background(), "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
			close(entered)
			<-release
			return TicketChange{}, nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		_, _, err := s.MutateTicket(context.Background(), "t-2", func(ticket *domain.Ticket) (TicketChange, error) {
			return TicketChange{}, ticket.TransitionTo(domain.TicketStatusInProgress, t0.Add(time.Minute))
		})
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mutation of t-2 blocked behind t-1")
	}
	close(release)
}

func TestMutateTicketFailureLeavesStateUntouched(t *testing.T) {
	persister := &failingPersister{}
	s := seeded(t, persister)
	activitiesBefore := len(s.Snapshot().Activities)

	_, _, err := s.MutateTicket(context.Background(), "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
		return TicketChange{}, ticket.TransitionTo(domain.TicketStatusClosed, t0.Add(time.Hour))
	})
	require.NoError(t, err)

	_, _, err = s.MutateTicket(context.Background(), "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
		return TicketChange{}, ticket.TransitionTo(domain.TicketStatusOpen, t0.Add(2*time.Hour))
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStateTransition))

	persister.fail = true
	_, _, err = s.MutateTicket(context.Background(), "t-2", func(ticket *domain.Ticket) (TicketChange, error) {
		ticket.Title = "changed"
		return TicketChange{Activities: []domain.ActivityItem{{ID: "lost"}}}, nil
	})
	require.Error(t, err)

	after, err := s.Ticket("t-2")
	require.NoError(t, err)
	assert.Equal(t, "Ticket org-y", after.Title)
	assert.Equal(t, int64(1), after.Version)
	assert.Equal(t, activitiesBefore, len(s.Snapshot().Activities))
}

func TestSnapshotIsStable(t *testing.T) {
	s := seeded(t, nil)
	snap := s.Snapshot()

	_, _, err := s.MutateTicket(context.Background(), "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
		return TicketChange{Activities: []domain.ActivityItem{{ID: "later"}}}, ticket.TransitionTo(domain.TicketStatusResolved, t0.Add(time.Hour))
	})
	require.NoError(t, err)

	old, ok := snap.Ticket("t-1")
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusOpen, old.Status)
	assert.Len(t, snap.Activities, 2)

	stats := snap.ComputeStats(snap.Tickets)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, 1, s.Snapshot().ComputeStats(s.Snapshot().Tickets).Resolved)
}

func TestDeleteOrganizationRejectedWhileReferenced(t *testing.T) {
	s := seeded(t, nil)
	ctx := context.Background()

	err := s.DeleteOrganization(ctx, "org-x")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	require.NoError(t, s.CreateOrganization(ctx, domain.Organization{ID: "org-z", Name: "Z"}))
	require.NoError(t, s.DeleteOrganization(ctx, "org-z"))
	_, err = s.Organization("org-z")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestEmailUniqueAmongActiveUsers(t *testing.T) {
	s := seeded(t, nil)
	ctx := context.Background()

	err := s.CreateUser(ctx, domain.User{ID: "dup", Email: "STAFF@desk.io", Role: domain.RoleAdmin})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = s.UpdateUser(ctx, "staff", func(u *domain.User) error {
		now := t0
		u.DeletedAt = &now
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(ctx, domain.User{ID: "dup", Email: "staff@desk.io", Role: domain.RoleAdmin}))

	found, err := s.UserByEmail("Staff@Desk.io")
	require.NoError(t, err)
	assert.Equal(t, "dup", found.ID)
}

func TestClientUserNeedsExistingOrganization(t *testing.T) {
	s := New(nil)
	org := "ghost"
	err := s.CreateUser(context.Background(), domain.User{ID: "c", Email: "c@x.io", Role: domain.RoleClient, OrganizationID: &org})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestFilterAndBillingTotals(t *testing.T) {
	s := seeded(t, nil)
	_, _, err := s.MutateTicket(context.Background(), "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
		if err := ticket.AppendTimeEntry(domain.TimeEntry{ID: "e1", Hours: 3, Date: t0}, t0); err != nil {
			return TicketChange{}, err
		}
		return TicketChange{}, ticket.TransitionTo(domain.TicketStatusResolved, t0.Add(time.Hour))
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.TicketsForOrg("org-x"), 1)
	assert.Len(t, snap.FilterTickets(TicketFilter{Search: "ORG-Y"}), 1)
	assert.Empty(t, snap.TicketsForAssignee("staff"))

	totals := snap.BillingTotals("org-x", 5, 2026)
	assert.Equal(t, 1, totals.TicketsClosed)
	assert.InDelta(t, 3.0, totals.TotalHours, 1e-9)
	assert.Zero(t, snap.BillingTotals("org-x", 6, 2026).TicketsClosed)
}

func TestBillingTotalsCountResolutionMonth(t *testing.T) {
	s := seeded(t, nil)
	ctx := context.Background()
	march := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC)

	_, _, err := s.MutateTicket(ctx, "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
		return TicketChange{}, ticket.TransitionTo(domain.TicketStatusResolved, march)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Snapshot().BillingTotals("org-x", 3, 2026).TicketsClosed)

	_, _, err = s.MutateTicket(ctx, "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
		msg := domain.Message{ID: "m1", TicketID: ticket.ID, Content: "thanks", CreatedAt: april}
		ticket.AppendMessage(msg, april)
		return TicketChange{Message: &msg}, nil
	})
	require.NoError(t, err)
	_, _, err = s.MutateTicket(ctx, "t-1", func(ticket *domain.Ticket) (TicketChange, error) {
		return TicketChange{}, ticket.TransitionTo(domain.TicketStatusClosed, april.Add(time.Hour))
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.BillingTotals("org-x", 3, 2026).TicketsClosed)
	assert.Zero(t, snap.BillingTotals("org-x", 4, 2026).TicketsClosed)
}

func TestHydrateIndexesConversions(t *testing.T) {
	s := New(nil)
	s.Hydrate(State{
		Organizations: []domain.Organization{{ID: "org-x"}},
		Tickets: []*domain.Ticket{{
			ID:             "t-9",
			OrganizationID: "org-x",
			Version:        4,
			Conversions:    []domain.ConversionRequest{{ID: "cr-1", TicketID: "t-9"}},
		}},
	})

	ticketID, err := s.TicketIDForConversion("cr-1")
	require.NoError(t, err)
	assert.Equal(t, "t-9", ticketID)
}
