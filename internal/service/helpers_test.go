package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/store"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// stepClock advances one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type sequence struct {
	mu sync.Mutex
	n  int
}

func (s *sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%04d", s.n)
}

type fixture struct {
	ctx        context.Context
	store      *store.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	deps       Dependencies

	tickets       *TicketService
	conversions   *ConversionService
	organizations *OrganizationService
	users         *UserService
	invoices      *InvoiceService
	dashboard     *DashboardService

	orgX, orgY                 string
	admin, lead, staff, staff2 *domain.User
	clientX, clientY           *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &stepClock{now: epoch}
	ids := &sequence{}
	f := &fixture{
		ctx:        context.Background(),
		store:      store.New(nil),
		dispatcher: events.NewInMemoryDispatcher(nil),
		metrics:    observability.NewMetrics(),
		orgX:       "org-x",
		orgY:       "org-y",
	}
	f.deps = Dependencies{
		Store:      f.store,
		Dispatcher: f.dispatcher,
		Metrics:    f.metrics,
		Clock:      clock.Now,
		NewID:      ids.Next,
		BcryptCost: bcrypt.MinCost,
	}
	f.tickets = NewTicketService(f.deps)
	f.conversions = NewConversionService(f.deps)
	f.organizations = NewOrganizationService(f.deps)
	f.users = NewUserService(f.deps)
	f.invoices = NewInvoiceService(f.deps)
	f.dashboard = NewDashboardService(f.deps, 0)

	require.NoError(t, f.store.CreateOrganization(f.ctx, domain.Organization{ID: f.orgX, Name: "Xylo", Plan: domain.PlanProfessional}))
	require.NoError(t, f.store.CreateOrganization(f.ctx, domain.Organization{ID: f.orgY, Name: "Yew", Plan: domain.PlanStarter}))

	f.admin = f.addUser(t, "u-admin", "Ada Admin", domain.RoleAdmin, "")
	f.lead = f.addUser(t, "u-lead", "Lee Lead", domain.RoleSupportLead, "")
	f.staff = f.addUser(t, "u-staff", "Sam Staff", domain.RoleSupportStaff, "")
	f.staff2 = f.addUser(t, "u-staff2", "Sky Staff", domain.RoleSupportStaff, "")
	f.clientX = f.addUser(t, "u-client-x", "Cleo X", domain.RoleClient, f.orgX)
	f.clientY = f.addUser(t, "u-client-y", "Cal Y", domain.RoleClient, f.orgY)
	return f
}

func (f *fixture) addUser(t *testing.T, id, name string, role domain.Role, orgID string) *domain.User {
	t.Helper()
	user := domain.User{
		ID:        id,
		Name:      name,
		Email:     id + "@desk.test",
		Role:      role,
		Avatar:    domain.AvatarFromName(name),
		CreatedAt: epoch,
		UpdatedAt: epoch,
	}
	if orgID != "" {
		user.OrganizationID = &orgID
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user.PasswordHash = string(hash)
	require.NoError(t, f.store.CreateUser(f.ctx, user))
	return &user
}

func (f *fixture) newTicket(t *testing.T, actor *domain.User, orgID string, category domain.TicketCategory) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(f.ctx, actor, TicketCreateInput{
		Title:          "Printer jam",
		Description:    "Tray 2 keeps jamming",
		Category:       string(category),
		OrganizationID: orgID,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) activityTypes(ticketID string) []domain.ActivityType {
	var out []domain.ActivityType
	for _, item := range f.store.Snapshot().Activities {
		if item.TicketRef() == ticketID {
			out = append(out, item.Type)
		}
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
