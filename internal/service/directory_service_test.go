package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestOrganizationCRUD(t *testing.T) {
	f := newFixture(t)

	_, err := f.organizations.CreateOrganization(f.ctx, f.lead, OrganizationInput{Name: ptr("Zed")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = f.organizations.CreateOrganization(f.ctx, f.admin, OrganizationInput{Name: ptr("Zed"), Plan: ptr("platinum")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))

	org, err := f.organizations.CreateOrganization(f.ctx, f.admin, OrganizationInput{Name: ptr("Zed"), ContactEmail: ptr("ops@zed.test")})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStarter, org.Plan)

	updated, err := f.organizations.UpdateOrganization(f.ctx, f.admin, org.ID, OrganizationInput{Plan: ptr("enterprise")})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanEnterprise, updated.Plan)
	assert.Equal(t, "Zed", updated.Name)

	_, err = f.organizations.GetOrganization(f.ctx, f.clientX, org.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	own, err := f.organizations.ListOrganizations(f.ctx, f.clientX)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, f.orgX, own[0].ID)
	all, err := f.organizations.ListOrganizations(f.ctx, f.staff)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, f.organizations.DeleteOrganization(f.ctx, f.admin, org.ID))
	_, err = f.organizations.GetOrganization(f.ctx, f.admin, org.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDeleteReferencedOrganizationConflicts(t *testing.T) {
	f := newFixture(t)
	f.newTicket(t, f.staff, f.orgX, domain.TicketCategoryBug)

	err := f.organizations.DeleteOrganization(f.ctx, f.admin, f.orgX)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	_, err = f.organizations.GetOrganization(f.ctx, f.admin, f.orgX)
	assert.NoError(t, err)
}

func TestCreateUserRules(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.CreateUser(f.ctx, f.admin, UserCreateInput{Name: "No Org", Email: "noorg@desk.test", Role: "client"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))

	_, err = f.users.CreateUser(f.ctx, f.lead, UserCreateInput{Name: "Nope", Email: "nope@desk.test", Role: "support-staff"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.users.CreateUser(f.ctx, f.admin, UserCreateInput{Name: "Dup", Email: "U-STAFF@desk.test", Role: "support-staff"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.users.CreateUser(f.ctx, f.admin, UserCreateInput{Name: "Short", Email: "short@desk.test", Password: "abc", Role: "admin"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))

	_, err = f.users.CreateUser(f.ctx, f.admin, UserCreateInput{Name: "Bad", Email: "not-an-email", Role: "admin"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))

	_, err = f.users.CreateUser(f.ctx, f.admin, UserCreateInput{Name: "Lost", Email: "lost@desk.test", Role: "client", OrganizationID: ptr("org-missing")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	staff, err := f.users.CreateUser(f.ctx, f.admin, UserCreateInput{Name: "Nia Ops", Email: "Nia@Desk.test", Role: "support-staff", OrganizationID: ptr(f.orgX)})
	require.NoError(t, err)
	assert.Nil(t, staff.OrganizationID)
	assert.Equal(t, "NO", staff.Avatar)
	assert.Equal(t, "nia@desk.test", staff.Email)
	assert.NoError(t, auth.ComparePassword(staff.PasswordHash, DefaultPassword))

	client, err := f.users.CreateUser(f.ctx, f.admin, UserCreateInput{Name: "Xander", Email: "xander@x.test", Role: "client", OrganizationID: ptr(f.orgX), Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, f.orgX, client.OrgID())
}

func TestUpdateUserRoleChangeClearsOrganization(t *testing.T) {
	f := newFixture(t)

	promoted, err := f.users.UpdateUser(f.ctx, f.admin, f.clientX.ID, UserUpdateInput{Role: ptr("support-staff")})
	require.NoError(t, err)
	assert.Nil(t, promoted.OrganizationID)

	_, err = f.users.UpdateUser(f.ctx, f.admin, f.staff.ID, UserUpdateInput{Role: ptr("client")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))

	demoted, err := f.users.UpdateUser(f.ctx, f.admin, f.staff.ID, UserUpdateInput{Role: ptr("client"), OrganizationID: ptr(f.orgY)})
	require.NoError(t, err)
	assert.Equal(t, f.orgY, demoted.OrgID())

	renamed, err := f.users.UpdateUser(f.ctx, f.admin, f.staff2.ID, UserUpdateInput{Name: ptr("river song")})
	require.NoError(t, err)
	assert.Equal(t, "RS", renamed.Avatar)

	_, err = f.users.UpdateUser(f.ctx, f.admin, f.admin.ID, UserUpdateInput{Role: ptr("client"), OrganizationID: ptr(f.orgX)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
}

func TestDeleteUserUnassignsOpenTickets(t *testing.T) {
	f := newFixture(t)
	open := f.newTicket(t, f.staff, f.orgX, domain.TicketCategoryBug)
	done := f.newTicket(t, f.staff, f.orgX, domain.TicketCategoryBug)
	for _, id := range []string{open.ID, done.ID} {
		_, err := f.tickets.AssignTicket(f.ctx, f.lead, id, f.staff.ID)
		require.NoError(t, err)
	}
	_, err := f.tickets.UpdateTicketStatus(f.ctx, f.staff, done.ID, "resolved")
	require.NoError(t, err)

	assert.True(t, apperrors.HasCode(f.users.DeleteUser(f.ctx, f.admin, f.admin.ID), apperrors.CodeInvalidArgument))
	assert.True(t, apperrors.HasCode(f.users.DeleteUser(f.ctx, f.lead, f.staff.ID), apperrors.CodeForbidden))

	require.NoError(t, f.users.DeleteUser(f.ctx, f.admin, f.staff.ID))

	gotOpen, err := f.store.Ticket(open.ID)
	require.NoError(t, err)
	assert.Nil(t, gotOpen.AssignedTo)
	gotDone, err := f.store.Ticket(done.ID)
	require.NoError(t, err)
	assert.Equal(t, f.staff.ID, gotDone.AssigneeID())

	_, err = f.users.GetUser(f.ctx, f.admin, f.staff.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	listed, err := f.users.ListUsers(f.ctx, f.admin, "", "")
	require.NoError(t, err)
	for _, user := range listed {
		assert.NotEqual(t, f.staff.ID, user.ID)
	}
	record, err := f.store.User(f.staff.ID)
	require.NoError(t, err)
	assert.NotNil(t, record.DeletedAt)

	_, err = f.tickets.AssignTicket(f.ctx, f.lead, open.ID, f.staff.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
	assert.True(t, apperrors.HasCode(f.users.DeleteUser(f.ctx, f.admin, f.staff.ID), apperrors.CodeNotFound))
}

func TestUserVisibility(t *testing.T) {
	f := newFixture(t)

	visible, err := f.users.ListUsers(f.ctx, f.clientX, "", "")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, f.clientX.ID, visible[0].ID)

	_, err = f.users.GetUser(f.ctx, f.clientX, f.clientY.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	staffOnly, err := f.users.ListUsers(f.ctx, f.lead, "", "support-staff")
	require.NoError(t, err)
	assert.Len(t, staffOnly, 2)

	orgY, err := f.users.ListUsers(f.ctx, f.admin, f.orgY, "")
	require.NoError(t, err)
	require.Len(t, orgY, 1)
	assert.Equal(t, f.clientY.ID, orgY[0].ID)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)

	updated, err := f.users.UpdateProfile(f.ctx, f.clientX, ProfileInput{Name: ptr("Cleo Patra"), Phone: ptr(" +1 555 0100 ")})
	require.NoError(t, err)
	assert.Equal(t, "CP", updated.Avatar)
	assert.Equal(t, "+1 555 0100", updated.Phone)
	assert.Equal(t, domain.RoleClient, updated.Role)

	_, err = f.users.UpdateProfile(f.ctx, f.clientX, ProfileInput{Name: ptr("")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
}

func TestInvoiceAggregatesAndStatus(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t, f.staff, f.orgX, domain.TicketCategoryBug)
	_, err := f.tickets.AddTimeEntry(f.ctx, f.staff, ticket.ID, TimeEntryInput{Hours: 3})
	require.NoError(t, err)
	_, err = f.tickets.AddTimeEntry(f.ctx, f.staff, ticket.ID, TimeEntryInput{Hours: 0.5})
	require.NoError(t, err)
	_, err = f.tickets.UpdateTicketStatus(f.ctx, f.staff, ticket.ID, "closed")
	require.NoError(t, err)

	_, err = f.invoices.CreateInvoice(f.ctx, f.lead, InvoiceInput{OrganizationID: f.orgX, Month: 3, Year: 2026})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = f.invoices.CreateInvoice(f.ctx, f.admin, InvoiceInput{OrganizationID: f.orgX, Month: 13, Year: 2026})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))

	computed, err := f.invoices.CreateInvoice(f.ctx, f.admin, InvoiceInput{OrganizationID: f.orgX, Month: 3, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, computed.TicketsClosed)
	assert.InDelta(t, 3.5, computed.TotalHours, 1e-9)
	assert.InDelta(t, 150, computed.RatePerHour, 1e-9)
	assert.InDelta(t, 525, computed.TotalAmount, 1e-9)
	assert.Equal(t, domain.InvoiceStatusDraft, computed.Status)

	explicit, err := f.invoices.CreateInvoice(f.ctx, f.admin, InvoiceInput{
		OrganizationID: f.orgY, Month: 2, Year: 2026,
		TicketsClosed: ptr(4), TotalHours: ptr(10.333), RatePerHour: ptr(99.99),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1033.2, explicit.TotalAmount, 1e-9)

	// later ticket work does not move a frozen invoice
	_, err = f.tickets.AddTimeEntry(f.ctx, f.staff, ticket.ID, TimeEntryInput{Hours: 8})
	require.NoError(t, err)
	frozen, err := f.invoices.GetInvoice(f.ctx, f.admin, computed.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, frozen.TotalHours, 1e-9)

	paid, err := f.invoices.UpdateInvoiceStatus(f.ctx, f.admin, computed.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	_, err = f.invoices.UpdateInvoiceStatus(f.ctx, f.admin, computed.ID, "sent")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStateTransition))

	_, err = f.invoices.GetInvoice(f.ctx, f.clientY, computed.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	mine, err := f.invoices.ListInvoices(f.ctx, f.clientX, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, computed.ID, mine[0].ID)
	_, err = f.invoices.ListInvoices(f.ctx, f.staff, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	all, err := f.invoices.ListInvoices(f.ctx, f.admin, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, computed.ID, all[0].ID, "newest period first")
}

func TestDashboardStatsAndActivities(t *testing.T) {
	f := newFixture(t)
	x := f.newTicket(t, f.clientX, f.orgX, domain.TicketCategoryBug)
	y := f.newTicket(t, f.staff, f.orgY, domain.TicketCategoryBug)
	_, err := f.tickets.AddMessage(f.ctx, f.staff, x.ID, "on it", false)
	require.NoError(t, err)
	_, err = f.tickets.UpdateTicketStatus(f.ctx, f.staff, y.ID, "resolved")
	require.NoError(t, err)
	_, err = f.conversions.RequestConversion(f.ctx, f.staff, x.ID, "feature", "bigger")
	require.NoError(t, err)
	_, err = f.tickets.AddTimeEntry(f.ctx, f.staff, y.ID, TimeEntryInput{Hours: 1.5})
	require.NoError(t, err)

	stats, err := f.dashboard.Stats(f.ctx, f.lead)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalTickets)
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.PendingApproval)
	assert.Equal(t, 1, stats.Responded)
	assert.True(t, stats.AvgFirstResponse > 0)
	assert.InDelta(t, 1.5, stats.TotalHours, 1e-9)
	assert.Equal(t, stats.TotalTickets, stats.Open+stats.InProgress+stats.AwaitingClient+stats.Resolved+stats.Closed)

	clientStats, err := f.dashboard.Stats(f.ctx, f.clientX)
	require.NoError(t, err)
	assert.Equal(t, 1, clientStats.TotalTickets)
	assert.Zero(t, clientStats.TotalHours)

	feed, err := f.dashboard.Activities(f.ctx, f.lead, 0)
	require.NoError(t, err)
	require.NotEmpty(t, feed)
	assert.Equal(t, domain.ActivityConversionRequested, feed[0].Type)
	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].CreatedAt.After(feed[i-1].CreatedAt))
	}

	limited, err := f.dashboard.Activities(f.ctx, f.lead, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	clientFeed, err := f.dashboard.Activities(f.ctx, f.clientX, 0)
	require.NoError(t, err)
	for _, item := range clientFeed {
		assert.Equal(t, x.ID, item.TicketRef())
	}
	assert.Len(t, clientFeed, 3)

	_, err = f.tickets.AddMessage(f.ctx, f.staff, x.ID, "client is on the legacy plan", true)
	require.NoError(t, err)

	staffFeed, err := f.dashboard.Activities(f.ctx, f.staff, 1)
	require.NoError(t, err)
	require.Len(t, staffFeed, 1)
	assert.Equal(t, domain.ActivityMessageAdded, staffFeed[0].Type)
	assert.True(t, staffFeed[0].Internal)

	clientFeed, err = f.dashboard.Activities(f.ctx, f.clientX, 0)
	require.NoError(t, err)
	assert.Len(t, clientFeed, 3)
	for _, item := range clientFeed {
		assert.False(t, item.Internal)
		assert.NotContains(t, item.Description, "internal note")
	}
}
