package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-desk/internal/domain"
)

func user(id string, role domain.Role, org string) *domain.User {
	u := &domain.User{ID: id, Role: role}
	if org != "" {
		u.OrganizationID = &org
	}
	return u
}

var (
	admin    = user("admin", domain.RoleAdmin, "")
	lead     = user("lead", domain.RoleSupportLead, "")
	staff    = user("staff", domain.RoleSupportStaff, "")
	clientX  = user("client-x", domain.RoleClient, "org-x")
	clientY  = user("client-y", domain.RoleClient, "org-y")
	orphaned = user("client-none", domain.RoleClient, "")
)

func TestAuthorizeTable(t *testing.T) {
	orgX := Target{OrganizationID: "org-x"}
	cases := []struct {
		name   string
		actor  *domain.User
		action Action
		target Target
		want   bool
	}{
		{"client creates in own org", clientX, ActionCreateTicket, orgX, true},
		{"client creates in other org", clientY, ActionCreateTicket, orgX, false},
		{"staff creates on behalf", staff, ActionCreateTicket, orgX, true},
		{"staff views any ticket", staff, ActionViewTicket, orgX, true},
		{"client views other org ticket", clientY, ActionViewTicket, orgX, false},
		{"client cannot change status", clientX, ActionUpdateTicket, orgX, false},
		{"staff changes status", staff, ActionUpdateTicket, orgX, true},
		{"client cannot post internal note", clientX, ActionAddInternalNote, orgX, false},
		{"client cannot log time", clientX, ActionLogTime, orgX, false},
		{"staff proposes conversion", staff, ActionRequestConversion, orgX, true},
		{"staff cannot decide internal", staff, ActionDecideInternalApproval, orgX, false},
		{"lead decides internal", lead, ActionDecideInternalApproval, orgX, true},
		{"admin decides internal", admin, ActionDecideInternalApproval, orgX, true},
		{"admin cannot decide client", admin, ActionDecideClientApproval, orgX, false},
		{"client decides own org", clientX, ActionDecideClientApproval, orgX, true},
		{"client decides other org", clientY, ActionDecideClientApproval, orgX, false},
		{"client without org", orphaned, ActionDecideClientApproval, Target{}, false},
		{"lead reads organizations", lead, ActionViewOrganization, orgX, true},
		{"lead cannot manage organizations", lead, ActionManageOrganization, orgX, false},
		{"admin manages users", admin, ActionManageUser, Target{UserID: "x"}, true},
		{"lead cannot manage users", lead, ActionManageUser, Target{UserID: "x"}, false},
		{"self profile", clientX, ActionUpdateProfile, Target{UserID: "client-x"}, true},
		{"other profile", clientX, ActionUpdateProfile, Target{UserID: "client-y"}, false},
		{"client reads own invoices", clientX, ActionViewInvoice, orgX, true},
		{"lead cannot read invoices", lead, ActionViewInvoice, orgX, false},
		{"client cannot manage invoices", clientX, ActionManageInvoice, orgX, false},
		{"nil actor", nil, ActionViewDashboard, Target{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Authorize(tc.actor, tc.action, tc.target)
			assert.Equal(t, tc.want, decision.Allowed)
			if !tc.want {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestAuthorizeIsDeterministic(t *testing.T) {
	actors := []*domain.User{admin, lead, staff, clientX, clientY, orphaned}
	targets := []Target{{}, {OrganizationID: "org-x"}, {OrganizationID: "org-y", UserID: "client-y"}}
	for action := range capabilities {
		for _, actor := range actors {
			for _, target := range targets {
				first := Authorize(actor, action, target)
				for i := 0; i < 3; i++ {
					assert.Equal(t, first, Authorize(actor, action, target))
				}
			}
		}
	}
}

func TestDeletedActorIsDenied(t *testing.T) {
	now := time.Now()
	gone := user("gone", domain.RoleAdmin, "")
	gone.DeletedAt = &now
	assert.False(t, Can(gone, ActionViewDashboard, Target{}))
}

func TestApprovalAction(t *testing.T) {
	assert.Equal(t, ActionDecideClientApproval, ApprovalAction(domain.ApprovalSideClient))
	assert.Equal(t, ActionDecideInternalApproval, ApprovalAction(domain.ApprovalSideInternal))
}
