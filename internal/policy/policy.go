// Package policy decides whether an actor may perform an action on a target.
// It holds no state: the answer depends only on the arguments.
package policy

import (
	"fmt"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Action names an operation gated by the policy.
type Action string

const (
	ActionCreateTicket           Action = "ticket:create"
	ActionViewTicket             Action = "ticket:view"
	ActionUpdateTicket           Action = "ticket:update"
	ActionAddMessage             Action = "ticket:message"
	ActionAddInternalNote        Action = "ticket:internal-note"
	ActionLogTime                Action = "ticket:log-time"
	ActionRequestConversion      Action = "conversion:request"
	ActionDecideInternalApproval Action = "conversion:decide-internal"
	ActionDecideClientApproval   Action = "conversion:decide-client"
	ActionViewOrganization       Action = "organization:view"
	ActionManageOrganization     Action = "organization:manage"
	ActionViewUser               Action = "user:view"
	ActionManageUser             Action = "user:manage"
	ActionUpdateProfile          Action = "user:update-profile"
	ActionViewInvoice            Action = "invoice:view"
	ActionManageInvoice          Action = "invoice:manage"
	ActionViewDashboard          Action = "dashboard:view"
)

// Scope qualifies a grant.
type Scope int

const (
	ScopeNone Scope = iota
	// ScopeAny grants the action on every target.
	ScopeAny
	// ScopeOwnOrg grants the action only on targets owned by the actor's organization.
	ScopeOwnOrg
	// ScopeSelf grants the action only on the actor's own user record.
	ScopeSelf
)

// capabilities is the single source of truth for role checks. A missing
// entry means ScopeNone.
var capabilities = map[Action]map[domain.Role]Scope{
	ActionCreateTicket: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
		domain.RoleClient:       ScopeOwnOrg,
	},
	ActionViewTicket: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
		domain.RoleClient:       ScopeOwnOrg,
	},
	ActionUpdateTicket: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
	},
	ActionAddMessage: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
		domain.RoleClient:       ScopeOwnOrg,
	},
	ActionAddInternalNote: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
	},
	ActionLogTime: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
	},
	ActionRequestConversion: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
	},
	ActionDecideInternalApproval: {
		domain.RoleAdmin:       ScopeAny,
		domain.RoleSupportLead: ScopeAny,
	},
	ActionDecideClientApproval: {
		domain.RoleClient: ScopeOwnOrg,
	},
	ActionViewOrganization: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
		domain.RoleClient:       ScopeOwnOrg,
	},
	ActionManageOrganization: {
		domain.RoleAdmin: ScopeAny,
	},
	ActionViewUser: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
		domain.RoleClient:       ScopeOwnOrg,
	},
	ActionManageUser: {
		domain.RoleAdmin: ScopeAny,
	},
	ActionUpdateProfile: {
		domain.RoleAdmin:        ScopeSelf,
		domain.RoleSupportLead:  ScopeSelf,
		domain.RoleSupportStaff: ScopeSelf,
		domain.RoleClient:       ScopeSelf,
	},
	ActionViewInvoice: {
		domain.RoleAdmin:  ScopeAny,
		domain.RoleClient: ScopeOwnOrg,
	},
	ActionManageInvoice: {
		domain.RoleAdmin: ScopeAny,
	},
	ActionViewDashboard: {
		domain.RoleAdmin:        ScopeAny,
		domain.RoleSupportLead:  ScopeAny,
		domain.RoleSupportStaff: ScopeAny,
		domain.RoleClient:       ScopeAny,
	},
}

// Target describes the entity an action applies to.
type Target struct {
	OrganizationID string
	AssigneeID     string
	UserID         string
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// ScopeFor returns the grant a role holds for an action.
func ScopeFor(role domain.Role, action Action) Scope {
	return capabilities[action][role]
}

// ApprovalAction maps an approval side to the action that decides it.
func ApprovalAction(side domain.ApprovalSide) Action {
	if side == domain.ApprovalSideClient {
		return ActionDecideClientApproval
	}
	return ActionDecideInternalApproval
}

// Authorize evaluates the capability table for actor, action and target.
func Authorize(actor *domain.User, action Action, target Target) Decision {
	if actor == nil {
		return deny("no actor")
	}
	if !actor.Active() {
		return deny("account %s is deactivated", actor.ID)
	}

	switch ScopeFor(actor.Role, action) {
	case ScopeAny:
		return allow()
	case ScopeOwnOrg:
		if actor.BelongsTo(target.OrganizationID) {
			return allow()
		}
		return deny("%s is limited to its own organization", actor.Role)
	case ScopeSelf:
		if target.UserID != "" && target.UserID == actor.ID {
			return allow()
		}
		return deny("%s may only act on its own profile", actor.Role)
	default:
		return deny("role %s may not perform %s", actor.Role, action)
	}
}

// Can is shorthand for Authorize(...).Allowed.
func Can(actor *domain.User, action Action, target Target) bool {
	return Authorize(actor, action, target).Allowed
}
