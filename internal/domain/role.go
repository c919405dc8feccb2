package domain

import (
	"strings"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// Role enumerates the four fixed roles. Capabilities live in the policy
// package's lookup table, not on the role itself.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleSupportLead  Role = "support-lead"
	RoleSupportStaff Role = "support-staff"
	RoleClient       Role = "client"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleAdmin, RoleSupportLead, RoleSupportStaff, RoleClient}

// ParseRole validates a wire value.
func ParseRole(value string) (Role, error) {
	role := Role(strings.TrimSpace(value))
	switch role {
	case RoleAdmin, RoleSupportLead, RoleSupportStaff, RoleClient:
		return role, nil
	}
	return "", apperrors.NewInvalidArgument("invalid role", map[string]any{"role": value})
}

// IsInternal reports whether the role belongs to the support team.
func (r Role) IsInternal() bool {
	return r == RoleAdmin || r == RoleSupportLead || r == RoleSupportStaff
}
