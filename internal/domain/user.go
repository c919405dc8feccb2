package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// User is any authenticated person: internal staff or a client contact.
// OrganizationID is set exactly when Role is RoleClient.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	OrganizationID *string
	Avatar         string
	Phone          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// DeletedAt marks a retired account. The record stays so that ticket,
	// message and activity references keep resolving.
	DeletedAt *time.Time
}

// OrgID returns the organization id or "" for internal users.
func (u *User) OrgID() string {
	if u == nil || u.OrganizationID == nil {
		return ""
	}
	return *u.OrganizationID
}

// Active reports whether the account can act.
func (u *User) Active() bool {
	return u != nil && u.DeletedAt == nil
}

// BelongsTo reports whether the user is a member of orgID.
func (u *User) BelongsTo(orgID string) bool {
	return orgID != "" && u.OrgID() == orgID
}

// NormalizeOrganization enforces role == client <=> organization != nil.
// Internal roles never carry an organization; a client without one is rejected.
func NormalizeOrganization(role Role, orgID *string) (*string, error) {
	if role != RoleClient {
		return nil, nil
	}
	if orgID == nil || strings.TrimSpace(*orgID) == "" {
		return nil, apperrors.NewInvalidArgument("client users require an organization", map[string]any{"role": role})
	}
	id := strings.TrimSpace(*orgID)
	return &id, nil
}

// AvatarFromName builds the avatar label: up to two upper-cased initials.
func AvatarFromName(name string) string {
	var initials []rune
	for _, word := range strings.Fields(name) {
		initials = append(initials, []rune(word)[0])
		if len(initials) == 2 {
			break
		}
	}
	return strings.ToUpper(string(initials))
}
