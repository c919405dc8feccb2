package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest payload.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdateProfileRequest payload.
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// CreateUserRequest payload.
type CreateUserRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Role           string  `json:"role"`
	OrganizationID *string `json:"organizationId"`
	Phone          string  `json:"phone"`
}

// UpdateUserRequest payload.
type UpdateUserRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Role           *string `json:"role"`
	OrganizationID *string `json:"organizationId"`
	Phone          *string `json:"phone"`
}

// UserResponse never carries credentials.
type UserResponse struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
	OrganizationID *string     `json:"organizationId"`
	Avatar         string      `json:"avatar"`
	Phone          string      `json:"phone,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// OrganizationRequest is used for create and update.
type OrganizationRequest struct {
	Name         *string `json:"name"`
	Plan         *string `json:"plan"`
	ContactEmail *string `json:"contactEmail"`
}

// OrganizationResponse view.
type OrganizationResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Plan         domain.Plan `json:"plan"`
	ContactEmail string      `json:"contactEmail"`
	CreatedAt    time.Time   `json:"createdAt"`
}
