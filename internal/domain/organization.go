package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// Plan enumerates subscription plans.
type Plan string

const (
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// ParsePlan validates a wire value.
func ParsePlan(value string) (Plan, error) {
	plan := Plan(strings.TrimSpace(value))
	switch plan {
	case PlanStarter, PlanProfessional, PlanEnterprise:
		return plan, nil
	}
	return "", apperrors.NewInvalidArgument("invalid plan", map[string]any{"plan": value})
}

// Organization is a client tenant. Tickets reference it by id for their
// whole lifetime.
type Organization struct {
	ID           string
	Name         string
	Plan         Plan
	ContactEmail string
	CreatedAt    time.Time
}
