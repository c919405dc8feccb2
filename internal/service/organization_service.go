package service

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/policy"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// OrganizationService manages client tenants.
type OrganizationService struct {
	core
}

func NewOrganizationService(deps Dependencies) *OrganizationService {
	return &OrganizationService{core: newCore(deps)}
}

// OrganizationInput carries create and update fields. Nil pointers are left
// unchanged on update.
type OrganizationInput struct {
	Name         *string
	Plan         *string
	ContactEmail *string
}

func (s *OrganizationService) CreateOrganization(ctx context.Context, actor *domain.User, input OrganizationInput) (*domain.Organization, error) {
	if err := authorize(actor, policy.ActionManageOrganization, policy.Target{}); err != nil {
		return nil, err
	}
	org := domain.Organization{
		ID:        s.newID(),
		Plan:      domain.PlanStarter,
		CreatedAt: s.now(),
	}
	if input.Name == nil {
		return nil, apperrors.NewInvalidArgument("name is required", nil)
	}
	if err := applyOrganizationInput(&org, input); err != nil {
		return nil, err
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}
	s.logger.Info("organization created", zap.String("organization_id", org.ID), zap.String("actor_id", actor.ID))
	return &org, nil
}

func (s *OrganizationService) UpdateOrganization(ctx context.Context, actor *domain.User, id string, input OrganizationInput) (*domain.Organization, error) {
	if err := authorize(actor, policy.ActionManageOrganization, policy.Target{OrganizationID: id}); err != nil {
		return nil, err
	}
	return s.store.UpdateOrganization(ctx, id, func(org *domain.Organization) error {
		return applyOrganizationInput(org, input)
	})
}

// DeleteOrganization fails with CONFLICT while anything still references the
// organization.
func (s *OrganizationService) DeleteOrganization(ctx context.Context, actor *domain.User, id string) error {
	if err := authorize(actor, policy.ActionManageOrganization, policy.Target{OrganizationID: id}); err != nil {
		return err
	}
	if err := s.store.DeleteOrganization(ctx, id); err != nil {
		return err
	}
	s.logger.Info("organization deleted", zap.String("organization_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (s *OrganizationService) GetOrganization(ctx context.Context, actor *domain.User, id string) (*domain.Organization, error) {
	if err := authorizeView(actor, policy.ActionViewOrganization, policy.Target{OrganizationID: id}, "organization", id); err != nil {
		return nil, err
	}
	return s.store.Organization(id)
}

// ListOrganizations returns the organizations visible to the actor in
// creation order.
func (s *OrganizationService) ListOrganizations(ctx context.Context, actor *domain.User) ([]domain.Organization, error) {
	snap := s.store.Snapshot()
	out := make([]domain.Organization, 0, len(snap.Organizations))
	for _, org := range snap.Organizations {
		if policy.Can(actor, policy.ActionViewOrganization, policy.Target{OrganizationID: org.ID}) {
			out = append(out, *org)
		}
	}
	return out, nil
}

func applyOrganizationInput(org *domain.Organization, input OrganizationInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return apperrors.NewInvalidArgument("name is required", nil)
		}
		org.Name = name
	}
	if input.Plan != nil {
		plan, err := domain.ParsePlan(*input.Plan)
		if err != nil {
			return err
		}
		org.Plan = plan
	}
	if input.ContactEmail != nil {
		email := strings.TrimSpace(*input.ContactEmail)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return apperrors.NewInvalidArgument("invalid contact email", map[string]any{"contact_email": email})
			}
		}
		org.ContactEmail = email
	}
	return nil
}
