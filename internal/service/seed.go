package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// SeedFixture is the bootstrap document loaded by cmd/seed.
type SeedFixture struct {
	Organizations []SeedOrganization `yaml:"organizations"`
	Users         []SeedUser         `yaml:"users"`
}

// SeedOrganization is keyed by name so users can refer to it.
type SeedOrganization struct {
	Name         string `yaml:"name"`
	Plan         string `yaml:"plan"`
	ContactEmail string `yaml:"contactEmail"`
}

type SeedUser struct {
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	Role         string `yaml:"role"`
	Organization string `yaml:"organization"`
	Phone        string `yaml:"phone"`
}

// SeedResult reports what Apply created and what already existed.
type SeedResult struct {
	OrganizationsCreated int
	UsersCreated         int
	UsersSkipped         int
}

// ParseSeedFixture decodes a YAML fixture.
func ParseSeedFixture(data []byte) (*SeedFixture, error) {
	var fixture SeedFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, apperrors.NewInvalidArgument("invalid seed fixture", map[string]any{"error": err.Error()})
	}
	return &fixture, nil
}

// Seeder bootstraps an empty installation. It writes through the store
// directly since there is no admin yet to act as.
type Seeder struct {
	core
}

func NewSeeder(deps Dependencies) *Seeder {
	return &Seeder{core: newCore(deps)}
}

// Apply creates the fixture's organizations and users. Users whose email is
// already taken are skipped so a fixture can be applied repeatedly.
func (s *Seeder) Apply(ctx context.Context, fixture *SeedFixture) (SeedResult, error) {
	var result SeedResult
	orgIDs := map[string]string{}
	for _, org := range s.store.Snapshot().Organizations {
		orgIDs[strings.ToLower(org.Name)] = org.ID
	}

	for _, seed := range fixture.Organizations {
		key := strings.ToLower(strings.TrimSpace(seed.Name))
		if key == "" {
			return result, apperrors.NewInvalidArgument("organization name is required", nil)
		}
		if _, exists := orgIDs[key]; exists {
			continue
		}
		org := domain.Organization{ID: s.newID(), Plan: domain.PlanStarter, CreatedAt: s.now()}
		input := OrganizationInput{Name: &seed.Name, ContactEmail: &seed.ContactEmail}
		if seed.Plan != "" {
			input.Plan = &seed.Plan
		}
		if err := applyOrganizationInput(&org, input); err != nil {
			return result, err
		}
		if err := s.store.CreateOrganization(ctx, org); err != nil {
			return result, err
		}
		orgIDs[key] = org.ID
		result.OrganizationsCreated++
	}

	for _, seed := range fixture.Users {
		email, err := normalizeEmail(seed.Email)
		if err != nil {
			return result, err
		}
		if _, err := s.store.UserByEmail(email); err == nil {
			result.UsersSkipped++
			continue
		}
		role, err := domain.ParseRole(seed.Role)
		if err != nil {
			return result, err
		}
		var orgRef *string
		if seed.Organization != "" {
			id, ok := orgIDs[strings.ToLower(strings.TrimSpace(seed.Organization))]
			if !ok {
				return result, apperrors.NewNotFound("organization", map[string]any{"name": seed.Organization})
			}
			orgRef = &id
		}
		orgID, err := domain.NormalizeOrganization(role, orgRef)
		if err != nil {
			return result, err
		}
		password := seed.Password
		if password == "" {
			password = DefaultPassword
		}
		hash, err := s.hashPassword(password)
		if err != nil {
			return result, err
		}
		now := s.now()
		user := domain.User{
			ID:             s.newID(),
			Name:           strings.TrimSpace(seed.Name),
			Email:          email,
			PasswordHash:   hash,
			Role:           role,
			OrganizationID: orgID,
			Avatar:         domain.AvatarFromName(seed.Name),
			Phone:          seed.Phone,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return result, err
		}
		result.UsersCreated++
	}

	s.logger.Info("seed applied",
		zap.Int("organizations_created", result.OrganizationsCreated),
		zap.Int("users_created", result.UsersCreated),
		zap.Int("users_skipped", result.UsersSkipped))
	return result, nil
}
