package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/store"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// DefaultPassword is assigned when an admin creates an account without one.
const DefaultPassword = "changeme"

// MinPasswordLength applies to every password set through the services.
const MinPasswordLength = 6

// UserService manages accounts.
type UserService struct {
	core
}

func NewUserService(deps Dependencies) *UserService {
	return &UserService{core: newCore(deps)}
}

// UserCreateInput carries the fields of a new account.
type UserCreateInput struct {
	Name           string
	Email          string
	Password       string
	Role           string
	OrganizationID *string
	Phone          string
}

// UserUpdateInput carries admin edits. Nil pointers are left unchanged.
type UserUpdateInput struct {
	Name           *string
	Email          *string
	Role           *string
	OrganizationID *string
	Phone          *string
}

// ProfileInput is what users may change about themselves.
type ProfileInput struct {
	Name  *string
	Phone *string
}

func (s *UserService) CreateUser(ctx context.Context, actor *domain.User, input UserCreateInput) (*domain.User, error) {
	if err := authorize(actor, policy.ActionManageUser, policy.Target{}); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewInvalidArgument("name is required", nil)
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, err
	}
	orgID, err := domain.NormalizeOrganization(role, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	password := input.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := domain.User{
		ID:             s.newID(),
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		OrganizationID: orgID,
		Avatar:         domain.AvatarFromName(name),
		Phone:          strings.TrimSpace(input.Phone),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(role)), zap.String("actor_id", actor.ID))
	return &user, nil
}

// UpdateUser applies admin edits. Moving a user to an internal role drops
// the organization.
func (s *UserService) UpdateUser(ctx context.Context, actor *domain.User, id string, input UserUpdateInput) (*domain.User, error) {
	if err := authorize(actor, policy.ActionManageUser, policy.Target{UserID: id}); err != nil {
		return nil, err
	}
	current, err := s.store.User(id)
	if err != nil {
		return nil, err
	}
	if !current.Active() {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}

	return s.store.UpdateUser(ctx, id, func(user *domain.User) error {
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return apperrors.NewInvalidArgument("name is required", nil)
			}
			user.Name = name
			user.Avatar = domain.AvatarFromName(name)
		}
		if input.Email != nil {
			email, err := normalizeEmail(*input.Email)
			if err != nil {
				return err
			}
			user.Email = email
		}
		if input.Phone != nil {
			user.Phone = strings.TrimSpace(*input.Phone)
		}
		if input.Role != nil {
			role, err := domain.ParseRole(*input.Role)
			if err != nil {
				return err
			}
			if id == actor.ID && role != user.Role {
				return apperrors.NewInvalidArgument("cannot change your own role", nil)
			}
			user.Role = role
		}
		orgID := user.OrganizationID
		if input.OrganizationID != nil {
			orgID = input.OrganizationID
		}
		normalized, err := domain.NormalizeOrganization(user.Role, orgID)
		if err != nil {
			return err
		}
		user.OrganizationID = normalized
		user.UpdatedAt = s.now()
		return nil
	})
}

// DeleteUser retires an account. The record is kept so history still
// resolves, and tickets still being worked lose the user as assignee.
func (s *UserService) DeleteUser(ctx context.Context, actor *domain.User, id string) error {
	if err := authorize(actor, policy.ActionManageUser, policy.Target{UserID: id}); err != nil {
		return err
	}
	if id == actor.ID {
		return apperrors.NewInvalidArgument("cannot delete your own account", nil)
	}
	current, err := s.store.User(id)
	if err != nil {
		return err
	}
	if !current.Active() {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}

	if _, err := s.store.UpdateUser(ctx, id, func(user *domain.User) error {
		now := s.now()
		user.DeletedAt = &now
		user.UpdatedAt = now
		return nil
	}); err != nil {
		return err
	}

	unassigned := s.unassignTickets(ctx, actor, id)
	s.logger.Info("user deleted",
		zap.String("user_id", id),
		zap.String("actor_id", actor.ID),
		zap.Int("tickets_unassigned", unassigned),
	)
	return nil
}

// unassignTickets visits every ticket still being worked. Taking each ticket
// lock after the deletion is published means an assignment that raced the
// deletion has either committed already or will see the inactive user.
func (s *UserService) unassignTickets(ctx context.Context, actor *domain.User, userID string) int {
	count := 0
	for _, ticket := range s.store.Snapshot().Tickets {
		if ticket.Status.IsTerminal() {
			continue
		}
		updated, change, err := s.store.MutateTicket(ctx, ticket.ID, func(t *domain.Ticket) (store.TicketChange, error) {
			if t.AssigneeID() != userID || t.Status.IsTerminal() {
				return store.TicketChange{}, errNoChanges
			}
			if err := t.Assign("", s.now()); err != nil {
				return store.TicketChange{}, err
			}
			return store.TicketChange{
				Activities: []domain.ActivityItem{s.activity(domain.ActivityTicketUpdated, actor, t.ID, "Ticket unassigned after account removal", t.UpdatedAt)},
			}, nil
		})
		if errors.Is(err, errNoChanges) {
			continue
		}
		if err != nil {
			s.logger.Warn("failed to unassign ticket", zap.String("ticket_id", ticket.ID), zap.String("user_id", userID), zap.Error(err))
			continue
		}
		count++
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: updated.ID,
			ActorID:  actor.ID,
			Payload:  events.TicketAssignedPayload{AssigneeID: nil},
		})
		s.publishActivities(ctx, change.Activities)
	}
	return count
}

// GetUser hides deleted accounts and users outside the actor's reach.
func (s *UserService) GetUser(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	user, err := s.store.User(id)
	if err != nil {
		return nil, err
	}
	if !user.Active() {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	if err := authorizeView(actor, policy.ActionViewUser, policy.Target{OrganizationID: user.OrgID(), UserID: id}, "user", id); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns active accounts visible to the actor, optionally
// narrowed to one organization or role.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.User, orgID, role string) ([]domain.User, error) {
	snap := s.store.Snapshot()
	out := make([]domain.User, 0, len(snap.Users))
	for _, user := range snap.Users {
		if !user.Active() {
			continue
		}
		if orgID != "" && user.OrgID() != orgID {
			continue
		}
		if role != "" && string(user.Role) != role {
			continue
		}
		if !policy.Can(actor, policy.ActionViewUser, policy.Target{OrganizationID: user.OrgID(), UserID: user.ID}) {
			continue
		}
		out = append(out, *user)
	}
	return out, nil
}

// UpdateProfile lets any user change their own display details.
func (s *UserService) UpdateProfile(ctx context.Context, actor *domain.User, input ProfileInput) (*domain.User, error) {
	if err := authorize(actor, policy.ActionUpdateProfile, policy.Target{UserID: actor.ID}); err != nil {
		return nil, err
	}
	return s.store.UpdateUser(ctx, actor.ID, func(user *domain.User) error {
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return apperrors.NewInvalidArgument("name is required", nil)
			}
			user.Name = name
			user.Avatar = domain.AvatarFromName(name)
		}
		if input.Phone != nil {
			user.Phone = strings.TrimSpace(*input.Phone)
		}
		user.UpdatedAt = s.now()
		return nil
	})
}

func (c core) hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", apperrors.NewInvalidArgument("password must be at least 6 characters", nil)
	}
	hash, err := auth.HashPassword(password, c.bcryptCost)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

func normalizeEmail(value string) (string, error) {
	email := strings.TrimSpace(value)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.NewInvalidArgument("invalid email", map[string]any{"email": value})
	}
	return strings.ToLower(email), nil
}
