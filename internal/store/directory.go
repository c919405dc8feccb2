package store

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// CreateOrganization persists and publishes a new organization.
func (s *Store) CreateOrganization(ctx context.Context, org domain.Organization) error {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	s.mu.RLock()
	_, exists := s.orgs[org.ID]
	s.mu.RUnlock()
	if exists {
		return apperrors.NewConflict("organization already exists", map[string]any{"organization_id": org.ID})
	}
	if err := s.persister.SaveOrganization(ctx, org, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.orgs[org.ID] = &org
	s.orgOrder = append(s.orgOrder, org.ID)
	s.mu.Unlock()
	return nil
}

// UpdateOrganization applies fn to a copy and publishes it on success.
func (s *Store) UpdateOrganization(ctx context.Context, id string, fn func(*domain.Organization) error) (*domain.Organization, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	draft, err := s.Organization(id)
	if err != nil {
		return nil, err
	}
	if err := fn(draft); err != nil {
		return nil, err
	}
	draft.ID = id
	if err := s.persister.SaveOrganization(ctx, *draft, false); err != nil {
		return nil, err
	}

	published := *draft
	s.mu.Lock()
	s.orgs[id] = &published
	s.mu.Unlock()
	return draft, nil
}

// DeleteOrganization removes an organization nothing refers to. Tickets,
// active users and invoices all pin it.
func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	s.mu.RLock()
	_, exists := s.orgs[id]
	refs := s.organizationRefsLocked(id)
	s.mu.RUnlock()
	if !exists {
		return apperrors.NewNotFound("organization", map[string]any{"organization_id": id})
	}
	if len(refs) > 0 {
		return apperrors.NewConflict("organization is still referenced", map[string]any{
			"organization_id": id,
			"references":      refs,
		})
	}
	if err := s.persister.DeleteOrganization(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.orgs, id)
	s.orgOrder = removeID(s.orgOrder, id)
	s.mu.Unlock()
	return nil
}

func (s *Store) organizationRefsLocked(id string) map[string]int {
	refs := map[string]int{}
	for _, slot := range s.tickets {
		if slot.current.OrganizationID == id {
			refs["tickets"]++
		}
	}
	for _, user := range s.users {
		if user.Active() && user.OrgID() == id {
			refs["users"]++
		}
	}
	for _, invoice := range s.invoices {
		if invoice.OrganizationID == id {
			refs["invoices"]++
		}
	}
	return refs
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

// checkUser validates the cross-entity rules of a user record. The
// caller holds dirMu.
func (s *Store) checkUser(user *domain.User) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if owner, taken := s.emails[emailKey(user.Email)]; taken && owner != user.ID && user.Active() {
		return apperrors.NewConflict("email already in use", map[string]any{"email": user.Email})
	}
	if orgID := user.OrgID(); orgID != "" {
		if _, ok := s.orgs[orgID]; !ok {
			return apperrors.NewNotFound("organization", map[string]any{"organization_id": orgID})
		}
	}
	return nil
}

// CreateUser persists and publishes a new user. Email is unique among
// active accounts.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	s.mu.RLock()
	_, exists := s.users[user.ID]
	s.mu.RUnlock()
	if exists {
		return apperrors.NewConflict("user already exists", map[string]any{"user_id": user.ID})
	}
	if err := s.checkUser(&user); err != nil {
		return err
	}
	if err := s.persister.SaveUser(ctx, user, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.users[user.ID] = &user
	s.userOrder = append(s.userOrder, user.ID)
	s.emails[emailKey(user.Email)] = user.ID
	s.mu.Unlock()
	return nil
}

// UpdateUser applies fn to a copy and publishes it on success.
func (s *Store) UpdateUser(ctx context.Context, id string, fn func(*domain.User) error) (*domain.User, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	current, err := s.User(id)
	if err != nil {
		return nil, err
	}
	draft := *current
	if current.OrganizationID != nil {
		orgID := *current.OrganizationID
		draft.OrganizationID = &orgID
	}
	if err := fn(&draft); err != nil {
		return nil, err
	}
	draft.ID = id
	if err := s.checkUser(&draft); err != nil {
		return nil, err
	}
	if err := s.persister.SaveUser(ctx, draft, false); err != nil {
		return nil, err
	}

	published := draft
	s.mu.Lock()
	s.users[id] = &published
	if owner := s.emails[emailKey(current.Email)]; owner == id {
		delete(s.emails, emailKey(current.Email))
	}
	if published.Active() {
		s.emails[emailKey(published.Email)] = id
	}
	s.mu.Unlock()
	return &draft, nil
}

// CreateInvoice persists and publishes a new invoice.
func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) error {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	s.mu.RLock()
	_, orgExists := s.orgs[invoice.OrganizationID]
	s.mu.RUnlock()
	if !orgExists {
		return apperrors.NewNotFound("organization", map[string]any{"organization_id": invoice.OrganizationID})
	}
	if err := s.persister.SaveInvoice(ctx, invoice, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.invoices[invoice.ID] = &invoice
	s.invoiceOrder = append(s.invoiceOrder, invoice.ID)
	s.mu.Unlock()
	return nil
}

// UpdateInvoice applies fn to a copy and publishes it on success.
func (s *Store) UpdateInvoice(ctx context.Context, id string, fn func(*domain.Invoice) error) (*domain.Invoice, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	draft, err := s.Invoice(id)
	if err != nil {
		return nil, err
	}
	if err := fn(draft); err != nil {
		return nil, err
	}
	draft.ID = id
	if err := s.persister.SaveInvoice(ctx, *draft, false); err != nil {
		return nil, err
	}

	published := *draft
	s.mu.Lock()
	s.invoices[id] = &published
	s.mu.Unlock()
	return draft, nil
}
