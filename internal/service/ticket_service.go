package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/store"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	core
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	return &TicketService{core: newCore(deps)}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title          string
	Description    string
	Priority       string
	Category       string
	OrganizationID string
}

// TicketListFilter describes listing filters. Clients are always narrowed to
// their own organization.
type TicketListFilter struct {
	store.TicketFilter
	Limit  int
	Offset int
}

// TicketUpdateInput describes a combined update. Nil fields are left alone;
// ClearAssignee unassigns.
type TicketUpdateInput struct {
	Status        *string
	Priority      *string
	AssignedTo    *string
	ClearAssignee bool
}

// TimeEntryInput describes logged work. A zero Date means today.
type TimeEntryInput struct {
	Hours       float64
	Description string
	Date        time.Time
}

// CreateTicket opens a ticket for an organization. Clients may omit the
// organization; it defaults to their own.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	orgID := strings.TrimSpace(input.OrganizationID)
	if orgID == "" && actor.Role == domain.RoleClient {
		orgID = actor.OrgID()
	}
	if orgID == "" {
		return nil, apperrors.NewInvalidArgument("organizationId is required", nil)
	}
	if err := authorize(actor, policy.ActionCreateTicket, policy.Target{OrganizationID: orgID}); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewInvalidArgument("title is required", nil)
	}
	priority := domain.TicketPriorityMedium
	if input.Priority != "" {
		parsed, err := domain.ParseTicketPriority(input.Priority)
		if err != nil {
			return nil, err
		}
		priority = parsed
	}
	category := domain.TicketCategorySupport
	if input.Category != "" {
		parsed, err := domain.ParseTicketCategory(input.Category)
		if err != nil {
			return nil, err
		}
		category = parsed
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:             s.newID(),
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Status:         domain.TicketStatusOpen,
		Priority:       priority,
		Category:       category,
		OrganizationID: orgID,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	activities := []domain.ActivityItem{
		s.activity(domain.ActivityTicketCreated, actor, ticket.ID, fmt.Sprintf("Ticket created: %s", title), now),
	}

	created, err := s.store.CreateTicket(ctx, ticket, activities)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: created.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			OrganizationID: created.OrganizationID,
			Priority:       created.Priority,
			Category:       created.Category,
			Title:          created.Title,
		},
	})
	s.publishActivities(ctx, activities)
	return created.ProjectFor(actor.Role), nil
}

// GetTicket returns the ticket as the actor may see it.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(actor, ticketID)
	if err != nil {
		return nil, err
	}
	return ticket.ProjectFor(actor.Role), nil
}

// ListTickets filters the tickets visible to the actor over one snapshot.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]*domain.Ticket, int, error) {
	if actor.Role == domain.RoleClient {
		if filter.OrganizationID != "" && filter.OrganizationID != actor.OrgID() {
			return []*domain.Ticket{}, 0, nil
		}
		filter.OrganizationID = actor.OrgID()
		if filter.OrganizationID == "" {
			return []*domain.Ticket{}, 0, nil
		}
	}

	snap := s.store.Snapshot()
	matched := snap.FilterTickets(filter.TicketFilter)
	visible := make([]*domain.Ticket, 0, len(matched))
	for _, ticket := range matched {
		if policy.Can(actor, policy.ActionViewTicket, policy.Target{OrganizationID: ticket.OrganizationID}) {
			visible = append(visible, ticket)
		}
	}
	return projectTickets(paginate(visible, filter.Limit, filter.Offset), actor.Role), len(visible), nil
}

// TicketsForOrg is the per-organization projection.
func (s *TicketService) TicketsForOrg(ctx context.Context, actor *domain.User, orgID string) ([]*domain.Ticket, error) {
	if err := authorizeView(actor, policy.ActionViewTicket, policy.Target{OrganizationID: orgID}, "organization", orgID); err != nil {
		return nil, err
	}
	snap := s.store.Snapshot()
	return projectTickets(snap.TicketsForOrg(orgID), actor.Role), nil
}

// TicketsForUser is the per-assignee projection, narrowed to what the actor
// may see.
func (s *TicketService) TicketsForUser(ctx context.Context, actor *domain.User, userID string) ([]*domain.Ticket, error) {
	snap := s.store.Snapshot()
	assigned := snap.TicketsForAssignee(userID)
	visible := make([]*domain.Ticket, 0, len(assigned))
	for _, ticket := range assigned {
		if policy.Can(actor, policy.ActionViewTicket, policy.Target{OrganizationID: ticket.OrganizationID}) {
			visible = append(visible, ticket)
		}
	}
	return projectTickets(visible, actor.Role), nil
}

// UpdateTicketStatus moves a ticket along the status machine.
func (s *TicketService) UpdateTicketStatus(ctx context.Context, actor *domain.User, ticketID, status string) (*domain.Ticket, error) {
	next, err := domain.ParseTicketStatus(status)
	if err != nil {
		return nil, err
	}
	return s.mutateFields(ctx, actor, ticketID, fieldChanges{status: &next, strict: true})
}

// UpdateTicketPriority changes priority on a non-terminal ticket.
func (s *TicketService) UpdateTicketPriority(ctx context.Context, actor *domain.User, ticketID, priority string) (*domain.Ticket, error) {
	next, err := domain.ParseTicketPriority(priority)
	if err != nil {
		return nil, err
	}
	return s.mutateFields(ctx, actor, ticketID, fieldChanges{priority: &next, strict: true})
}

// AssignTicket sets the assignee; an empty id unassigns.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	assignee := strings.TrimSpace(assigneeID)
	return s.mutateFields(ctx, actor, ticketID, fieldChanges{assignee: &assignee, strict: true})
}

// UpdateTicket applies status, priority and assignee changes atomically.
// Fields equal to their current value are skipped.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	var changes fieldChanges
	if input.Status != nil {
		next, err := domain.ParseTicketStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		changes.status = &next
	}
	if input.Priority != nil {
		next, err := domain.ParseTicketPriority(*input.Priority)
		if err != nil {
			return nil, err
		}
		changes.priority = &next
	}
	if input.ClearAssignee {
		empty := ""
		changes.assignee = &empty
	} else if input.AssignedTo != nil {
		assignee := strings.TrimSpace(*input.AssignedTo)
		changes.assignee = &assignee
	}
	return s.mutateFields(ctx, actor, ticketID, changes)
}

type fieldChanges struct {
	status   *domain.TicketStatus
	priority *domain.TicketPriority
	assignee *string
	// strict rejects no-op changes instead of skipping them.
	strict bool
}

func (s *TicketService) mutateFields(ctx context.Context, actor *domain.User, ticketID string, changes fieldChanges) (*domain.Ticket, error) {
	current, err := s.visibleTicket(actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.ActionUpdateTicket, policy.Target{OrganizationID: current.OrganizationID, AssigneeID: current.AssigneeID()}); err != nil {
		return nil, err
	}

	var pending []events.Event
	updated, change, err := s.store.MutateTicket(ctx, ticketID, func(ticket *domain.Ticket) (store.TicketChange, error) {
		pending = pending[:0]
		var change store.TicketChange
		now := s.now()

		if changes.assignee != nil && (changes.strict || *changes.assignee != ticket.AssigneeID()) {
			if *changes.assignee != "" {
				if err := s.checkAssignee(*changes.assignee); err != nil {
					return change, err
				}
			}
			if err := ticket.Assign(*changes.assignee, now); err != nil {
				return change, err
			}
			description := "Ticket unassigned"
			if *changes.assignee != "" {
				description = fmt.Sprintf("Ticket assigned to %s", s.userName(*changes.assignee))
			}
			change.Activities = append(change.Activities, s.activity(domain.ActivityTicketUpdated, actor, ticket.ID, description, ticket.UpdatedAt))
			pending = append(pending, events.Event{
				Type:    events.EventTicketAssigned,
				Payload: events.TicketAssignedPayload{AssigneeID: ticket.AssignedTo},
			})
		}

		if changes.priority != nil && (changes.strict || *changes.priority != ticket.Priority) {
			old := ticket.Priority
			if err := ticket.SetPriority(*changes.priority, now); err != nil {
				return change, err
			}
			description := fmt.Sprintf("Priority changed from %s to %s", old, ticket.Priority)
			change.Activities = append(change.Activities, s.activity(domain.ActivityTicketUpdated, actor, ticket.ID, description, ticket.UpdatedAt))
			pending = append(pending, events.Event{
				Type:    events.EventTicketPriorityChanged,
				Payload: events.TicketPriorityChangedPayload{OldPriority: old, NewPriority: ticket.Priority},
			})
		}

		if changes.status != nil && (changes.strict || *changes.status != ticket.Status) {
			old := ticket.Status
			if err := ticket.TransitionTo(*changes.status, now); err != nil {
				return change, err
			}
			kind := domain.ActivityTicketUpdated
			description := fmt.Sprintf("Status changed from %s to %s", old, ticket.Status)
			if ticket.Status == domain.TicketStatusResolved {
				kind = domain.ActivityTicketResolved
				description = fmt.Sprintf("Ticket resolved: %s", ticket.Title)
			}
			change.Activities = append(change.Activities, s.activity(kind, actor, ticket.ID, description, ticket.UpdatedAt))
			pending = append(pending, events.Event{
				Type:    events.EventTicketStatusChanged,
				Payload: events.TicketStatusChangedPayload{OldStatus: old, NewStatus: ticket.Status},
			})
		}

		if len(change.Activities) == 0 {
			return change, errNoChanges
		}
		return change, nil
	})
	if errors.Is(err, errNoChanges) {
		return current.ProjectFor(actor.Role), nil
	}
	if err != nil {
		return nil, err
	}

	for _, event := range pending {
		event.TicketID = updated.ID
		event.ActorID = actor.ID
		if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
			s.metrics.RecordTransition(string(payload.OldStatus), string(payload.NewStatus))
		}
		s.publishEvent(ctx, event)
	}
	s.publishActivities(ctx, change.Activities)
	return updated.ProjectFor(actor.Role), nil
}

// errNoChanges aborts a combined update that would not change anything.
var errNoChanges = apperrors.NewInvalidArgument("no changes", nil)

func (s *TicketService) checkAssignee(userID string) error {
	assignee, err := s.store.User(userID)
	if err != nil || !assignee.Active() || !assignee.Role.IsInternal() {
		return apperrors.NewInvalidArgument("assignee must be an active support team member", map[string]any{"assignedTo": userID})
	}
	return nil
}

func (s *TicketService) userName(userID string) string {
	if user, err := s.store.User(userID); err == nil {
		return user.Name
	}
	return userID
}

// AddMessage appends to the thread. Internal notes need staff rights.
func (s *TicketService) AddMessage(ctx context.Context, actor *domain.User, ticketID, content string, isInternal bool) (*domain.Message, error) {
	current, err := s.visibleTicket(actor, ticketID)
	if err != nil {
		return nil, err
	}
	action := policy.ActionAddMessage
	if isInternal {
		action = policy.ActionAddInternalNote
	}
	if err := authorize(actor, action, policy.Target{OrganizationID: current.OrganizationID}); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewInvalidArgument("content is required", nil)
	}

	var msg domain.Message
	_, change, err := s.store.MutateTicket(ctx, ticketID, func(ticket *domain.Ticket) (store.TicketChange, error) {
		now := s.now()
		msg = domain.Message{
			ID:         s.newID(),
			TicketID:   ticket.ID,
			AuthorID:   actor.ID,
			Content:    content,
			IsInternal: isInternal,
			CreatedAt:  now,
		}
		ticket.AppendMessage(msg, now)
		description := fmt.Sprintf("%s replied on %s", actor.Name, ticket.Title)
		if isInternal {
			description = fmt.Sprintf("%s added an internal note on %s", actor.Name, ticket.Title)
		}
		item := s.activity(domain.ActivityMessageAdded, actor, ticket.ID, description, ticket.UpdatedAt)
		item.Internal = isInternal
		return store.TicketChange{
			Message:    &msg,
			Activities: []domain.ActivityItem{item},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			IsInternal:  msg.IsInternal,
			BodyPreview: preview(msg.Content),
		},
	})
	s.publishActivities(ctx, change.Activities)
	return &msg, nil
}

// AddTimeEntry logs hours. Time entries do not appear in the activity feed.
func (s *TicketService) AddTimeEntry(ctx context.Context, actor *domain.User, ticketID string, input TimeEntryInput) (*domain.TimeEntry, error) {
	current, err := s.visibleTicket(actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.ActionLogTime, policy.Target{OrganizationID: current.OrganizationID}); err != nil {
		return nil, err
	}
	if !domain.ValidHours(input.Hours) {
		return nil, apperrors.NewInvalidArgument("hours must be positive", map[string]any{"hours": fmt.Sprint(input.Hours)})
	}

	var entry domain.TimeEntry
	_, _, err = s.store.MutateTicket(ctx, ticketID, func(ticket *domain.Ticket) (store.TicketChange, error) {
		now := s.now()
		date := input.Date
		if date.IsZero() {
			date = now
		}
		entry = domain.TimeEntry{
			ID:          s.newID(),
			TicketID:    ticket.ID,
			AuthorID:    actor.ID,
			Hours:       input.Hours,
			Description: strings.TrimSpace(input.Description),
			Date:        time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			CreatedAt:   now,
		}
		if err := ticket.AppendTimeEntry(entry, now); err != nil {
			return store.TicketChange{}, err
		}
		return store.TicketChange{TimeEntry: &entry}, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTimeLogged,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload:  events.TimeLoggedPayload{EntryID: entry.ID, Hours: entry.Hours},
	})
	return &entry, nil
}

// visibleTicket loads a ticket and hides it unless the actor may view it.
func (s *TicketService) visibleTicket(actor *domain.User, ticketID string) (*domain.Ticket, error) {
	return loadVisibleTicket(s.store, actor, ticketID)
}

func loadVisibleTicket(st *store.Store, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := st.Ticket(ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(actor, policy.ActionViewTicket, policy.Target{OrganizationID: ticket.OrganizationID}, "ticket", ticketID); err != nil {
		return nil, err
	}
	return ticket, nil
}

func preview(content string) string {
	const limit = 120
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
