package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/events"
	"github.com/quickqueue/helpdesk/internal/rbac"
	"github.com/quickqueue/helpdesk/internal/repository"
	apperrors "github.com/quickqueue/helpdesk/pkg/util"
)

// TicketService orchestrates the ticket lifecycle. Every mutation routes
// through the permission engine before touching the stores.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	engine     *rbac.Engine
	dispatcher events.Dispatcher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	Engine      *rbac.Engine
	Dispatcher  events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Tags        []string
}

// TicketListInput describes listing filters. Filters combine with AND.
type TicketListInput struct {
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	TitleContains string
	Page          int
	PageSize      int
}

// CreateTicket creates a ticket for the actor. Any authenticated actor may
// create; status always starts at open.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || utf8.RuneCountInString(title) > domain.MaxTitleLength {
		return nil, apperrors.NewValidationError("title must be 1-200 characters", nil)
	}
	if description == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": string(priority)})
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		CreatorID:   actor.UserID,
		Tags:        input.Tags,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
			Tags:     ticket.Tags,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket the actor is allowed to view.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, id int64) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.engine.CanPerform(actor, rbac.ActionView, ticket) {
		return nil, apperrors.NewPermissionDenied("no access to this ticket")
	}
	return ticket, nil
}

// ListVisibleTickets lists tickets the actor may see, then applies the
// requested filters. Actors without all-ticket visibility only see their
// own tickets.
func (s *TicketService) ListVisibleTickets(ctx context.Context, actor domain.Actor, input TicketListInput) ([]domain.Ticket, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(*input.Status)})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": string(*input.Priority)})
	}

	filter := repository.TicketFilter{
		Status:        input.Status,
		Priority:      input.Priority,
		TitleContains: input.TitleContains,
		Page:          input.Page,
		PageSize:      input.PageSize,
	}
	if !s.engine.CanPerform(actor, rbac.ActionView, nil) {
		creatorID := actor.UserID
		filter.CreatorID = &creatorID
	}

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return tickets, nil
}

// UpdateTicket applies a partial update. Field-level permission rules are
// evaluated over the whole patch; one denied field fails the whole update
// with no partial application.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, id int64, patch repository.TicketPatch) (*domain.Ticket, error) {
	if patch.Empty() {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	change := rbac.TicketChange{
		Title:       patch.Title != nil,
		Description: patch.Description != nil,
		Priority:    patch.Priority != nil,
		Tags:        patch.Tags != nil,
		Status:      patch.Status,
		Assignee:    patch.AssigneeID != nil || patch.ClearAssignee,
		IsRepeat:    patch.IsRepeat != nil,
	}
	if !s.engine.CanApplyChange(actor, ticket, change) {
		return nil, apperrors.NewPermissionDenied("update not permitted for this role")
	}

	oldStatus := ticket.Status
	updated, changed, err := s.tickets.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}
	if !changed {
		return updated, nil
	}

	if patch.Status != nil && updated.Status != oldStatus {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: updated.ID,
			Actor:    actor,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: updated.Status,
			},
		})
	} else {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: updated.ID,
			Actor:    actor,
			Payload:  events.TicketUpdatedPayload{Fields: changedFields(change)},
		})
	}
	return updated, nil
}

// DeleteTicket removes a ticket and its comments. Admin-only unless the
// self-delete policy is enabled.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, id int64) error {
	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return err
	}
	if !s.engine.CanPerform(actor, rbac.ActionDelete, ticket) {
		return apperrors.NewPermissionDenied("ticket deletion requires admin access")
	}
	existed, err := s.tickets.Delete(ctx, id)
	if err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	if !existed {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: id,
		Actor:    actor,
		Payload:  events.TicketDeletedPayload{Title: ticket.Title},
	})
	return nil
}

// AddComment appends a comment. Comment access follows view access: a user
// may not comment on another user's ticket unless their role grants
// all-ticket visibility.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID int64, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.engine.CanPerform(actor, rbac.ActionComment, ticket) {
		return nil, apperrors.NewPermissionDenied("no access to this ticket")
	}

	comment := &domain.Comment{
		TicketID: ticketID,
		AuthorID: actor.UserID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticketID,
		Actor:    actor,
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    comment.AuthorID,
			BodyPreview: bodyPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// ListComments returns a ticket's comments newest first.
func (s *TicketService) ListComments(ctx context.Context, actor domain.Actor, ticketID int64) ([]domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.engine.CanPerform(actor, rbac.ActionView, ticket) {
		return nil, apperrors.NewPermissionDenied("no access to this ticket")
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return comments, nil
}

func (s *TicketService) loadTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return ticket, nil
}

func validatePatch(patch repository.TicketPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" || utf8.RuneCountInString(title) > domain.MaxTitleLength {
			return apperrors.NewValidationError("title must be 1-200 characters", nil)
		}
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return apperrors.NewValidationError("description cannot be empty", nil)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": string(*patch.Priority)})
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": string(*patch.Status)})
	}
	return nil
}

func changedFields(change rbac.TicketChange) []string {
	var fields []string
	if change.Title {
		fields = append(fields, "title")
	}
	if change.Description {
		fields = append(fields, "description")
	}
	if change.Priority {
		fields = append(fields, "priority")
	}
	if change.Tags {
		fields = append(fields, "tags")
	}
	if change.Status != nil {
		fields = append(fields, "status")
	}
	if change.Assignee {
		fields = append(fields, "assigned_to")
	}
	if change.IsRepeat {
		fields = append(fields, "is_repeat")
	}
	return fields
}

// bodyPreview truncates on rune boundaries so multi-byte text is never
// split mid-sequence.
func bodyPreview(body string, max int) string {
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	keep := max - 3
	if max <= 3 {
		keep = max
	}
	runes := []rune(body)
	if keep >= len(runes) {
		return body
	}
	preview := string(runes[:keep])
	if max <= 3 {
		return preview
	}
	return preview + "..."
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
