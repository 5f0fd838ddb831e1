package dto

import (
	"encoding/json"
	"time"

	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/repository"
	"github.com/quickqueue/helpdesk/internal/service"
)

// OptionalID distinguishes an absent JSON field from an explicit null.
// An explicit null clears the assignment.
type OptionalID struct {
	Set   bool
	Value *int64
}

// UnmarshalJSON marks the field as set; null leaves Value nil.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
}

// ToInput converts to the service input.
func (r CreateTicketRequest) ToInput() service.TicketCreateInput {
	return service.TicketCreateInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Tags:        r.Tags,
	}
}

// UpdateTicketRequest is a partial update; absent fields stay untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Priority    *domain.TicketPriority `json:"priority"`
	Status      *domain.TicketStatus   `json:"status"`
	AssignedTo  OptionalID             `json:"assigned_to"`
	Tags        *[]string              `json:"tags"`
	IsRepeat    *bool                  `json:"is_repeat"`
}

// ToPatch converts to the repository patch.
func (r UpdateTicketRequest) ToPatch() repository.TicketPatch {
	patch := repository.TicketPatch{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
		Tags:        r.Tags,
		IsRepeat:    r.IsRepeat,
	}
	if r.AssignedTo.Set {
		if r.AssignedTo.Value == nil {
			patch.ClearAssignee = true
		} else {
			patch.AssigneeID = r.AssignedTo.Value
		}
	}
	return patch
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	CreatedBy   int64                 `json:"created_by"`
	AssignedTo  *int64                `json:"assigned_to"`
	Tags        []string              `json:"tags"`
	IsRepeat    bool                  `json:"is_repeat"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   *time.Time            `json:"updated_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedBy:   t.CreatorID,
		AssignedTo:  t.AssigneeID,
		Tags:        tags,
		IsRepeat:    t.IsRepeat,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketListResponse maps a page of tickets.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// CommentResponse is the wire shape of a comment.
type CommentResponse struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCommentResponse maps a domain comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		TicketID:  c.TicketID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

// NewCommentListResponse maps a comment thread, newest first.
func NewCommentListResponse(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, NewCommentResponse(&comments[i]))
	}
	return out
}
