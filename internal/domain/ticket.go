package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether the status is one of the enumerated values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every priority in display order.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// Valid reports whether the priority is one of the enumerated values.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// MaxTitleLength bounds ticket titles.
const MaxTitleLength = 200

// Ticket is the aggregate for support requests. UpdatedAt stays nil until
// the first mutation after creation.
type Ticket struct {
	ID          int64
	Title       string
	Description string
	Priority    TicketPriority
	Status      TicketStatus
	CreatorID   int64
	AssigneeID  *int64
	Tags        []string
	IsRepeat    bool
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Clone returns a deep copy so callers can mutate freely.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		cp.AssigneeID = &id
	}
	if t.UpdatedAt != nil {
		ts := *t.UpdatedAt
		cp.UpdatedAt = &ts
	}
	if t.Tags != nil {
		cp.Tags = append([]string(nil), t.Tags...)
	}
	return &cp
}
