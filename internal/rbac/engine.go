package rbac

import "github.com/quickqueue/helpdesk/internal/domain"

// Action names an intent checked against the permission matrix.
type Action string

const (
	ActionView          Action = "view"
	ActionComment       Action = "comment"
	ActionResolve       Action = "resolve"
	ActionClose         Action = "close"
	ActionDelete        Action = "delete"
	ActionMarkRepeat    Action = "mark_repeat"
	ActionViewAnalytics Action = "view_analytics"
	ActionViewDashboard Action = "view_dashboard"
	ActionManageUsers   Action = "manage_users"
)

// actionCapabilities maps each action to the capability that grants it.
var actionCapabilities = map[Action]Capability{
	ActionView:          CapViewAllTickets,
	ActionComment:       CapViewAllTickets,
	ActionResolve:       CapResolveTickets,
	ActionClose:         CapCloseTickets,
	ActionDelete:        CapDeleteTickets,
	ActionMarkRepeat:    CapMarkRepeat,
	ActionViewAnalytics: CapViewAnalytics,
	ActionViewDashboard: CapViewDashboard,
	ActionManageUsers:   CapManageUsers,
}

// TicketChange describes which fields a partial update touches. Status
// carries the requested target when present.
type TicketChange struct {
	Title       bool
	Description bool
	Priority    bool
	Tags        bool
	Status      *domain.TicketStatus
	Assignee    bool
	IsRepeat    bool
}

// Engine is the single decision point for every mutation path. Handlers
// and services never re-implement role checks locally.
type Engine struct {
	ticketSelfDelete bool
}

// NewEngine builds the engine. ticketSelfDelete additionally lets a
// ticket's creator delete it.
func NewEngine(ticketSelfDelete bool) *Engine {
	return &Engine{ticketSelfDelete: ticketSelfDelete}
}

// CanPerform decides allow/deny for (actor, action, target ticket).
// Precedence: admin override, then the ownership rule, then the role's
// capability set, then deny.
func (e *Engine) CanPerform(actor domain.Actor, action Action, ticket *domain.Ticket) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}

	if ticket != nil && ticket.CreatorID == actor.UserID {
		// creators always keep view, comment and self-resolve rights
		switch action {
		case ActionView, ActionComment, ActionResolve:
			return true
		case ActionDelete:
			if e.ticketSelfDelete {
				return true
			}
		}
	}

	cap, ok := actionCapabilities[action]
	if !ok {
		return false
	}
	return PermissionsFor(actor.Role).Has(cap)
}

// CanApplyChange evaluates the field-level update rules for a partial
// ticket update. Every touched field must be allowed; a single denial
// fails the whole change.
func (e *Engine) CanApplyChange(actor domain.Actor, ticket *domain.Ticket, change TicketChange) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	// updating a ticket you cannot see is never allowed
	if !e.CanPerform(actor, ActionView, ticket) {
		return false
	}

	caps := PermissionsFor(actor.Role)

	if change.Title || change.Description || change.Priority || change.Tags {
		return false
	}
	if change.Status != nil {
		switch *change.Status {
		case domain.TicketStatusResolved:
			if ticket.CreatorID != actor.UserID && !caps.Has(CapResolveTickets) {
				return false
			}
		case domain.TicketStatusClosed:
			if !caps.Has(CapCloseTickets) {
				return false
			}
		default:
			// reopen and in_progress moves stay admin-only
			return false
		}
	}
	if change.Assignee && !caps.Has(CapEditAllTickets) {
		return false
	}
	if change.IsRepeat && !caps.Has(CapMarkRepeat) {
		return false
	}
	return true
}
