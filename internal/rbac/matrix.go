package rbac

import "github.com/quickqueue/helpdesk/internal/domain"

// Capability is a named boolean permission attached to a role.
type Capability string

const (
	CapViewAllTickets Capability = "can_view_all_tickets"
	CapEditAllTickets Capability = "can_edit_all_tickets"
	CapDeleteTickets  Capability = "can_delete_tickets"
	CapCloseTickets   Capability = "can_close_tickets"
	CapResolveTickets Capability = "can_resolve_tickets"
	CapMarkRepeat     Capability = "can_mark_repeat"
	CapViewAnalytics  Capability = "can_view_analytics"
	CapViewDashboard  Capability = "can_view_dashboard"
	CapManageUsers    Capability = "can_manage_users"
)

// CapabilitySet holds the granted capabilities of a role.
type CapabilitySet map[Capability]bool

// Has reports whether the capability is granted.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// rolePermissions is process-wide static configuration, not per-user state.
var rolePermissions = map[domain.Role]CapabilitySet{
	domain.RoleAdmin: {
		CapViewAllTickets: true,
		CapEditAllTickets: true,
		CapDeleteTickets:  true,
		CapCloseTickets:   true,
		CapResolveTickets: true,
		CapMarkRepeat:     true,
		CapViewAnalytics:  true,
		CapViewDashboard:  true,
		CapManageUsers:    true,
	},
	domain.RoleAgent: {
		CapViewAllTickets: true,
		CapEditAllTickets: true,
		CapCloseTickets:   true,
		CapResolveTickets: true,
		CapMarkRepeat:     true,
		CapViewAnalytics:  true,
		CapViewDashboard:  true,
	},
	domain.RoleUser: {
		CapResolveTickets: true,
		CapViewAnalytics:  true,
		CapViewDashboard:  true,
	},
}

// PermissionsFor returns the capability set for a role. Unknown roles map
// to the most restrictive role's set rather than an empty one.
func PermissionsFor(role domain.Role) CapabilitySet {
	if set, ok := rolePermissions[role]; ok {
		return set
	}
	return rolePermissions[domain.RoleUser]
}
