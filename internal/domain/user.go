package domain

import "time"

// Role enumerates the access levels an account can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the enumerated values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is an account that can authenticate and act on tickets.
type User struct {
	ID           int64
	Username     string
	FullName     string
	Email        string
	Role         Role
	Active       bool
	PasswordHash string
	CreatedAt    time.Time
}

// Actor is the authenticated identity attached to a request.
type Actor struct {
	UserID   int64
	Username string
	Role     Role
}

// ActorFor builds the request identity for a user record.
func ActorFor(u *User) Actor {
	return Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}
