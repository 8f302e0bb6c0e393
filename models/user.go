package models

import "strconv"

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// User is a locally registered account
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

// Actor returns the identity this user acts as once authenticated.
func (u *User) Actor() Actor {
	return Actor{ID: strconv.FormatInt(u.ID, 10), Name: u.Username, Role: u.Role}
}

// Actor is the authenticated caller of an operation
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// DisplayName is what gets written to the audit log.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
