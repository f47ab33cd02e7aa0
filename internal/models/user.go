package models

import (
	"strings"
	"time"
)

// UserRole represents the four portal roles.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStudent UserRole = "STUDENT"
	RoleTeacher UserRole = "TEACHER"
	RoleParent  UserRole = "PARENT"
)

// AllRoles lists roles in menu order.
var AllRoles = []UserRole{RoleAdmin, RoleStudent, RoleTeacher, RoleParent}

// Valid reports whether r is one of the four roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleStudent, RoleTeacher, RoleParent:
		return true
	default:
		return false
	}
}

// Lower returns the lowercase form used in portal paths, e.g. "student".
func (r UserRole) Lower() string {
	return strings.ToLower(string(r))
}

// HomePath is where a freshly logged-in user of this role lands.
func (r UserRole) HomePath() string {
	return "/" + r.Lower()
}

// ParseRole normalises case and whitespace.
func ParseRole(raw string) (UserRole, bool) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Info projects the user into the response shape.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// UserFilter narrows the account listing.
type UserFilter struct {
	Roles     []UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
