package domain

import "time"

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// IdentityKind separates stored users from the configured break-glass admin.
type IdentityKind string

const (
	IdentityUser       IdentityKind = "user"
	IdentityBreakGlass IdentityKind = "break_glass"
)

// User is a stored dashboard account.
type User struct {
	ID           string    `json:"id" bson:"id"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Identity is the authenticated caller carried by a token.
type Identity struct {
	UserID   string       `json:"-"`
	Username string       `json:"username"`
	Role     string       `json:"role"`
	Kind     IdentityKind `json:"-"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
