package models

import "github.com/google/uuid"

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// IsStaff reports whether the caller may use the order console.
func (i Identity) IsStaff() bool {
	return i.Role == RoleAdmin || i.Role == RoleModerator
}

// OwnerID keys the caller's cart.
func (i Identity) OwnerID() string { return i.UserID.String() }
