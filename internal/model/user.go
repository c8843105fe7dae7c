package model

import "time"

// Staff roles.  Admins manage sections and staff accounts; receptionists
// run the queues and the check-status ledger.
const (
	RoleAdmin        = "ADMIN"
	RoleReceptionist = "RECEPTIONIST"
)

// User is a staff account row.  The password hash stays inside the
// repository and handler layers; responses use their own types.
type User struct {
	ID           uint64
	Email        string // unique, stored lower-case
	PasswordHash string // bcrypt
	Role         string // RoleAdmin or RoleReceptionist
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidRole reports whether role names a known staff role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleReceptionist
}

// RefreshToken is a stored refresh token.  Only the SHA-256 hex digest of
// the token is kept; RevokedAt is nil while the token is live.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Live reports whether the token can still be exchanged at now.
func (t RefreshToken) Live(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
