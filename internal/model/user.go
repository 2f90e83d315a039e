package model

import (
	"strings"
	"time"
)

// Role is the marketplace role attached to a user.  The zero value means
// the user has signed up but not picked a role yet.
type Role string

const (
	RoleNone     Role = ""
	RoleWriter   Role = "writer"
	RoleProducer Role = "producer"
)

// ParseRole normalises a raw role string.  Unknown values map to RoleNone
// so callers treat them the same as an absent role.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleWriter:
		return RoleWriter
	case RoleProducer:
		return RoleProducer
	}
	return RoleNone
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool { return r == RoleWriter || r == RoleProducer }

// User represents an account as stored in the `users` table.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – writer, producer or empty when not chosen yet.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role (nullable)
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
