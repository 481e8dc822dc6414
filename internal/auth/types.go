package auth

import "time"

// User represents a human or service account identified by its email address.
// Email is the single canonical login key.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`

	// Roles is populated by lookups that load the full permission graph.
	Roles []Role `json:"roles,omitempty"`
}

// Role groups permissions under a globally unique name.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	Permissions []Permission `json:"permissions,omitempty"`
}

// Permission is a fine-grained capability with a namespaced name such as
// "users:delete". The name is immutable once created.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is the persisted record backing a refresh credential. Token is the
// opaque value handed to clients; ID is the storage key and never leaves the
// process except inside a signed envelope. Revoked transitions false to true
// exactly once and is never reset.
type Session struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// TokenPair carries the credentials returned by login and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// UserUpdate describes a partial user mutation. Nil fields are left untouched.
// RoleIDs replaces the full assignment set when non-nil.
type UserUpdate struct {
	Email    *string
	FullName *string
	Password *string
	IsActive *bool
	RoleIDs  []string
}

// RoleUpdate describes a partial role mutation.
type RoleUpdate struct {
	Name        *string
	Description *string
}
